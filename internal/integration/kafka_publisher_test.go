//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/domicilios/geocoding-service/internal/adapter/kafka"
	"github.com/domicilios/geocoding-service/internal/config"
	"github.com/domicilios/geocoding-service/internal/domain"
	"github.com/domicilios/geocoding-service/internal/geocoder"
	"github.com/domicilios/geocoding-service/internal/observability"
)

const testActivityTopic = "test-geocode-activity"

// startKafka boots a single-node Kafka via testcontainers and returns its
// bootstrap broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPublisherRoundTrip verifies the activity publisher end to end: events
// recorded through the geocoder.ActivitySink surface land on the analytics
// topic with the expected key, headers, and payload.
func TestPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testActivityTopic)

	cfg := &config.Config{
		KafkaBrokers:           []string{broker},
		AnalyticsTopic:         testActivityTopic,
		AnalyticsBatchSize:     2,
		AnalyticsFlushInterval: 200 * time.Millisecond,
	}

	publisher := kafkaadapter.NewPublisher(cfg, clockwork.NewRealClock(), observability.NewMetricsForTesting(), discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	publisher.Record(geocoder.ActivityEvent{
		Operation:   "search",
		Provider:    domain.ProviderNominatim,
		QueryHash:   "abcd1234abcd1234",
		ResultCount: 3,
		Outcome:     "success",
		DurationMS:  87,
		At:          now,
	})
	publisher.Record(geocoder.ActivityEvent{
		Operation:  "reverse",
		Provider:   domain.ProviderGoogle,
		Outcome:    "empty",
		DurationMS: 45,
		At:         now,
	})

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testActivityTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()

	byOperation := make(map[string]geocoder.ActivityEvent, 2)
	keys := make(map[string]string, 2)
	for range 2 {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from activity topic")

		var ev geocoder.ActivityEvent
		require.NoError(t, json.Unmarshal(msg.Value, &ev))
		byOperation[ev.Operation] = ev
		keys[ev.Operation] = string(msg.Key)

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, ev.Operation, headers["operation"])
		assert.Equal(t, ev.Outcome, headers["outcome"])
	}

	search, ok := byOperation["search"]
	require.True(t, ok, "expected a search event")
	assert.Equal(t, domain.ProviderNominatim, search.Provider)
	assert.Equal(t, "abcd1234abcd1234", search.QueryHash)
	assert.Equal(t, 3, search.ResultCount)
	assert.Equal(t, "success", search.Outcome)
	assert.Equal(t, "nominatim", keys["search"])

	reverse, ok := byOperation["reverse"]
	require.True(t, ok, "expected a reverse event")
	assert.Equal(t, domain.ProviderGoogle, reverse.Provider)
	assert.Empty(t, reverse.QueryHash, "reverse lookups carry no query hash")
	assert.Equal(t, "empty", reverse.Outcome)
	assert.Equal(t, "google", keys["reverse"])
}

// TestPublisherTickerFlush verifies that an undersized batch still reaches
// the topic once the flush interval elapses.
func TestPublisherTickerFlush(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testActivityTopic)

	cfg := &config.Config{
		KafkaBrokers:           []string{broker},
		AnalyticsTopic:         testActivityTopic,
		AnalyticsBatchSize:     100,
		AnalyticsFlushInterval: 200 * time.Millisecond,
	}

	publisher := kafkaadapter.NewPublisher(cfg, clockwork.NewRealClock(), observability.NewMetricsForTesting(), discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	publisher.Record(geocoder.ActivityEvent{
		Operation: "search",
		Provider:  domain.ProviderNominatim,
		Outcome:   "success",
		At:        time.Now().UTC(),
	})

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testActivityTopic,
		GroupID:     fmt.Sprintf("test-ticker-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err)

	var ev geocoder.ActivityEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "search", ev.Operation)
}
