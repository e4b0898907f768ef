// Command geocode performs a one-off forward search or reverse lookup from
// the command line, using the same adapters and configuration as the
// service. Useful for checking credentials and provider behavior without
// standing up the HTTP server.
//
// Usage:
//
//	NOMINATIM_EMAIL=ops@example.com go run ./cmd/geocode -query "Cra 7 # 72-41"
//	GOOGLE_API_KEY=... go run ./cmd/geocode -provider google -lat 4.6486 -lon -74.0628
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/domicilios/geocoding-service/internal/adapter/googleplaces"
	"github.com/domicilios/geocoding-service/internal/adapter/nominatim"
	"github.com/domicilios/geocoding-service/internal/config"
	"github.com/domicilios/geocoding-service/internal/domain"
	"github.com/domicilios/geocoding-service/internal/geocoder"
	"github.com/domicilios/geocoding-service/internal/observability"
)

func main() {
	var (
		query    = flag.String("query", "", "free-text address query (forward search)")
		lat      = flag.Float64("lat", 0, "latitude (reverse lookup, with -lon)")
		lon      = flag.Float64("lon", 0, "longitude (reverse lookup, with -lat)")
		provider = flag.String("provider", "", "force a provider: nominatim or google")
		limit    = flag.Int("limit", 5, "maximum candidates for forward search")
		timeout  = flag.Duration("timeout", 15*time.Second, "overall operation timeout")
	)
	flag.Parse()

	if (*query == "") == (*lat == 0 && *lon == 0) {
		fmt.Fprintln(os.Stderr, "provide either -query, or -lat and -lon")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var pref domain.Provider
	if *provider != "" {
		if pref, err = domain.ParseProvider(*provider); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	logger := observability.NewLogger("warn", "text")
	metrics := observability.NewMetricsForTesting() // no registry needed for a one-shot run

	client := geocoder.New(geocoder.Params{
		Nominatim:           nominatim.NewClient(cfg.NominatimEmail, cfg.NominatimReferer, cfg.RequestTimeout, metrics, logger),
		Google:              googleplaces.NewClient(cfg.GoogleAPIKey, cfg.RequestTimeout, metrics, logger),
		ForcedProvider:      cfg.ForcedProvider,
		NominatimConfigured: cfg.NominatimEmail != "",
		GoogleConfigured:    cfg.GoogleAPIKey != "",
		DefaultMaxResults:   cfg.DefaultMaxResults,
		Metrics:             metrics,
		Logger:              logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *query != "" {
		runSearch(ctx, client, *query, pref, *limit)
		return
	}
	runReverse(ctx, client, *lat, *lon, pref)
}

func runSearch(ctx context.Context, client *geocoder.Client, query string, pref domain.Provider, limit int) {
	candidates, err := client.Search(ctx, query, geocoder.SearchOptions{Provider: pref, MaxResults: limit})
	if err != nil {
		fmt.Fprintln(os.Stderr, "search:", err)
		os.Exit(1)
	}
	if len(candidates) == 0 {
		fmt.Println("no candidates")
		return
	}
	for i, c := range candidates {
		fmt.Printf("%d. [%s] %s\n   %.6f, %.6f  (id=%s)\n", i+1, c.Provider, c.Label, c.Latitude, c.Longitude, c.ID)
	}
}

func runReverse(ctx context.Context, client *geocoder.Client, lat, lon float64, pref domain.Provider) {
	cand, err := client.ReverseLookup(ctx, lat, lon, geocoder.ReverseOptions{Provider: pref})
	if err != nil {
		fmt.Fprintln(os.Stderr, "reverse:", err)
		os.Exit(1)
	}
	if cand == nil {
		fmt.Println(domain.FormatCoordinates(lat, lon))
		return
	}
	fmt.Printf("[%s] %s\n%.6f, %.6f\n", cand.Provider, cand.Label, cand.Latitude, cand.Longitude)
}
