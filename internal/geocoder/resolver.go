package geocoder

import "github.com/domicilios/geocoding-service/internal/domain"

// ResolveProvider picks the provider for one request. An explicit per-request
// preference always wins, then a deployment-wide forced provider, and only
// in their absence does credential detection run: Google when its key is
// configured, otherwise Nominatim.
//
// Pure and infallible: a preference for a provider whose credential is
// missing still resolves to that provider, and the adapter raises the
// configuration error at call time.
func ResolveProvider(pref, forced domain.Provider, googleConfigured bool) domain.Provider {
	if pref != "" {
		return pref
	}
	if forced != "" {
		return forced
	}
	if googleConfigured {
		return domain.ProviderGoogle
	}
	return domain.ProviderNominatim
}
