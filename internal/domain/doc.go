// Package domain models geocoding results for the Bogotá address service.
//
// # Providers
//
// Two external providers back the service, normalized to one result shape:
//
//	Nominatim (OpenStreetMap): free, rate-limited, single-call search and
//	reverse endpoints. Usage policy requires identifying the client with a
//	contact email in the User-Agent and From headers; heavy use answers
//	with HTTP 429, which surfaces as ErrRateLimited.
//
//	Google Places: commercial, two-phase forward search. An autocomplete
//	call returns lightweight predictions without coordinates; a per-
//	prediction details call resolves each place id to a geometry. Reverse
//	lookups go through the Geocoding API. Application-level statuses
//	(OVER_QUERY_LIMIT, REQUEST_DENIED, ...) map to StatusError.
//
// # Geographic bounding
//
// Every forward search is constrained to the [Bogota] rectangle. Nominatim
// enforces it strictly (viewbox + bounded=1, results outside are excluded);
// Google Places receives it as a location bias combined with a
// country:co component filter. The box is never re-validated client-side.
//
// # Soft failures
//
// Reverse lookups degrade rather than fail: any upstream error or empty
// payload yields a nil candidate, and callers substitute the formatted
// coordinate pair (see [FormatCoordinates]) as the display label. Forward
// searches returning zero candidates are likewise a valid, empty outcome.
package domain
