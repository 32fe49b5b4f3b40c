package geo

import (
	"context"
	"fmt"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
)

// GeocodingClient searches the upstream geocoder for candidate locations of a
// city name. Implemented by client.GeocodingClient.
type GeocodingClient interface {
	Search(ctx context.Context, name string) ([]models.ResolvedLocation, error)
}

// Resolver maps a raw city string to coordinates: administrative suffix is
// stripped, the alias table applied, then the static coordinate table is
// consulted before falling back to the external geocoder.
type Resolver struct {
	geocoder GeocodingClient
}

// NewResolver returns a Resolver using the given geocoding fallback.
func NewResolver(geocoder GeocodingClient) *Resolver {
	return &Resolver{geocoder: geocoder}
}

// Resolve returns the canonical location for a raw city name. Geocoder
// failures propagate as the client's typed errors; zero geocoding candidates
// surface as client.ErrCityNotFound. The returned name is always
// suffix-stripped so cached and archived rows use one spelling.
func (r *Resolver) Resolve(ctx context.Context, rawCity string) (models.ResolvedLocation, error) {
	name := Normalize(rawCity)

	if loc, ok := cityCoordinates[name]; ok {
		return loc, nil
	}

	candidates, err := r.geocoder.Search(ctx, name)
	if err != nil {
		return models.ResolvedLocation{}, fmt.Errorf("resolve %s: %w", name, err)
	}

	loc := candidates[0]
	loc.Name = StripSuffix(loc.Name)
	return loc, nil
}
