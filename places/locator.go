// Package places resolves the nearest facility of a fixed category
// around a coordinate using an external spatial index.
package places

import (
	"context"
	"fmt"

	"safemap/apperrors"
	"safemap/models"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
)

// Mean Earth radius, meters.
const earthRadiusMeters = 6371010.0

// DefaultRadiusMeters bounds every nearby search. The lookup is single
// shot: zero candidates within the radius is NotFound, never a retry
// with a wider radius.
const DefaultRadiusMeters = 5000

const policeCategory = "police"

// Candidate is one entity returned by the spatial index. Optional fields
// are empty when the provider did not supply them.
type Candidate struct {
	Name        string
	Vicinity    string
	Latitude    float64
	Longitude   float64
	HasLocation bool
	Phone       string
	Rating      *float64
	PlaceID     string
}

// NearbySearcher is the external spatial index contract.
type NearbySearcher interface {
	NearbySearch(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]Candidate, error)
}

// Locator computes the nearest facility from the candidates a searcher
// returns within a fixed radius.
type Locator struct {
	searcher NearbySearcher
	radius   int
}

// NewLocator builds a locator over the given searcher. A non-positive
// radius falls back to the default 5 km.
func NewLocator(searcher NearbySearcher, radiusMeters int) *Locator {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Locator{searcher: searcher, radius: radiusMeters}
}

// FindNearestPolice returns the police station closest to (lat, lng)
// within the configured radius. Equidistant candidates resolve to the
// first one in provider order; that order is provider-dependent and not
// a guaranteed tie-break.
func (l *Locator) FindNearestPolice(ctx context.Context, lat, lng float64) (models.PoliceStation, error) {
	candidates, err := l.searcher.NearbySearch(ctx, lat, lng, l.radius, policeCategory)
	if err != nil {
		return models.PoliceStation{}, err
	}

	origin := s2.LatLngFromDegrees(lat, lng)
	var nearest *Candidate
	var nearestDistance float64

	for i := range candidates {
		c := &candidates[i]
		if !c.HasLocation {
			continue
		}
		d := Distance(origin, s2.LatLngFromDegrees(c.Latitude, c.Longitude))
		if nearest == nil || d < nearestDistance {
			nearest = c
			nearestDistance = d
		}
	}

	if nearest == nil {
		return models.PoliceStation{}, fmt.Errorf(
			"no police stations within %dm of (%f, %f): %w", l.radius, lat, lng, apperrors.ErrNotFound)
	}

	station := models.PoliceStation{
		Name:           nearest.Name,
		Address:        nearest.Vicinity,
		Latitude:       nearest.Latitude,
		Longitude:      nearest.Longitude,
		DistanceMeters: nearestDistance,
		Phone:          nearest.Phone,
		Rating:         nearest.Rating,
		PlaceID:        nearest.PlaceID,
	}
	if station.Name == "" {
		station.Name = "Unknown Police Station"
	}
	if station.Address == "" {
		station.Address = "Address not available"
	}

	log.Debugf("Nearest police station %q at %.0fm", station.Name, station.DistanceMeters)
	return station, nil
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * earthRadiusMeters
}
