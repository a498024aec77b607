package store

import (
	"context"

	"flightdeals/internal/flight"
)

// Sink adapts the store to what extractors push, expiring trips, legs and deals against the departure
// date of the search being extracted.
type Sink struct {
	store         *Store
	departureDate string
}

func (s *Store) Sink(params flight.SearchParams) *Sink {
	return &Sink{store: s, departureDate: params.DepartureDate}
}

func (k *Sink) AddFlight(ctx context.Context, f flight.Flight) error {
	return k.store.SaveFlight(ctx, f)
}

func (k *Sink) AddTrip(ctx context.Context, t flight.Trip) error {
	return k.store.SaveTrip(ctx, t, k.departureDate)
}

func (k *Sink) AddLeg(ctx context.Context, l flight.Leg) error {
	return k.store.SaveLeg(ctx, l, k.departureDate)
}

func (k *Sink) AddDeal(ctx context.Context, d flight.Deal) error {
	return k.store.SaveDeal(ctx, d)
}
