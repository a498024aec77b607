package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"flightdeals/internal/flight"
	"flightdeals/internal/store"
	"flightdeals/pkg/logger"
)

// LegView is one leg with its flight resolved.
type LegView struct {
	Order          int           `json:"order"`
	ConnectionTime *int          `json:"connection_time"`
	Flight         flight.Flight `json:"flight"`
}

// TripResult is a trip's itinerary together with the deals quoting it for one search.
type TripResult struct {
	Trip     flight.Trip   `json:"trip"`
	Outbound []LegView     `json:"outbound"`
	Inbound  []LegView     `json:"inbound"`
	Deals    []flight.Deal `json:"deals"`
}

func (r TripResult) cheapest() float64 {
	if len(r.Deals) == 0 {
		return 0
	}
	return r.Deals[0].Price
}

// Reader is the slice of the entity store the aggregator reads from.
type Reader interface {
	ScanDeals(ctx context.Context, idPrefix string) ([]flight.Deal, error)
	GetTrip(ctx context.Context, id string) (flight.Trip, error)
	LegsOfTrip(ctx context.Context, tripID string) ([]flight.Leg, error)
	Flights(ctx context.Context, ids []string) (map[string]flight.Flight, error)
}

// Aggregator assembles stored deals into trip itineraries. It reads the store directly and never fails on
// missing data: nothing fetched yet is an empty result.
type Aggregator struct {
	store  Reader
	logger logger.Client
}

func NewAggregator(store Reader, logger logger.Client) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// Query returns the trips for params. With sources given, each source is read separately and the results
// merged; otherwise one scan covers every source.
func (a *Aggregator) Query(ctx context.Context, params flight.SearchParams, sources ...string) ([]TripResult, error) {
	if len(sources) == 0 {
		return a.collect(ctx, flight.DealPrefix(flight.SearchKey(params), ""))
	}

	sets := make([][]TripResult, 0, len(sources))
	for _, source := range sources {
		results, err := a.ForSource(ctx, params, source)
		if err != nil {
			return nil, err
		}
		sets = append(sets, results)
	}
	return Merge(sets...), nil
}

// ForSource returns the trips one source found for params.
func (a *Aggregator) ForSource(ctx context.Context, params flight.SearchParams, source string) ([]TripResult, error) {
	return a.collect(ctx, flight.DealPrefix(flight.SearchKey(params), source))
}

func (a *Aggregator) collect(ctx context.Context, prefix string) ([]TripResult, error) {
	deals, err := a.store.ScanDeals(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("search: failed to scan deals: %w", err)
	}

	byTrip := make(map[string][]flight.Deal)
	var order []string
	for _, d := range deals {
		if _, ok := byTrip[d.Trip]; !ok {
			order = append(order, d.Trip)
		}
		byTrip[d.Trip] = append(byTrip[d.Trip], d)
	}

	results := make([]TripResult, 0, len(order))
	for _, tripID := range order {
		res, ok, err := a.trip(ctx, tripID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		res.Deals = byTrip[tripID]
		sortDeals(res.Deals)
		results = append(results, res)
	}

	sortTrips(results)
	return results, nil
}

// trip loads the trip's itinerary. ok is false when the trip or all of its legs are not readable yet.
func (a *Aggregator) trip(ctx context.Context, tripID string) (TripResult, bool, error) {
	t, err := a.store.GetTrip(ctx, tripID)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Debug("deal references missing trip", logger.Field{Key: "trip_id", Value: tripID})
		return TripResult{}, false, nil
	}
	if err != nil {
		return TripResult{}, false, fmt.Errorf("search: failed to load trip %s: %w", tripID, err)
	}

	legs, err := a.store.LegsOfTrip(ctx, tripID)
	if err != nil {
		return TripResult{}, false, fmt.Errorf("search: failed to load legs of %s: %w", tripID, err)
	}

	ids := make([]string, len(legs))
	for i, l := range legs {
		ids[i] = l.Flight
	}
	flights, err := a.store.Flights(ctx, ids)
	if err != nil {
		return TripResult{}, false, fmt.Errorf("search: failed to load flights of %s: %w", tripID, err)
	}

	res := TripResult{Trip: t, Outbound: []LegView{}, Inbound: []LegView{}}
	for _, l := range legs {
		f, ok := flights[l.Flight]
		if !ok {
			continue
		}
		view := LegView{Order: l.Order, ConnectionTime: l.ConnectionTime, Flight: f}
		if l.Inbound {
			res.Inbound = append(res.Inbound, view)
		} else {
			res.Outbound = append(res.Outbound, view)
		}
	}

	if len(res.Outbound)+len(res.Inbound) == 0 {
		a.logger.Debug("trip has no resolvable legs", logger.Field{Key: "trip_id", Value: tripID})
		return TripResult{}, false, nil
	}
	return res, true, nil
}

// Merge unions result sets, joining the deals of identical trips.
func Merge(sets ...[]TripResult) []TripResult {
	index := make(map[string]int)
	var merged []TripResult

	for _, set := range sets {
		for _, r := range set {
			i, ok := index[r.Trip.ID]
			if !ok {
				index[r.Trip.ID] = len(merged)
				r.Deals = append([]flight.Deal(nil), r.Deals...)
				merged = append(merged, r)
				continue
			}
			merged[i].Deals = unionDeals(merged[i].Deals, r.Deals)
		}
	}

	for i := range merged {
		sortDeals(merged[i].Deals)
	}
	sortTrips(merged)
	if merged == nil {
		merged = []TripResult{}
	}
	return merged
}

func unionDeals(a, b []flight.Deal) []flight.Deal {
	seen := make(map[string]bool, len(a))
	for _, d := range a {
		seen[d.ID] = true
	}
	for _, d := range b {
		if !seen[d.ID] {
			seen[d.ID] = true
			a = append(a, d)
		}
	}
	return a
}

func sortDeals(deals []flight.Deal) {
	sort.SliceStable(deals, func(i, j int) bool {
		if deals[i].Price != deals[j].Price {
			return deals[i].Price < deals[j].Price
		}
		return deals[i].ID < deals[j].ID
	})
}

func sortTrips(results []TripResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].cheapest() != results[j].cheapest() {
			return results[i].cheapest() < results[j].cheapest()
		}
		return results[i].Trip.ID < results[j].Trip.ID
	})
}
