package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flightdeals/internal/flight"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// memorySink keeps the latest write per id, like the store does.
type memorySink struct {
	flights map[string]flight.Flight
	trips   map[string]flight.Trip
	legs    map[string]flight.Leg
	deals   map[string]flight.Deal
	calls   []string
	failOn  string
}

func newMemorySink() *memorySink {
	return &memorySink{
		flights: map[string]flight.Flight{},
		trips:   map[string]flight.Trip{},
		legs:    map[string]flight.Leg{},
		deals:   map[string]flight.Deal{},
	}
}

func (s *memorySink) record(kind string) error {
	s.calls = append(s.calls, kind)
	if kind == s.failOn {
		return errors.New("store unavailable")
	}
	return nil
}

func (s *memorySink) AddFlight(_ context.Context, f flight.Flight) error {
	if err := s.record("flight"); err != nil {
		return err
	}
	s.flights[f.ID] = f
	return nil
}

func (s *memorySink) AddTrip(_ context.Context, t flight.Trip) error {
	if err := s.record("trip"); err != nil {
		return err
	}
	s.trips[t.ID] = t
	return nil
}

func (s *memorySink) AddLeg(_ context.Context, l flight.Leg) error {
	if err := s.record("leg"); err != nil {
		return err
	}
	s.legs[l.ID] = l
	return nil
}

func (s *memorySink) AddDeal(_ context.Context, d flight.Deal) error {
	if err := s.record("deal"); err != nil {
		return err
	}
	s.deals[d.ID] = d
	return nil
}

func (s *memorySink) ids() []string {
	var out []string
	for id := range s.flights {
		out = append(out, "flight:"+id)
	}
	for id := range s.trips {
		out = append(out, "trip:"+id)
	}
	for id := range s.legs {
		out = append(out, "leg:"+id)
	}
	for id := range s.deals {
		out = append(out, "deal:"+id)
	}
	sort.Strings(out)
	return out
}

func (s *memorySink) legsOf(tripID string, inbound bool) []flight.Leg {
	var out []flight.Leg
	for _, l := range s.legs {
		if l.Trip == tripID && l.Inbound == inbound {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}
