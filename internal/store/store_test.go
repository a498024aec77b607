package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := New(client, logger.Nop())
	s.now = func() time.Time { return testNow }
	return s, mr
}

func intPtr(n int) *int { return &n }

func TestExpiration(t *testing.T) {
	t.Run("two days after departure", func(t *testing.T) {
		assert.Equal(t, 9*24*time.Hour+12*time.Hour, Expiration("2025-03-09", testNow))
	})

	t.Run("departure two days in the past is zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Expiration("2025-02-27", testNow))
	})

	t.Run("never negative", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Expiration("2024-01-01", testNow))
	})

	t.Run("truncates to seconds", func(t *testing.T) {
		now := testNow.Add(500 * time.Millisecond)
		assert.Equal(t, 9*24*time.Hour+12*time.Hour-time.Second, Expiration("2025-03-09", now))
	})

	t.Run("unreadable date falls back", func(t *testing.T) {
		assert.Equal(t, DefaultTTL, Expiration("soon", testNow))
	})
}

func TestStore_FlightUpsert(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	f := flight.Flight{
		ID: "AA123_LAX_2025-03-10_14-30", FlightNumber: "AA123", Airline: "American Airlines",
		Origin: "LAX", Destination: "JFK", DepartureDate: "2025-03-10", DepartureTime: "14:30",
		ArrivalDate: "2025-03-10", ArrivalTime: "17:45", Duration: 195, CreatedAt: testNow,
	}

	t.Run("writes the durable field names", func(t *testing.T) {
		require.NoError(t, s.SaveFlight(ctx, f))

		assert.Equal(t, "AA123", mr.HGet(FlightKey(f.ID), "flight_number"))
		assert.Equal(t, "195", mr.HGet(FlightKey(f.ID), "duration"))
		assert.Equal(t, "2025-03-01T12:00:00Z", mr.HGet(FlightKey(f.ID), "created_at"))
		assert.Equal(t, Expiration("2025-03-10", testNow), mr.TTL(FlightKey(f.ID)))
	})

	t.Run("second write overwrites in place and refreshes ttl", func(t *testing.T) {
		mr.FastForward(time.Hour)
		later := f
		later.Airline = "American"
		s.now = func() time.Time { return testNow.Add(time.Hour) }
		defer func() { s.now = func() time.Time { return testNow } }()

		require.NoError(t, s.SaveFlight(ctx, later))

		got, err := s.GetFlight(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, "American", got.Airline)
		assert.Equal(t, 195, got.Duration)
		assert.Equal(t, Expiration("2025-03-10", testNow.Add(time.Hour)), mr.TTL(FlightKey(f.ID)))

		assert.Equal(t, []string{FlightKey(f.ID)}, mr.Keys())
	})

	t.Run("departed windows are not written", func(t *testing.T) {
		old := f
		old.ID = "AA1_LAX_2025-01-01_10-00"
		old.DepartureDate = "2025-01-01"

		require.NoError(t, s.SaveFlight(ctx, old))
		assert.False(t, mr.Exists(FlightKey(old.ID)))
	})

	t.Run("missing flight is ErrNotFound", func(t *testing.T) {
		_, err := s.GetFlight(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ReplacesIncompatibleKeys(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	trip := flight.Trip{ID: "abc", CreatedAt: testNow}

	require.NoError(t, mr.Set(TripKey("abc"), `{"legacy":true}`))
	_, err := mr.SetAdd(tripLegsKey("abc"), "x")
	require.NoError(t, err)
	require.NoError(t, mr.Set(tripDealsKey("abc"), "legacy"))

	require.NoError(t, s.SaveTrip(ctx, trip, "2025-03-10"))
	require.NoError(t, s.SaveDeal(ctx, flight.Deal{ID: "d1", Trip: "abc", DepartureDate: "2025-03-10", Price: 10}))

	got, err := s.GetTrip(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(testNow))

	members, err := mr.Members(tripDealsKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, members)
}

func TestStore_LegsAndDealsOfTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	tripID := "trip1"
	sink := s.Sink(flight.SearchParams{Origin: "MAD", Destination: "LAX", DepartureDate: "2025-03-14", ReturnDate: "2025-03-23"})

	require.NoError(t, sink.AddTrip(ctx, flight.Trip{ID: tripID, CreatedAt: testNow}))
	legs := []flight.Leg{
		{ID: tripID + "_inbound_c", Trip: tripID, Flight: "c", Inbound: true, Order: 0},
		{ID: tripID + "_outbound_b", Trip: tripID, Flight: "b", Order: 1},
		{ID: tripID + "_outbound_a", Trip: tripID, Flight: "a", Order: 0, ConnectionTime: intPtr(150)},
	}
	for _, l := range legs {
		require.NoError(t, sink.AddLeg(ctx, l))
	}
	// writing the same leg twice must not duplicate it
	require.NoError(t, sink.AddLeg(ctx, legs[1]))

	returnDate, returnTime := "2025-03-23", "15:15"
	deals := []flight.Deal{
		{ID: "d-expensive", Trip: tripID, DepartureDate: "2025-03-14", Price: 1234.56, IsRound: true, ReturnDate: &returnDate, ReturnTime: &returnTime},
		{ID: "d-cheap", Trip: tripID, DepartureDate: "2025-03-14", Price: 1199},
	}
	for _, d := range deals {
		require.NoError(t, sink.AddDeal(ctx, d))
	}

	t.Run("legs come back outbound first in order", func(t *testing.T) {
		got, err := s.LegsOfTrip(ctx, tripID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Flight, got[1].Flight, got[2].Flight})
		require.NotNil(t, got[0].ConnectionTime)
		assert.Equal(t, 150, *got[0].ConnectionTime)
		assert.Nil(t, got[1].ConnectionTime)
		assert.True(t, got[2].Inbound)
	})

	t.Run("connection time null is stored literally", func(t *testing.T) {
		assert.Equal(t, "null", mr.HGet(LegKey(tripID+"_outbound_b"), "connection_time"))
		assert.Equal(t, "false", mr.HGet(LegKey(tripID+"_outbound_b"), "inbound"))
	})

	t.Run("deals come back cheapest first", func(t *testing.T) {
		got, err := s.DealsOfTrip(ctx, tripID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "d-cheap", got[0].ID)
		assert.Nil(t, got[0].ReturnDate)
		assert.Equal(t, "", mr.HGet(DealKey("d-cheap"), "return_date"))
		require.NotNil(t, got[1].ReturnDate)
		assert.Equal(t, "2025-03-23", *got[1].ReturnDate)
		assert.True(t, got[1].IsRound)
	})

	t.Run("indices expire with the trip", func(t *testing.T) {
		assert.Equal(t, mr.TTL(TripKey(tripID)), mr.TTL(tripLegsKey(tripID)))
		assert.Equal(t, mr.TTL(TripKey(tripID)), mr.TTL(tripDealsKey(tripID)))
	})

	t.Run("expired legs drop out of the index read", func(t *testing.T) {
		mr.Del(LegKey(tripID + "_inbound_c"))

		got, err := s.LegsOfTrip(ctx, tripID)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestStore_ScanDeals(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	searchKey := "LAX|JFK|2025-03-10|oneway"

	for i := 0; i < 250; i++ {
		source := "skyscanner"
		if i%2 == 1 {
			source = "kiwi"
		}
		id := flight.DealID(searchKey, source, fmt.Sprintf("p%03d", i), "trip")
		require.NoError(t, s.SaveDeal(ctx, flight.Deal{ID: id, Trip: "trip", Source: source, DepartureDate: "2025-03-10", Price: float64(i + 1)}))
	}
	other := flight.DealID("LAX|JFK|2025-03-11|oneway", "kiwi", "p", "trip")
	require.NoError(t, s.SaveDeal(ctx, flight.Deal{ID: other, Trip: "trip", DepartureDate: "2025-03-11", Price: 1}))

	t.Run("all sources of a search across scan pages", func(t *testing.T) {
		deals, err := s.ScanDeals(ctx, flight.DealPrefix(searchKey, ""))
		require.NoError(t, err)
		assert.Len(t, deals, 250)
	})

	t.Run("one source", func(t *testing.T) {
		deals, err := s.ScanDeals(ctx, flight.DealPrefix(searchKey, "kiwi"))
		require.NoError(t, err)
		assert.Len(t, deals, 125)
		for _, d := range deals {
			assert.Equal(t, "kiwi", d.Source)
		}
	})

	t.Run("no match is empty, not an error", func(t *testing.T) {
		deals, err := s.ScanDeals(ctx, flight.DealPrefix("SFO|JFK|2025-03-10|oneway", ""))
		require.NoError(t, err)
		assert.Empty(t, deals)
	})
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	for i := 0; i < 130; i++ {
		require.NoError(t, s.SaveFlight(ctx, flight.Flight{ID: fmt.Sprintf("F%d", i), DepartureDate: "2025-03-10"}))
	}
	require.NoError(t, s.SaveLeg(ctx, flight.Leg{ID: "t_outbound_F1", Trip: "t", Flight: "F1"}, "2025-03-10"))
	require.NoError(t, mr.Set(FetchKey("kiwi-1"), "{}"))
	require.NoError(t, mr.Set("asynq:unrelated", "keep"))

	deleted, err := s.Clear(ctx)

	require.NoError(t, err)
	assert.Equal(t, 130+2+1, deleted)
	assert.Equal(t, []string{"asynq:unrelated"}, mr.Keys())
}

func TestStore_ClearSpansManyDeleteBatches(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	for i := 0; i < 3*deleteBatch+17; i++ {
		require.NoError(t, s.SaveDeal(ctx, flight.Deal{ID: fmt.Sprintf("kiwi_D%03d", i), Trip: "t", DepartureDate: "2025-03-10"}))
	}

	deleted, err := s.Clear(ctx)

	require.NoError(t, err)
	// deals plus the trip's deal index
	assert.Equal(t, 3*deleteBatch+17+1, deleted)
	assert.Empty(t, mr.Keys())

	again, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}
