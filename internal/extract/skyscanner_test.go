package extract

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
	"flightdeals/pkg/metrics"
)

func newTestSkyscanner(m *metrics.Metrics) *SkyscannerExtractor {
	x := NewSkyscannerExtractor(logger.Nop(), m)
	x.now = func() time.Time { return fixedNow }
	return x
}

func TestSkyscannerExtractor_OneWay(t *testing.T) {
	ctx := context.Background()
	params := flight.SearchParams{Origin: "LAX", Destination: "JFK", DepartureDate: "2025-03-10"}
	page := fixture(t, "skyscanner_oneway.html")

	t.Run("produces one flight, trip, leg and deal", func(t *testing.T) {
		// Arrange
		sink := newMemorySink()

		// Act
		n, err := newTestSkyscanner(nil).Extract(ctx, page, params, sink)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, sink.flights, 1)
		require.Len(t, sink.trips, 1)
		require.Len(t, sink.legs, 1)
		require.Len(t, sink.deals, 1)

		f := sink.flights["AA123_LAX_2025-03-10_14-30"]
		assert.Equal(t, "AA123", f.FlightNumber)
		assert.Equal(t, "American Airlines", f.Airline)
		assert.Equal(t, "LAX", f.Origin)
		assert.Equal(t, "JFK", f.Destination)
		assert.Equal(t, "2025-03-10", f.ArrivalDate)
		assert.Equal(t, "17:45", f.ArrivalTime)
		assert.Equal(t, 195, f.Duration)

		tripID := flight.TripID([]string{f.ID})
		legs := sink.legsOf(tripID, false)
		require.Len(t, legs, 1)
		assert.Equal(t, 0, legs[0].Order)
		assert.Nil(t, legs[0].ConnectionTime)
		assert.Equal(t, f.ID, legs[0].Flight)

		for _, d := range sink.deals {
			assert.Equal(t, flight.DealID(params.Key(), SourceSkyscanner, "Expedia", tripID), d.ID)
			assert.Equal(t, 450.99, d.Price)
			assert.False(t, d.IsRound)
			assert.Nil(t, d.ReturnDate)
			assert.Nil(t, d.ReturnTime)
			assert.Equal(t, "Expedia", d.Provider)
			assert.Equal(t, SourceSkyscanner, d.Source)
			assert.Equal(t, "https://www.expedia.com/book?id=42", d.Link)
			assert.Equal(t, "2025-03-10", d.DepartureDate)
			assert.Equal(t, "14:30", d.DepartureTime)
		}
	})

	t.Run("re-running converges on the same ids", func(t *testing.T) {
		sink := newMemorySink()
		x := newTestSkyscanner(nil)

		_, err := x.Extract(ctx, page, params, sink)
		require.NoError(t, err)
		first := sink.ids()

		_, err = x.Extract(ctx, page, params, sink)
		require.NoError(t, err)

		assert.Equal(t, first, sink.ids())
	})

	t.Run("trip is written before its legs and deals", func(t *testing.T) {
		sink := newMemorySink()

		_, err := newTestSkyscanner(nil).Extract(ctx, page, params, sink)

		require.NoError(t, err)
		assert.Equal(t, []string{"flight", "trip", "leg", "deal"}, sink.calls)
	})
}

func TestSkyscannerExtractor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	params := flight.SearchParams{Origin: "MAD", Destination: "LAX", DepartureDate: "2025-03-14", ReturnDate: "2025-03-23"}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	sink := newMemorySink()

	n, err := newTestSkyscanner(m).Extract(ctx, fixture(t, "skyscanner_round.html"), params, sink)

	require.NoError(t, err)

	t.Run("keeps the cheapest offer per provider", func(t *testing.T) {
		assert.Equal(t, 2, n)
		require.Len(t, sink.deals, 2)

		prices := map[string]float64{}
		for _, d := range sink.deals {
			prices[d.Provider] = d.Price
		}
		assert.Equal(t, map[string]float64{"Iberia": 1234.56, "eDreams": 1199.0}, prices)
	})

	t.Run("splits legs into two zero based sequences", func(t *testing.T) {
		require.Len(t, sink.trips, 1)
		var tripID string
		for id := range sink.trips {
			tripID = id
		}

		outbound := sink.legsOf(tripID, false)
		inbound := sink.legsOf(tripID, true)
		require.Len(t, outbound, 2)
		require.Len(t, inbound, 1)
		assert.Equal(t, 0, outbound[0].Order)
		assert.Equal(t, 1, outbound[1].Order)
		assert.Equal(t, 0, inbound[0].Order)

		require.NotNil(t, outbound[0].ConnectionTime)
		assert.Equal(t, 150, *outbound[0].ConnectionTime)
		assert.Nil(t, outbound[1].ConnectionTime)
		assert.Nil(t, inbound[0].ConnectionTime)
	})

	t.Run("dates overnight and explicit arrivals", func(t *testing.T) {
		redEye := sink.flights["IB6252_MAD_2025-03-14_16-40"]
		assert.Equal(t, "2025-03-15", redEye.ArrivalDate)

		onward, ok := sink.flights["AA33_JFK_2025-03-15_08-30"]
		require.True(t, ok, "connecting flight departs on the previous arrival date")
		assert.Equal(t, "2025-03-15", onward.ArrivalDate)

		back := sink.flights["IB348_LAX_2025-03-23_15-15"]
		assert.Equal(t, "15:15", back.DepartureTime)
		assert.Equal(t, "11:20", back.ArrivalTime)
		assert.Equal(t, "2025-03-24", back.ArrivalDate)
		assert.Equal(t, 665, back.Duration)
	})

	t.Run("marks deals as round with return edge", func(t *testing.T) {
		for _, d := range sink.deals {
			assert.True(t, d.IsRound)
			require.NotNil(t, d.ReturnDate)
			require.NotNil(t, d.ReturnTime)
			assert.Equal(t, "2025-03-23", *d.ReturnDate)
			assert.Equal(t, "15:15", *d.ReturnTime)
			assert.Equal(t, "MAD", d.Origin)
			assert.Equal(t, "LAX", d.Destination)
		}
	})

	t.Run("skips malformed modals without aborting the page", func(t *testing.T) {
		assert.Len(t, sink.flights, 3)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.SkippedMarkup.WithLabelValues(SourceSkyscanner, "modal")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedMarkup.WithLabelValues(SourceSkyscanner, "row")))
	})
}

func TestSkyscannerExtractor_SinkFailure(t *testing.T) {
	sink := newMemorySink()
	sink.failOn = "trip"
	params := flight.SearchParams{Origin: "LAX", Destination: "JFK", DepartureDate: "2025-03-10"}

	_, err := newTestSkyscanner(nil).Extract(context.Background(), fixture(t, "skyscanner_oneway.html"), params, sink)

	assert.ErrorContains(t, err, "store unavailable")
	assert.Empty(t, sink.deals)
}

func TestSkyscannerExtractor_EmptyPage(t *testing.T) {
	sink := newMemorySink()

	n, err := newTestSkyscanner(nil).Extract(context.Background(), "<html><body>No results</body></html>", flight.SearchParams{}, sink)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sink.calls)
}

func TestBookingLink(t *testing.T) {
	assert.Equal(t, "https://a.example/x?y=1", bookingLink("/r?u=https%3A%2F%2Fa.example%2Fx%3Fy%3D1"))
	assert.Equal(t, "https://direct.example", bookingLink("https://direct.example"))
	assert.Empty(t, bookingLink(""))
}
