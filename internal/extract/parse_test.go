package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]int{
		"3h 30m":   210,
		"3h30m":    210,
		"3:30":     210,
		"195m":     195,
		"195":      195,
		"":         0,
		"   ":      0,
		"14h 05":   845,
		"2h":       120,
		"2h 15min": 135,
		"n/a":      0,
	}

	for in, want := range cases {
		assert.Equal(t, want, ParseDuration(in), "ParseDuration(%q)", in)
	}
}

func TestParseConnectionTime(t *testing.T) {
	t.Run("hours without a minute unit", func(t *testing.T) {
		got := ParseConnectionTime("7h 50")
		require.NotNil(t, got)
		assert.Equal(t, 470, *got)
	})

	t.Run("hours and minutes", func(t *testing.T) {
		got := ParseConnectionTime("2h 30m")
		require.NotNil(t, got)
		assert.Equal(t, 150, *got)
	})

	t.Run("minutes only", func(t *testing.T) {
		got := ParseConnectionTime("45m")
		require.NotNil(t, got)
		assert.Equal(t, 45, *got)
	})

	t.Run("bare number is minutes", func(t *testing.T) {
		got := ParseConnectionTime("55")
		require.NotNil(t, got)
		assert.Equal(t, 55, *got)
	})

	t.Run("empty and unparseable are nil", func(t *testing.T) {
		assert.Nil(t, ParseConnectionTime(""))
		assert.Nil(t, ParseConnectionTime("self transfer"))
		assert.Nil(t, ParseConnectionTime("0m"))
	})
}

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		"450.99":         450.99,
		"€1,234.56":      1234.56,
		"$500":           500,
		"£2,000":         2000,
		"€1.099,50":      1099.5,
		"EUR 1.234":      1234,
		"from 89 Select": 89,
		"12.5":           12.5,
		"1.5":            1.5,
		"€99.9":          99.9,
		"1234.5":         1234.5,
		"1,234.5":        1234.5,
		"€1.234,5":       1234.5,
	}
	for in, want := range cases {
		got, ok := ParsePrice(in)
		assert.True(t, ok, "ParsePrice(%q)", in)
		assert.InDelta(t, want, got, 0.0001, "ParsePrice(%q)", in)
	}

	for _, in := range []string{"", "Sold out", "€0"} {
		_, ok := ParsePrice(in)
		assert.False(t, ok, "ParsePrice(%q)", in)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]string{
		"14:30":    "14:30",
		"9:05":     "09:05",
		"09:05:00": "09:05",
		"3:15 PM":  "15:15",
		"12:10 am": "00:10",
		"12:45 PM": "12:45",
	}
	for in, want := range cases {
		got, ok := ParseClock(in)
		assert.True(t, ok, "ParseClock(%q)", in)
		assert.Equal(t, want, got, "ParseClock(%q)", in)
	}

	for _, in := range []string{"", "noon", "25:00", "13:00 PM"} {
		_, ok := ParseClock(in)
		assert.False(t, ok, "ParseClock(%q)", in)
	}
}

func TestParseDate(t *testing.T) {
	t.Run("heading form", func(t *testing.T) {
		d, ok := ParseDate("Outbound Sat, 22 Nov 2025")
		require.True(t, ok)
		assert.Equal(t, "2025-11-22", formatDate(d))
	})

	t.Run("case insensitive month", func(t *testing.T) {
		d, ok := ParseDate("RETURN 3 DEC 2025")
		require.True(t, ok)
		assert.Equal(t, "2025-12-03", formatDate(d))
	})

	t.Run("iso form", func(t *testing.T) {
		d, ok := ParseDate("arrives 2025-01-02")
		require.True(t, ok)
		assert.Equal(t, "2025-01-02", formatDate(d))
	})

	t.Run("invalid day", func(t *testing.T) {
		_, ok := ParseDate("31 Feb 2025")
		assert.False(t, ok)
	})

	t.Run("no date", func(t *testing.T) {
		_, ok := ParseDate("Outbound")
		assert.False(t, ok)
	})
}

func TestArrivalDate(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("overnight rolls to next day", func(t *testing.T) {
		assert.Equal(t, "2025-03-11", formatDate(ArrivalDate(day, "23:50", "01:15")))
	})

	t.Run("same day", func(t *testing.T) {
		assert.Equal(t, "2025-03-10", formatDate(ArrivalDate(day, "14:30", "17:45")))
	})

	t.Run("month boundary", func(t *testing.T) {
		end := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, "2025-03-01", formatDate(ArrivalDate(end, "22:00", "06:00")))
	})
}

func TestAirportCode(t *testing.T) {
	code, ok := AirportCode("LAX Los Angeles International")
	assert.True(t, ok)
	assert.Equal(t, "LAX", code)

	_, ok = AirportCode("Los Angeles")
	assert.False(t, ok)
}
