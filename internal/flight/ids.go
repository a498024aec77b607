package flight

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// OneWaySentinel stands in for the return date of one-way searches.
const OneWaySentinel = "oneway"

// FlightID identifies a segment by its number, origin and scheduled departure.
// Seconds are dropped from the departure time and colons become dashes so the id is key-safe.
func FlightID(flightNumber, origin, departureDate, departureTime string) string {
	clock := departureTime
	if parts := strings.Split(clock, ":"); len(parts) > 2 {
		clock = strings.Join(parts[:2], ":")
	}
	clock = strings.ReplaceAll(clock, ":", "-")

	return fmt.Sprintf("%s_%s_%s_%s", flightNumber, origin, departureDate, clock)
}

// TripID hashes the sorted flight ids, so the input order does not matter.
func TripID(flightIDs []string) string {
	sorted := make([]string, len(flightIDs))
	copy(sorted, flightIDs)
	sort.Strings(sorted)

	hash := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return fmt.Sprintf("%x", hash[:16])
}

// LegID is prefixed by the trip id so all legs of a trip share a key prefix.
func LegID(tripID string, direction Direction, flightID string) string {
	return fmt.Sprintf("%s_%s_%s", tripID, direction, flightID)
}

// SearchKey is origin|destination|departureDate|returnDate, with the one-way sentinel when there is no return.
func SearchKey(p SearchParams) string {
	returnDate := p.ReturnDate
	if returnDate == "" {
		returnDate = OneWaySentinel
	}
	return strings.Join([]string{
		strings.ToUpper(p.Origin),
		strings.ToUpper(p.Destination),
		p.DepartureDate,
		returnDate,
	}, "|")
}

// DealID is prefixed by the search key and source so one search's deals can be found by prefix scan.
func DealID(searchKey, source, provider, tripID string) string {
	return fmt.Sprintf("%s_%s_%s_%s", searchKey, source, provider, tripID)
}

// DealPrefix is the id prefix shared by every deal of a search, optionally narrowed to one source.
func DealPrefix(searchKey, source string) string {
	if source == "" {
		return searchKey + "_"
	}
	return fmt.Sprintf("%s_%s_", searchKey, source)
}

// FetchJobKey identifies the fetch job for one source and search window.
func FetchJobKey(source, searchKey string) string {
	hash := sha256.Sum256([]byte(source + "|" + searchKey))
	return fmt.Sprintf("%s-%x", source, hash[:8])
}
