package extract

import (
	"context"
	"strings"
	"time"

	"flightdeals/internal/flight"
)

// row is one leg row as read from markup, before dating and identity.
type row struct {
	FlightNumber  string
	Airline       string
	Origin        string
	Destination   string
	DepartureTime string
	ArrivalTime   string
	// ArrivalDate is set only when the markup states it explicitly.
	ArrivalDate time.Time
	Duration    string
	Connection  string
}

type section struct {
	Direction flight.Direction
	Date      time.Time
	Rows      []row
}

type offer struct {
	Provider string
	Price    float64
	Link     string
}

// itinerary is everything one result modal describes.
type itinerary struct {
	Sections []section
	Offers   []offer
}

// emitter assembles itineraries into entities and pushes them to the sink.
// A flight seen earlier on the same page is not pushed again.
type emitter struct {
	source      string
	params      flight.SearchParams
	searchKey   string
	sink        Sink
	now         time.Time
	seenFlights map[string]struct{}
}

func newEmitter(source string, params flight.SearchParams, sink Sink, now time.Time) *emitter {
	return &emitter{
		source:      source,
		params:      params,
		searchKey:   params.Key(),
		sink:        sink,
		now:         now.UTC(),
		seenFlights: make(map[string]struct{}),
	}
}

// emit writes the itinerary's flights, trip, legs and one deal per offer, returning the deal count.
// A round trip's return date and time are the departure of its first inbound flight, not the arrival of its last.
func (e *emitter) emit(ctx context.Context, it itinerary) (int, error) {
	offers := cheapestPerProvider(it.Offers)
	if len(offers) == 0 {
		return 0, nil
	}

	flightsByDir := make(map[flight.Direction][]flight.Flight, 2)
	connections := make(map[flight.Direction][]*int, 2)
	var flightIDs []string

	for _, sec := range it.Sections {
		flights := datedFlights(sec, e.now)
		flightsByDir[sec.Direction] = append(flightsByDir[sec.Direction], flights...)
		for i, r := range sec.Rows {
			var conn *int
			if i < len(sec.Rows)-1 {
				conn = ParseConnectionTime(r.Connection)
			}
			connections[sec.Direction] = append(connections[sec.Direction], conn)
		}
		for _, f := range flights {
			flightIDs = append(flightIDs, f.ID)
		}
	}

	outbound := flightsByDir[flight.Outbound]
	if len(outbound) == 0 {
		return 0, nil
	}
	inbound := flightsByDir[flight.Inbound]

	for _, f := range append(append([]flight.Flight{}, outbound...), inbound...) {
		if _, ok := e.seenFlights[f.ID]; ok {
			continue
		}
		if err := e.sink.AddFlight(ctx, f); err != nil {
			return 0, err
		}
		e.seenFlights[f.ID] = struct{}{}
	}

	trip := flight.Trip{ID: flight.TripID(flightIDs), CreatedAt: e.now}
	if err := e.sink.AddTrip(ctx, trip); err != nil {
		return 0, err
	}

	for _, dir := range []flight.Direction{flight.Outbound, flight.Inbound} {
		for order, f := range flightsByDir[dir] {
			leg := flight.Leg{
				ID:             flight.LegID(trip.ID, dir, f.ID),
				Trip:           trip.ID,
				Flight:         f.ID,
				Inbound:        dir == flight.Inbound,
				Order:          order,
				ConnectionTime: connections[dir][order],
				CreatedAt:      e.now,
			}
			if err := e.sink.AddLeg(ctx, leg); err != nil {
				return 0, err
			}
		}
	}

	origin, destination := strings.ToUpper(e.params.Origin), strings.ToUpper(e.params.Destination)
	if origin == "" {
		origin = outbound[0].Origin
	}
	if destination == "" {
		destination = outbound[len(outbound)-1].Destination
	}

	var returnDate, returnTime *string
	if len(inbound) > 0 {
		returnDate, returnTime = &inbound[0].DepartureDate, &inbound[0].DepartureTime
	}

	for _, o := range offers {
		deal := flight.Deal{
			ID:            flight.DealID(e.searchKey, e.source, o.Provider, trip.ID),
			Trip:          trip.ID,
			Origin:        origin,
			Destination:   destination,
			IsRound:       len(inbound) > 0,
			DepartureDate: outbound[0].DepartureDate,
			DepartureTime: outbound[0].DepartureTime,
			ReturnDate:    returnDate,
			ReturnTime:    returnTime,
			Source:        e.source,
			Provider:      o.Provider,
			Price:         o.Price,
			Link:          o.Link,
			CreatedAt:     e.now,
			UpdatedAt:     e.now,
		}
		if err := e.sink.AddDeal(ctx, deal); err != nil {
			return 0, err
		}
	}

	return len(offers), nil
}

// datedFlights turns a section's rows into flights. The first row departs on the section date; each later
// row departs on the previous arrival date, rolling one more day when it departs earlier than the
// previous arrival.
func datedFlights(sec section, now time.Time) []flight.Flight {
	flights := make([]flight.Flight, 0, len(sec.Rows))
	date := sec.Date
	prevArrival := ""

	for _, r := range sec.Rows {
		departureDate := date
		if prevArrival != "" && r.DepartureTime < prevArrival {
			departureDate = departureDate.AddDate(0, 0, 1)
		}

		arrivalDate := ArrivalDate(departureDate, r.DepartureTime, r.ArrivalTime)
		if !r.ArrivalDate.IsZero() && !r.ArrivalDate.Before(departureDate) {
			arrivalDate = r.ArrivalDate
		}

		dep := formatDate(departureDate)
		flights = append(flights, flight.Flight{
			ID:            flight.FlightID(r.FlightNumber, r.Origin, dep, r.DepartureTime),
			FlightNumber:  r.FlightNumber,
			Airline:       r.Airline,
			Origin:        r.Origin,
			Destination:   r.Destination,
			DepartureDate: dep,
			DepartureTime: r.DepartureTime,
			ArrivalDate:   formatDate(arrivalDate),
			ArrivalTime:   r.ArrivalTime,
			Duration:      ParseDuration(r.Duration),
			CreatedAt:     now,
		})

		date = arrivalDate
		prevArrival = r.ArrivalTime
	}

	return flights
}

// cheapestPerProvider keeps one offer per provider, the lowest priced, in first-seen order.
// Deal identity does not include the price, so two prices from one provider would overwrite each other.
func cheapestPerProvider(offers []offer) []offer {
	index := make(map[string]int, len(offers))
	out := make([]offer, 0, len(offers))

	for _, o := range offers {
		if o.Provider == "" || o.Price <= 0 {
			continue
		}
		if i, ok := index[o.Provider]; ok {
			if o.Price < out[i].Price {
				out[i] = o
			}
			continue
		}
		index[o.Provider] = len(out)
		out = append(out, o)
	}
	return out
}
