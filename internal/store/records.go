package store

import (
	"strconv"
	"time"

	"flightdeals/internal/flight"
)

const nullValue = "null"

func flightFields(f flight.Flight) map[string]any {
	return map[string]any{
		"id":             f.ID,
		"flight_number":  f.FlightNumber,
		"airline":        f.Airline,
		"origin":         f.Origin,
		"destination":    f.Destination,
		"departure_date": f.DepartureDate,
		"departure_time": f.DepartureTime,
		"arrival_date":   f.ArrivalDate,
		"arrival_time":   f.ArrivalTime,
		"duration":       strconv.Itoa(f.Duration),
		"created_at":     formatTime(f.CreatedAt),
	}
}

func decodeFlight(h map[string]string) flight.Flight {
	return flight.Flight{
		ID:            h["id"],
		FlightNumber:  h["flight_number"],
		Airline:       h["airline"],
		Origin:        h["origin"],
		Destination:   h["destination"],
		DepartureDate: h["departure_date"],
		DepartureTime: h["departure_time"],
		ArrivalDate:   h["arrival_date"],
		ArrivalTime:   h["arrival_time"],
		Duration:      parseInt(h["duration"]),
		CreatedAt:     parseTime(h["created_at"]),
	}
}

func tripFields(t flight.Trip) map[string]any {
	return map[string]any{
		"id":         t.ID,
		"created_at": formatTime(t.CreatedAt),
	}
}

func decodeTrip(h map[string]string) flight.Trip {
	return flight.Trip{ID: h["id"], CreatedAt: parseTime(h["created_at"])}
}

func legFields(l flight.Leg) map[string]any {
	conn := nullValue
	if l.ConnectionTime != nil {
		conn = strconv.Itoa(*l.ConnectionTime)
	}
	return map[string]any{
		"id":              l.ID,
		"trip":            l.Trip,
		"flight":          l.Flight,
		"inbound":         strconv.FormatBool(l.Inbound),
		"order":           strconv.Itoa(l.Order),
		"connection_time": conn,
		"created_at":      formatTime(l.CreatedAt),
	}
}

func decodeLeg(h map[string]string) flight.Leg {
	l := flight.Leg{
		ID:        h["id"],
		Trip:      h["trip"],
		Flight:    h["flight"],
		Inbound:   h["inbound"] == "true",
		Order:     parseInt(h["order"]),
		CreatedAt: parseTime(h["created_at"]),
	}
	if v := h["connection_time"]; v != "" && v != nullValue {
		if n, err := strconv.Atoi(v); err == nil {
			l.ConnectionTime = &n
		}
	}
	return l
}

func dealFields(d flight.Deal) map[string]any {
	return map[string]any{
		"id":             d.ID,
		"trip":           d.Trip,
		"origin":         d.Origin,
		"destination":    d.Destination,
		"is_round":       strconv.FormatBool(d.IsRound),
		"departure_date": d.DepartureDate,
		"departure_time": d.DepartureTime,
		"return_date":    deref(d.ReturnDate),
		"return_time":    deref(d.ReturnTime),
		"source":         d.Source,
		"provider":       d.Provider,
		"price":          strconv.FormatFloat(d.Price, 'f', -1, 64),
		"link":           d.Link,
		"created_at":     formatTime(d.CreatedAt),
		"updated_at":     formatTime(d.UpdatedAt),
	}
}

func decodeDeal(h map[string]string) flight.Deal {
	price, _ := strconv.ParseFloat(h["price"], 64)
	return flight.Deal{
		ID:            h["id"],
		Trip:          h["trip"],
		Origin:        h["origin"],
		Destination:   h["destination"],
		IsRound:       h["is_round"] == "true",
		DepartureDate: h["departure_date"],
		DepartureTime: h["departure_time"],
		ReturnDate:    nullable(h["return_date"]),
		ReturnTime:    nullable(h["return_time"]),
		Source:        h["source"],
		Provider:      h["provider"],
		Price:         price,
		Link:          h["link"],
		CreatedAt:     parseTime(h["created_at"]),
		UpdatedAt:     parseTime(h["updated_at"]),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" || s == nullValue {
		return nil
	}
	return &s
}
