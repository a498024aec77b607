package api

import (
	"strings"

	"flightdeals/internal/flight"
)

// SearchRequest is the route/date window every fetch and search endpoint takes.
type SearchRequest struct {
	Origin        string `json:"origin" binding:"required,len=3,alpha"`
	Destination   string `json:"destination" binding:"required,len=3,alpha"`
	DepartureDate string `json:"departure_date" binding:"required,datetime=2006-01-02"`
	ReturnDate    string `json:"return_date" binding:"omitempty,datetime=2006-01-02"`
}

func (r SearchRequest) params() (flight.SearchParams, error) {
	if r.ReturnDate != "" && r.ReturnDate < r.DepartureDate {
		return flight.SearchParams{}, validationError("return_date %s is before departure_date %s", r.ReturnDate, r.DepartureDate)
	}
	if strings.EqualFold(r.Origin, r.Destination) {
		return flight.SearchParams{}, validationError("origin and destination must differ")
	}

	return flight.SearchParams{
		Origin:        strings.ToUpper(r.Origin),
		Destination:   strings.ToUpper(r.Destination),
		DepartureDate: r.DepartureDate,
		ReturnDate:    r.ReturnDate,
	}, nil
}
