package flight

import "time"

// Direction is the role a leg plays inside a trip.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// SearchParams identifies one route/date search window. ReturnDate is empty for one-way searches.
type SearchParams struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
}

func (p SearchParams) IsRound() bool {
	return p.ReturnDate != ""
}

// Key returns the search key shared by every deal found for this window.
func (p SearchParams) Key() string {
	return SearchKey(p)
}

// Flight is one operated segment.
type Flight struct {
	ID            string    `json:"id"`
	FlightNumber  string    `json:"flight_number"`
	Airline       string    `json:"airline"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureDate string    `json:"departure_date"`
	DepartureTime string    `json:"departure_time"`
	ArrivalDate   string    `json:"arrival_date"`
	ArrivalTime   string    `json:"arrival_time"`
	Duration      int       `json:"duration"`
	CreatedAt     time.Time `json:"created_at"`
}

// Trip is an itinerary; its detail lives in its legs.
type Trip struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Leg places a flight inside a trip. ConnectionTime is nil for the last leg of a direction.
type Leg struct {
	ID             string    `json:"id"`
	Trip           string    `json:"trip"`
	Flight         string    `json:"flight"`
	Inbound        bool      `json:"inbound"`
	Order          int       `json:"order"`
	ConnectionTime *int      `json:"connection_time"`
	CreatedAt      time.Time `json:"created_at"`
}

func (l Leg) Direction() Direction {
	if l.Inbound {
		return Inbound
	}
	return Outbound
}

// Deal is a priced offer from one provider for one trip.
type Deal struct {
	ID            string    `json:"id"`
	Trip          string    `json:"trip"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	IsRound       bool      `json:"is_round"`
	DepartureDate string    `json:"departure_date"`
	DepartureTime string    `json:"departure_time"`
	ReturnDate    *string   `json:"return_date"`
	ReturnTime    *string   `json:"return_time"`
	Source        string    `json:"source"`
	Provider      string    `json:"provider"`
	Price         float64   `json:"price"`
	Link          string    `json:"link"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
