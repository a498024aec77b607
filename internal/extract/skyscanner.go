package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
	"flightdeals/pkg/metrics"
)

const SourceSkyscanner = "skyscanner"

var flightNumberRe = regexp.MustCompile(`^[A-Z0-9]{2}\d{1,5}[A-Z]?$`)

// SkyscannerExtractor reads the poll source's result fragment: one div.search_modal per itinerary, with
// provider offers listed under div._similar.
type SkyscannerExtractor struct {
	base
}

func NewSkyscannerExtractor(logger logger.Client, metrics *metrics.Metrics) *SkyscannerExtractor {
	return &SkyscannerExtractor{base: base{
		source:  SourceSkyscanner,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}}
}

func (x *SkyscannerExtractor) Extract(ctx context.Context, page string, params flight.SearchParams, sink Sink) (int, error) {
	return x.run(ctx, page, params, sink,
		func(doc *goquery.Document) *goquery.Selection { return doc.Find("div.search_modal") },
		x.modal,
	)
}

func (x *SkyscannerExtractor) modal(_ int, modal *goquery.Selection) Outcome[itinerary] {
	outHeading, retHeading := skyscannerHeadings(modal)
	if outHeading == nil {
		return skipped[itinerary]("no outbound heading")
	}

	out := x.section(outHeading, flight.Outbound)
	if !out.OK {
		return skipped[itinerary]("outbound: %s", out.Reason)
	}
	it := itinerary{Sections: []section{out.Value}}

	if retHeading != nil {
		ret := x.section(retHeading, flight.Inbound)
		if !ret.OK {
			return skipped[itinerary]("inbound: %s", ret.Reason)
		}
		it.Sections = append(it.Sections, ret.Value)
	}

	it.Offers = skyscannerOffers(modal)
	if len(it.Offers) == 0 {
		return skipped[itinerary]("no recoverable price")
	}
	return found(it)
}

func skyscannerHeadings(modal *goquery.Selection) (outbound, inbound *goquery.Selection) {
	modal.Find("p._heading").Each(func(_ int, h *goquery.Selection) {
		t := h.Text()
		switch {
		case strings.Contains(t, "Book Your Ticket"):
		case outbound == nil && strings.Contains(t, "Outbound") && !strings.Contains(t, "Return"):
			outbound = h
		case inbound == nil && strings.Contains(t, "Return"):
			inbound = h
		}
	})
	return outbound, inbound
}

func (x *SkyscannerExtractor) section(heading *goquery.Selection, dir flight.Direction) Outcome[section] {
	date, ok := ParseDate(heading.Text())
	if !ok {
		return skipped[section]("heading without date")
	}

	panel := heading.NextAllFiltered("div._panel").First()
	if panel.Length() == 0 {
		return skipped[section]("no panel after heading")
	}

	sec := section{Direction: dir, Date: date}
	panel.Find("div._panel_body").Each(func(i int, body *goquery.Selection) {
		r := skyscannerRow(body)
		if !r.OK {
			x.skip("row", i, r.Reason)
			return
		}
		sec.Rows = append(sec.Rows, r.Value)
	})

	if len(sec.Rows) == 0 {
		return skipped[section]("no readable legs")
	}
	return found(sec)
}

// skyscannerRow reads one leg. The flight line is "Airline Name FLIGHTNO".
func skyscannerRow(body *goquery.Selection) Outcome[row] {
	head := strings.Fields(text(body.Find("div._head small").First()))
	if len(head) == 0 {
		return skipped[row]("no flight line")
	}
	number := head[len(head)-1]
	if !flightNumberRe.MatchString(number) {
		return skipped[row]("bad flight number %q", number)
	}

	r := row{
		FlightNumber: number,
		Airline:      strings.Join(head[:len(head)-1], " "),
		Duration:     text(body.Find("div.c1 p").First()),
		Connection:   text(body.Find("p.connect_airport span").First()),
	}

	times := body.Find("div.c3 p")
	if times.Length() < 2 {
		return skipped[row]("missing times")
	}
	var ok bool
	if r.DepartureTime, ok = ParseClock(text(times.First())); !ok {
		return skipped[row]("bad departure time")
	}
	if r.ArrivalTime, ok = ParseClock(text(times.Last())); !ok {
		return skipped[row]("bad arrival time")
	}

	airports := body.Find("div.c4 p")
	if airports.Length() < 2 {
		return skipped[row]("missing airports")
	}
	if r.Origin, ok = AirportCode(text(airports.First())); !ok {
		return skipped[row]("bad origin airport")
	}
	if r.Destination, ok = AirportCode(text(airports.Last())); !ok {
		return skipped[row]("bad destination airport")
	}

	if summary := body.Find("p._summary"); summary.Length() > 0 {
		if d, ok := ParseDate(summary.Text()); ok {
			r.ArrivalDate = d
		}
	}

	return found(r)
}

// skyscannerOffers reads div._similar > div entries: provider name, then price with the booking link.
func skyscannerOffers(modal *goquery.Selection) []offer {
	var offers []offer
	modal.Find("div._similar > div").Each(func(_ int, item *goquery.Selection) {
		ps := item.Find("p")
		if ps.Length() < 2 {
			return
		}

		priceP := ps.Eq(1)
		price, ok := ParsePrice(text(priceP))
		if !ok {
			return
		}

		href, _ := priceP.Find("a").Attr("href")
		offers = append(offers, offer{
			Provider: text(ps.First()),
			Price:    price,
			Link:     bookingLink(href),
		})
	})
	return offers
}

// bookingLink unwraps the redirect target carried in the u= parameter.
func bookingLink(href string) string {
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		if target := u.Query().Get("u"); target != "" {
			return target
		}
	}
	return href
}
