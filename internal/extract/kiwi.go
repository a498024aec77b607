package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
	"flightdeals/pkg/metrics"
)

const SourceKiwi = "kiwi"

// kiwiFlightRe splits "Transavia France TO 4061" into airline, carrier code and number.
var kiwiFlightRe = regexp.MustCompile(`^(.+?)\s+([A-Z0-9]{2})\s+(\d+)`)

// KiwiExtractor reads the immediate source's result page: one div.list-item.row per itinerary, priced by
// the item itself and detailed in a nested modal. Kiwi is both the source and the only provider.
type KiwiExtractor struct {
	base
}

func NewKiwiExtractor(logger logger.Client, metrics *metrics.Metrics) *KiwiExtractor {
	return &KiwiExtractor{base: base{
		source:  SourceKiwi,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}}
}

func (x *KiwiExtractor) Extract(ctx context.Context, page string, params flight.SearchParams, sink Sink) (int, error) {
	return x.run(ctx, page, params, sink,
		func(doc *goquery.Document) *goquery.Selection { return doc.Find("div.list-item.row") },
		func(_ int, item *goquery.Selection) Outcome[itinerary] { return x.item(item, params) },
	)
}

func (x *KiwiExtractor) item(item *goquery.Selection, params flight.SearchParams) Outcome[itinerary] {
	price, ok := kiwiPrice(item)
	if !ok {
		return skipped[itinerary]("no recoverable price")
	}

	modal := item.Find("div.modal div.search_modal").First()
	if modal.Length() == 0 {
		return skipped[itinerary]("no detail modal")
	}

	outHeading, retHeading := kiwiHeadings(modal)
	if outHeading == nil {
		return skipped[itinerary]("no outbound heading")
	}

	out := x.section(outHeading, flight.Outbound, "Return")
	if !out.OK {
		return skipped[itinerary]("outbound: %s", out.Reason)
	}
	it := itinerary{Sections: []section{out.Value}}

	if params.IsRound() && retHeading != nil {
		ret := x.section(retHeading, flight.Inbound, "Outbound")
		if !ret.OK {
			return skipped[itinerary]("inbound: %s", ret.Reason)
		}
		it.Sections = append(it.Sections, ret.Value)
	}

	link, _ := item.Find("a.modal_responsive").First().Attr("href")
	it.Offers = []offer{{Provider: SourceKiwi, Price: price, Link: strings.TrimSpace(link)}}
	return found(it)
}

// kiwiPrice prefers the data-price attribute, in cents, over the displayed price text.
func kiwiPrice(item *goquery.Selection) (float64, bool) {
	if raw, ok := item.Attr("data-price"); ok {
		if cents, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && cents > 0 {
			return cents / 100, true
		}
	}
	return ParsePrice(text(item.Find("p.prices").First()))
}

func kiwiHeadings(modal *goquery.Selection) (outbound, inbound *goquery.Selection) {
	modal.Find("p._heading").Each(func(_ int, h *goquery.Selection) {
		t := h.Text()
		switch {
		case outbound == nil && strings.Contains(t, "Outbound") && !strings.Contains(t, "Return"):
			outbound = h
		case inbound == nil && strings.Contains(t, "Return"):
			inbound = h
		}
	})
	return outbound, inbound
}

// kiwiPanel returns the first div._panel sibling after heading, stopping at the heading of the
// opposite direction.
func kiwiPanel(heading *goquery.Selection, stopAt string) *goquery.Selection {
	var panel *goquery.Selection
	heading.NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Is("p._heading") && strings.Contains(s.Text(), stopAt) {
			return false
		}
		if s.Is("div._panel") {
			panel = s
			return false
		}
		return true
	})
	return panel
}

func (x *KiwiExtractor) section(heading *goquery.Selection, dir flight.Direction, stopAt string) Outcome[section] {
	date, ok := ParseDate(heading.Text())
	if !ok {
		return skipped[section]("heading without date")
	}

	panel := kiwiPanel(heading, stopAt)
	if panel == nil {
		return skipped[section]("no panel after heading")
	}

	sec := section{Direction: dir, Date: date}
	panel.Find("div._panel_body").Each(func(i int, body *goquery.Selection) {
		if !body.Closest("div._panel").IsSelection(panel) {
			return
		}
		r := kiwiRow(body)
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

func kiwiRow(body *goquery.Selection) Outcome[row] {
	m := kiwiFlightRe.FindStringSubmatch(text(body.Find("div._head small")))
	if m == nil {
		return skipped[row]("no flight line")
	}

	r := row{
		FlightNumber: m[2] + m[3],
		Airline:      strings.TrimSpace(m[1]),
		Duration:     text(body.Find("div.c1 p").First()),
		Connection:   text(body.Find("div._item").First().Find("p.connect_airport span")),
	}

	times := texts(body.Find("div.c3 p"))
	airports := texts(body.Find("div.c4 p"))
	if len(times) < 2 || len(airports) < 2 {
		return skipped[row]("missing times or airports")
	}

	var ok bool
	if r.DepartureTime, ok = ParseClock(times[0]); !ok {
		return skipped[row]("bad departure time")
	}
	if r.ArrivalTime, ok = ParseClock(times[1]); !ok {
		return skipped[row]("bad arrival time")
	}
	if r.Origin, ok = AirportCode(airports[0]); !ok {
		return skipped[row]("bad origin airport")
	}
	if r.Destination, ok = AirportCode(airports[1]); !ok {
		return skipped[row]("bad destination airport")
	}

	return found(r)
}
