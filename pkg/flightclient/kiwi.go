package flightclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flightdeals/internal/extract"
	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
)

// KiwiClient drives the immediate-result protocol: one search page for the token, then a single search
// request whose response is the final page.
type KiwiClient struct {
	portal
	extractor extract.Extractor
}

func NewKiwiClient(httpClient *http.Client, baseURL string, extractor extract.Extractor, logger logger.Client) *KiwiClient {
	return &KiwiClient{
		portal:    newPortal(extract.SourceKiwi, httpClient, baseURL, logger),
		extractor: extractor,
	}
}

func (c *KiwiClient) Fetch(ctx context.Context, params flight.SearchParams, sink extract.Sink) (int, error) {
	sess, err := c.open(ctx, "/portal/kiwi", kiwiQuery(params))
	if err != nil {
		return 0, err
	}

	status, body, err := c.post(ctx, sess, "/portal/kiwi/search", kiwiForm(sess.data, params), map[string]string{
		"Origin": c.baseURL,
	})
	if err != nil {
		return 0, err
	}
	if !ok2xx(status) {
		return 0, &StatusError{Source: c.source, Code: status}
	}

	return c.extractor.Extract(ctx, body, params, sink)
}

func kiwiTripType(p flight.SearchParams) string {
	if p.IsRound() {
		return "return"
	}
	return "oneway"
}

func kiwiQuery(p flight.SearchParams) url.Values {
	q := url.Values{
		"currency":         {"EUR"},
		"type":             {kiwiTripType(p)},
		"cabinclass":       {"M"},
		"originplace":      {strings.ToUpper(p.Origin)},
		"destinationplace": {strings.ToUpper(p.Destination)},
		"outbounddate":     {kiwiDate(p.DepartureDate)},
		"adults":           {"1"},
		"children":         {"0"},
		"infants":          {"0"},
	}
	if p.IsRound() {
		q.Set("inbounddate", kiwiDate(p.ReturnDate))
	}
	return q
}

// kiwiForm echoes the session's data object, filling the search fields it leaves out.
func kiwiForm(data map[string]string, p flight.SearchParams) url.Values {
	get := func(key, fallback string) string {
		if v := data[key]; v != "" {
			return v
		}
		return fallback
	}

	form := url.Values{
		"_token":           {data["_token"]},
		"originplace":      {get("originplace", strings.ToUpper(p.Origin))},
		"destinationplace": {get("destinationplace", strings.ToUpper(p.Destination))},
		"outbounddate":     {get("outbounddate", kiwiDate(p.DepartureDate))},
		"cabinclass":       {"M"},
		"adults":           {get("adults", "1")},
		"children":         {get("children", "0")},
		"infants":          {get("infants", "0")},
		"currency":         {"EUR"},
		"type":             {get("type", kiwiTripType(p))},
		"bags-cabin":       {get("bags-cabin", "0")},
		"bags-checked":     {get("bags-checked", "0")},
	}
	if inbound := get("inbounddate", kiwiDate(p.ReturnDate)); inbound != "" {
		form.Set("inbounddate", inbound)
	}
	return form
}

// kiwiDate formats YYYY-MM-DD as DD/MM/YYYY.
func kiwiDate(date string) string {
	if date == "" {
		return ""
	}
	t, err := time.Parse(flight.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}
