package flightclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flightdeals/internal/extract"
	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
)

const (
	DefaultPollLimit    = 20
	DefaultPollInterval = time.Second
)

// SkyscannerClient drives the poll-until-finished protocol: one search page, then polls until the
// upstream flags the results as finished.
type SkyscannerClient struct {
	portal
	extractor    extract.Extractor
	pollLimit    int
	pollInterval time.Duration
}

func NewSkyscannerClient(httpClient *http.Client, baseURL string, extractor extract.Extractor,
	pollLimit int, pollInterval time.Duration, logger logger.Client) *SkyscannerClient {
	if pollLimit <= 0 {
		pollLimit = DefaultPollLimit
	}
	return &SkyscannerClient{
		portal:       newPortal(extract.SourceSkyscanner, httpClient, baseURL, logger),
		extractor:    extractor,
		pollLimit:    pollLimit,
		pollInterval: pollInterval,
	}
}

// pollResult is one poll response. Unfinished responses carry no page.
type pollResult struct {
	finished bool
	count    int
	page     string
}

func (c *SkyscannerClient) Fetch(ctx context.Context, params flight.SearchParams, sink extract.Sink) (int, error) {
	sess, err := c.open(ctx, "/portal/sky", skyscannerQuery(params))
	if err != nil {
		return 0, err
	}

	for attempt := 1; attempt <= c.pollLimit; attempt++ {
		res, err := c.poll(ctx, sess)
		if err != nil {
			return 0, err
		}

		if res.finished {
			c.logger.Info("poll finished",
				logger.Field{Key: "source", Value: c.source},
				logger.Field{Key: "polls", Value: attempt},
				logger.Field{Key: "upstream_count", Value: res.count},
			)
			return c.extractor.Extract(ctx, res.page, params, sink)
		}

		c.logger.Debug("results not finished",
			logger.Field{Key: "source", Value: c.source},
			logger.Field{Key: "poll", Value: attempt},
		)
		if attempt == c.pollLimit {
			break
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	return 0, fmt.Errorf("%s: %w (%d polls)", c.source, ErrPollLimitExceeded, c.pollLimit)
}

func (c *SkyscannerClient) poll(ctx context.Context, sess *session) (pollResult, error) {
	form := url.Values{}
	for k, v := range sess.data {
		form.Set(k, v)
	}
	form.Set("noc", strconv.FormatInt(c.now().UnixMilli(), 10))

	status, body, err := c.post(ctx, sess, "/portal/sky/poll", form, nil)
	if err != nil {
		return pollResult{}, err
	}

	// the upstream flakes with gateway timeouts and missing pages while results are still building
	if status == http.StatusGatewayTimeout || status == http.StatusNotFound ||
		strings.Contains(body, "504 Gateway Time-out") || strings.Contains(body, "Page Not Found") {
		return pollResult{}, nil
	}
	if !ok2xx(status) {
		return pollResult{}, &StatusError{Source: c.source, Code: status}
	}

	return parsePollBody(body), nil
}

// parsePollBody reads "finished|count|...|page". The page is the seventh field and may itself contain pipes.
func parsePollBody(body string) pollResult {
	parts := strings.Split(body, "|")

	res := pollResult{finished: strings.TrimSpace(parts[0]) == "Y"}
	if len(parts) > 1 {
		res.count, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	if len(parts) > 6 {
		page := strings.Join(parts[6:], "|")
		if strings.Contains(page, "%") {
			if decoded, err := url.PathUnescape(page); err == nil {
				page = decoded
			}
		}
		res.page = page
	}
	return res
}

func skyscannerQuery(p flight.SearchParams) url.Values {
	return url.Values{
		"originplace":      {strings.ToUpper(p.Origin)},
		"destinationplace": {strings.ToUpper(p.Destination)},
		"outbounddate":     {p.DepartureDate},
		"inbounddate":      {p.ReturnDate},
		"cabinclass":       {"Economy"},
		"adults":           {"1"},
		"children":         {"0"},
		"infants":          {"0"},
		"currency":         {"EUR"},
	}
}
