package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
	"flightdeals/pkg/metrics"
)

// Sink receives every entity an extractor discovers. Implementations persist them.
type Sink interface {
	AddFlight(ctx context.Context, f flight.Flight) error
	AddTrip(ctx context.Context, t flight.Trip) error
	AddLeg(ctx context.Context, l flight.Leg) error
	AddDeal(ctx context.Context, d flight.Deal) error
}

// Extractor turns one final result page into entities pushed to sink and returns the number of deals written.
// Malformed fragments are skipped; only sink failures are returned as errors.
type Extractor interface {
	Source() string
	Extract(ctx context.Context, page string, params flight.SearchParams, sink Sink) (int, error)
}

// Outcome is the result of extracting one fragment of a page: a value, or the reason it was skipped.
type Outcome[T any] struct {
	Value  T
	OK     bool
	Reason string
}

func found[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, OK: true}
}

func skipped[T any](format string, args ...any) Outcome[T] {
	return Outcome[T]{Reason: fmt.Sprintf(format, args...)}
}

// base carries what both extractors share.
type base struct {
	source  string
	logger  logger.Client
	metrics *metrics.Metrics
	now     func() time.Time
}

func (b *base) Source() string {
	return b.source
}

func (b *base) skip(fragment string, index int, reason string) {
	b.logger.Debug("fragment skipped",
		logger.Field{Key: "source", Value: b.source},
		logger.Field{Key: "fragment", Value: fragment},
		logger.Field{Key: "index", Value: index},
		logger.Field{Key: "reason", Value: reason},
	)
	b.metrics.ExtractSkipped(b.source, fragment)
}

// run parses the page and emits every itinerary produced by modals, stopping only on a sink error.
func (b *base) run(ctx context.Context, page string, params flight.SearchParams, sink Sink,
	modals func(doc *goquery.Document) *goquery.Selection,
	modal func(i int, s *goquery.Selection) Outcome[itinerary],
) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return 0, fmt.Errorf("%s: failed to parse page: %w", b.source, err)
	}

	em := newEmitter(b.source, params, sink, b.now())
	total := 0
	var sinkErr error

	modals(doc).EachWithBreak(func(i int, s *goquery.Selection) bool {
		out := modal(i, s)
		if !out.OK {
			b.skip("modal", i, out.Reason)
			return true
		}

		n, err := em.emit(ctx, out.Value)
		if err != nil {
			sinkErr = err
			return false
		}
		total += n
		return true
	})

	if sinkErr != nil {
		return total, fmt.Errorf("%s: %w", b.source, sinkErr)
	}

	b.logger.Info("page extracted",
		logger.Field{Key: "source", Value: b.source},
		logger.Field{Key: "deals", Value: total},
		logger.Field{Key: "flights", Value: len(em.seenFlights)},
	)
	return total, nil
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func texts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		out = append(out, text(item))
	})
	return out
}
