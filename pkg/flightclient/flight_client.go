package flightclient

import (
	"context"
	"fmt"

	"flightdeals/internal/extract"
	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
)

// Fetcher runs one source's network exchange and hands the final page to its extractor. It returns the
// number of deals written through sink.
type Fetcher interface {
	Source() string
	Fetch(ctx context.Context, params flight.SearchParams, sink extract.Sink) (int, error)
}

// FlightManager routes fetches to the registered source clients.
type FlightManager struct {
	fetchers map[string]Fetcher
	sources  []string
	logger   logger.Client
}

func NewFlightManager(logger logger.Client, fetchers ...Fetcher) *FlightManager {
	m := &FlightManager{
		fetchers: make(map[string]Fetcher, len(fetchers)),
		logger:   logger,
	}
	for _, f := range fetchers {
		if _, dup := m.fetchers[f.Source()]; !dup {
			m.sources = append(m.sources, f.Source())
		}
		m.fetchers[f.Source()] = f
	}
	return m
}

// Sources lists registered sources in registration order.
func (m *FlightManager) Sources() []string {
	out := make([]string, len(m.sources))
	copy(out, m.sources)
	return out
}

func (m *FlightManager) Has(source string) bool {
	_, ok := m.fetchers[source]
	return ok
}

func (m *FlightManager) Fetch(ctx context.Context, source string, params flight.SearchParams, sink extract.Sink) (int, error) {
	f, ok := m.fetchers[source]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	n, err := f.Fetch(ctx, params, sink)
	if err != nil {
		m.logger.Error("failed to fetch source",
			logger.Field{Key: "source", Value: source},
			logger.Field{Key: "search_key", Value: params.Key()},
			logger.Err(err),
		)
		return 0, err
	}
	return n, nil
}
