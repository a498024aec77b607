package api

import (
	"context"
	"fmt"

	"flightdeals/internal/flight"
	"flightdeals/internal/job"
	"flightdeals/internal/search"
	"flightdeals/pkg/logger"
)

// Jobs is the fetch job orchestrator.
type Jobs interface {
	Sources() []string
	Submit(ctx context.Context, source string, params flight.SearchParams) (*job.FetchJob, error)
	Status(ctx context.Context, source string, params flight.SearchParams) (*job.FetchJob, error)
	Cancel(ctx context.Context, key string) (*job.FetchJob, error)
	Retry(ctx context.Context, key string) (*job.FetchJob, error)
}

type Results interface {
	Query(ctx context.Context, params flight.SearchParams, sources ...string) ([]search.TripResult, error)
}

type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Service is the surface the HTTP layer drives.
type Service struct {
	jobs    Jobs
	results Results
	store   Clearer
	logger  logger.Client
}

func NewService(jobs Jobs, results Results, store Clearer, logger logger.Client) *Service {
	return &Service{
		jobs:    jobs,
		results: results,
		store:   store,
		logger:  logger,
	}
}

func (s *Service) SubmitFetch(ctx context.Context, source string, params flight.SearchParams) (*job.FetchJob, error) {
	return s.jobs.Submit(ctx, source, params)
}

func (s *Service) GetFetchStatus(ctx context.Context, source string, params flight.SearchParams) (*job.FetchJob, error) {
	return s.jobs.Status(ctx, source, params)
}

// FetchStatuses reports the job of every registered source for params.
func (s *Service) FetchStatuses(ctx context.Context, params flight.SearchParams) (map[string]*job.FetchJob, error) {
	out := make(map[string]*job.FetchJob)
	for _, source := range s.jobs.Sources() {
		rec, err := s.jobs.Status(ctx, source, params)
		if err != nil {
			return nil, err
		}
		out[source] = rec
	}
	return out, nil
}

// QueryResults merges what every registered source has stored for params.
func (s *Service) QueryResults(ctx context.Context, params flight.SearchParams) ([]search.TripResult, error) {
	return s.results.Query(ctx, params, s.jobs.Sources()...)
}

func (s *Service) CancelFetch(ctx context.Context, key string) (*job.FetchJob, error) {
	return s.jobs.Cancel(ctx, key)
}

func (s *Service) RetryFetch(ctx context.Context, key string) (*job.FetchJob, error) {
	return s.jobs.Retry(ctx, key)
}

func (s *Service) ClearAll(ctx context.Context) (int, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("api: failed to clear data: %w", err)
	}
	s.logger.Warn("all data cleared", logger.Field{Key: "deleted", Value: n})
	return n, nil
}
