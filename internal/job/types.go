package job

import (
	"context"
	"errors"
	"time"

	"flightdeals/internal/extract"
	"flightdeals/internal/flight"
)

// TaskType names the queue task that runs one source fetch.
const TaskType = "fetch:search"

const recordTTL = 7 * 24 * time.Hour

var ErrJobNotFound = errors.New("job: not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FetchJob is the status record of one (route, date, source) fetch.
type FetchJob struct {
	Key         string              `json:"key"`
	RunID       string              `json:"runId,omitempty"`
	JobID       string              `json:"jobId,omitempty"`
	Source      string              `json:"source"`
	Params      flight.SearchParams `json:"params"`
	Status      Status              `json:"status"`
	ResultCount int                 `json:"resultCount"`
	Attempts    int                 `json:"attempts"`
	Error       string              `json:"error,omitempty"`
	Cancelled   bool                `json:"cancelled,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	LastRunAt   *time.Time          `json:"lastRunAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
}

// payload is what travels through the queue. The record stays the source of truth.
type payload struct {
	Key    string              `json:"key"`
	RunID  string              `json:"runId"`
	Source string              `json:"source"`
	Params flight.SearchParams `json:"params"`
}

// Queue is the task queue collaborator.
type Queue interface {
	Enqueue(ctx context.Context, taskType, taskID string, payload []byte) error
	Cancel(ctx context.Context, taskID string) error
}

// Fetcher runs one source's fetch protocol and extraction.
type Fetcher interface {
	Sources() []string
	Has(source string) bool
	Fetch(ctx context.Context, source string, params flight.SearchParams, sink extract.Sink) (int, error)
}

// SinkFactory returns where a fetch for params writes its entities.
type SinkFactory func(params flight.SearchParams) extract.Sink

func taskID(key, runID string) string {
	return key + ":" + runID
}
