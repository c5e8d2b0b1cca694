package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"yieldfetcher/internal/httpx"
	"yieldfetcher/internal/opportunity"
)

// Provider fetches yield opportunities from one external source.
// Fetch either returns every record it could map or an error, never both.
type Provider interface {
	Name() string
	// Interval is the delay between the end of one cycle and the start of the next.
	Interval() time.Duration
	// Timeout bounds a single Fetch.
	Timeout() time.Duration
	Fetch(ctx context.Context) ([]opportunity.Opportunity, error)
}

// Fetch operations reported in FetchError.Op.
const (
	OpRequest = "request"
	OpStatus  = "status"
	OpDecode  = "decode"
)

// FetchError means the upstream call failed as a whole. The cycle is
// abandoned and retried on the next tick.
type FetchError struct {
	Provider string
	Op       string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError classifies err from an upstream call by the step that failed.
func NewFetchError(name string, err error) *FetchError {
	op := OpRequest
	var se *httpx.StatusError
	var de *httpx.DecodeError
	switch {
	case errors.As(err, &se):
		op = OpStatus
	case errors.As(err, &de):
		op = OpDecode
	}
	return &FetchError{Provider: name, Op: op, Err: err}
}

// MappingError means a single upstream record could not be normalized.
// Only that record is dropped.
type MappingError struct {
	Provider string
	Record   string
	Err      error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: record %q: %v", e.Provider, e.Record, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// Validated returns the records of recs that pass Validate, logging the rest.
func Validated(log *zap.Logger, name string, recs []opportunity.Opportunity) []opportunity.Opportunity {
	out := recs[:0:0]
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			log.Warn("dropping invalid record",
				zap.String("provider", name),
				zap.String("id", r.ID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, r)
	}
	return out
}
