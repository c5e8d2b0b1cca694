package storage

import (
	"context"
	"errors"

	"yieldfetcher/internal/match"
	"yieldfetcher/internal/opportunity"
)

// ErrStorage wraps every failure originating in the storage engine.
var ErrStorage = errors.New("storage")

// BatchResult counts the outcome of one batch upsert.
// Success + Failed always equals the batch size.
type BatchResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Gateway is the persistence boundary shared by the fetch loop and the API.
type Gateway interface {
	// BatchUpsertOpportunities writes recs keyed by ID, last write wins.
	BatchUpsertOpportunities(ctx context.Context, recs []opportunity.Opportunity) (BatchResult, error)
	// GetAllOpportunities returns every stored record, most recent yield date first.
	GetAllOpportunities(ctx context.Context) ([]opportunity.Opportunity, error)
	TestConnection(ctx context.Context) bool
	// GetUserMatch returns nil when the user has not saved preferences.
	GetUserMatch(ctx context.Context, userID string) (*match.UserMatch, error)
	UpsertUserMatch(ctx context.Context, userID string, req match.Request) (match.UserMatch, error)
	Close() error
}
