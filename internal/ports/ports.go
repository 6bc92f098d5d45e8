package ports

import (
	"context"
	"time"

	"github.com/be-green/grab-cafe/internal/domain"
)

// ResultSource pulls candidate postings from the remote listing.
type ResultSource interface {
	FetchPage(ctx context.Context, page int) ([]domain.Candidate, error)
}

// PostingRepository persists canonical postings for deduplication,
// delivery tracking and aggregate projections.
type PostingRepository interface {
	// Exists checks the full table for a GradCafe id.
	Exists(ctx context.Context, gradcafeID string) (bool, error)

	// ExistsRecent restricts the existence check to postings scraped
	// within the last windowDays. Fast path for the recurring
	// first-page scan; the unique constraint still backstops it.
	ExistsRecent(ctx context.Context, gradcafeID string, windowDays int) (bool, error)

	// Insert adds a posting, returning true when it was newly
	// inserted and false when the id already existed.
	Insert(ctx context.Context, posting domain.Posting) (bool, error)

	// Undelivered returns postings with delivered=false and a
	// decision date within the lookback window, oldest first.
	Undelivered(ctx context.Context, lookbackDays int) ([]domain.Posting, error)

	// MarkDelivered flips the delivered flag; the flip is one-way.
	MarkDelivered(ctx context.Context, id int64) error

	// RefreshAggregates rebuilds the per-degree aggregate tables
	// wholesale, keeping only postings dated at or after cutoffYear.
	RefreshAggregates(ctx context.Context, cutoffYear int) error
}

// Notifier delivers a single posting to the downstream channel.
type Notifier interface {
	Deliver(ctx context.Context, posting domain.Posting) error
}

// Scheduler controls when pipeline cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
