package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/be-green/grab-cafe/internal/domain"
	"github.com/be-green/grab-cafe/internal/normalize"
	"github.com/be-green/grab-cafe/internal/ports"
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source     ports.ResultSource
	Repository ports.PostingRepository
	Notifier   ports.Notifier
	Logger     *slog.Logger

	// RecentWindowDays bounds the fast-path existence check on the
	// recurring first-page scan.
	RecentWindowDays int
	// LookbackDays bounds how old an undelivered posting may be and
	// still be delivered.
	LookbackDays int
	// CutoffYear is the earliest decision year kept in aggregates.
	CutoffYear int
}

// Pipeline implements one ingestion cycle: fetch, parse, normalize,
// deduplicate, aggregate, deliver.
type Pipeline struct {
	source     ports.ResultSource
	repository ports.PostingRepository
	notifier   ports.Notifier
	logger     *slog.Logger

	recentWindowDays int
	lookbackDays     int
	cutoffYear       int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:           deps.Source,
		repository:       deps.Repository,
		notifier:         deps.Notifier,
		logger:           deps.Logger,
		recentWindowDays: deps.RecentWindowDays,
		lookbackDays:     deps.LookbackDays,
		cutoffYear:       deps.CutoffYear,
	}
}

// RunCycle executes one full cycle against the first listing page.
// New results appear at the head of the listing, so one page per
// cycle is enough on the recurring path. Any failure skips the rest
// of the cycle; the next tick retries from scratch.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	if p.source == nil || p.repository == nil {
		return nil
	}

	candidates, err := p.source.FetchPage(ctx, 1)
	if err != nil {
		return fmt.Errorf("fetch listing: %w", err)
	}

	inserted := 0
	for _, candidate := range candidates {
		posting := normalize.Posting(candidate)

		known, err := p.repository.ExistsRecent(ctx, posting.GradCafeID, p.recentWindowDays)
		if err != nil {
			return fmt.Errorf("existence check %s: %w", posting.GradCafeID, err)
		}
		if known {
			continue
		}

		fresh, err := p.repository.Insert(ctx, posting)
		if err != nil {
			return fmt.Errorf("insert %s: %w", posting.GradCafeID, err)
		}
		if fresh {
			inserted++
			p.info("new posting", "school", posting.School, "program", posting.Program, "decision", posting.Decision)
		}
	}

	if inserted > 0 {
		if err := p.repository.RefreshAggregates(ctx, p.cutoffYear); err != nil {
			return fmt.Errorf("refresh aggregates: %w", err)
		}
		p.info("aggregates refreshed", "new", inserted)
	}

	return p.deliverPending(ctx)
}

// deliverPending walks undelivered postings oldest first. A later
// posting must never be marked delivered while an earlier one remains
// pending, so the batch stops at the first failure and resumes from
// the same point next cycle.
func (p *Pipeline) deliverPending(ctx context.Context) error {
	if p.notifier == nil {
		return nil
	}

	pending, err := p.repository.Undelivered(ctx, p.lookbackDays)
	if err != nil {
		return fmt.Errorf("load undelivered: %w", err)
	}

	for _, posting := range pending {
		if err := p.notifier.Deliver(ctx, posting); err != nil {
			p.warn("delivery stopped", "gradcafe_id", posting.GradCafeID, "error", err)
			return fmt.Errorf("deliver %s: %w", posting.GradCafeID, err)
		}
		if err := p.repository.MarkDelivered(ctx, posting.ID); err != nil {
			return fmt.Errorf("mark delivered %s: %w", posting.GradCafeID, err)
		}
		p.info("delivered", "school", posting.School, "program", posting.Program)
	}

	return nil
}

// BackfillRequest parameterizes a historical scrape over a page range.
type BackfillRequest struct {
	StartPage int
	EndPage   int
	// Delay is the politeness pause between page fetches.
	Delay time.Duration
	// Progress, when set, is invoked after each page with running
	// totals.
	Progress func(page, added, duplicates int)
}

// BackfillStats summarizes a historical scrape.
type BackfillStats struct {
	PagesScanned int
	Added        int
	Duplicates   int
}

// Backfill ingests a page range of the listing's history using the
// exhaustive full-table existence check. A page that fails to fetch
// is logged and skipped; the scan keeps going.
func (p *Pipeline) Backfill(ctx context.Context, req BackfillRequest) (BackfillStats, error) {
	var stats BackfillStats

	for page := req.StartPage; page <= req.EndPage; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		candidates, err := p.source.FetchPage(ctx, page)
		if err != nil {
			if errors.Is(err, domain.ErrFetchFailed) {
				p.warn("backfill page skipped", "page", page, "error", err)
				continue
			}
			return stats, fmt.Errorf("fetch page %d: %w", page, err)
		}
		stats.PagesScanned++

		for _, candidate := range candidates {
			posting := normalize.Posting(candidate)

			known, err := p.repository.Exists(ctx, posting.GradCafeID)
			if err != nil {
				return stats, fmt.Errorf("existence check %s: %w", posting.GradCafeID, err)
			}
			if known {
				stats.Duplicates++
				continue
			}

			fresh, err := p.repository.Insert(ctx, posting)
			if err != nil {
				return stats, fmt.Errorf("insert %s: %w", posting.GradCafeID, err)
			}
			if fresh {
				stats.Added++
			} else {
				stats.Duplicates++
			}
		}

		if req.Progress != nil {
			req.Progress(page, stats.Added, stats.Duplicates)
		}

		if req.Delay > 0 && page < req.EndPage {
			select {
			case <-time.After(req.Delay):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}

	return stats, nil
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
