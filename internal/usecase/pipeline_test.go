package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/be-green/grab-cafe/internal/domain"
)

type fakeSource struct {
	pages    map[int][]domain.Candidate
	failPage int
}

func (f *fakeSource) FetchPage(_ context.Context, page int) ([]domain.Candidate, error) {
	if page == f.failPage {
		return nil, fmt.Errorf("%w: page %d unreachable", domain.ErrFetchFailed, page)
	}
	return f.pages[page], nil
}

type fakeRepo struct {
	postings []domain.Posting
	byID     map[string]bool
	nextID   int64

	refreshes  int
	cutoffSeen int
	failInsert bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]bool{}}
}

func (f *fakeRepo) Exists(_ context.Context, id string) (bool, error) {
	return f.byID[id], nil
}

func (f *fakeRepo) ExistsRecent(_ context.Context, id string, _ int) (bool, error) {
	return f.byID[id], nil
}

func (f *fakeRepo) Insert(_ context.Context, posting domain.Posting) (bool, error) {
	if f.failInsert {
		return false, fmt.Errorf("%w: disk full", domain.ErrStorageFailed)
	}
	if f.byID[posting.GradCafeID] {
		return false, nil
	}
	f.nextID++
	posting.ID = f.nextID
	posting.ScrapedAt = time.Now()
	f.postings = append(f.postings, posting)
	f.byID[posting.GradCafeID] = true
	return true, nil
}

func (f *fakeRepo) Undelivered(_ context.Context, _ int) ([]domain.Posting, error) {
	var pending []domain.Posting
	for _, posting := range f.postings {
		if !posting.Delivered && posting.DecisionDate != nil {
			pending = append(pending, posting)
		}
	}
	return pending, nil
}

func (f *fakeRepo) MarkDelivered(_ context.Context, id int64) error {
	for i := range f.postings {
		if f.postings[i].ID == id {
			f.postings[i].Delivered = true
			return nil
		}
	}
	return fmt.Errorf("%w: posting %d not found", domain.ErrStorageFailed, id)
}

func (f *fakeRepo) RefreshAggregates(_ context.Context, cutoffYear int) error {
	f.refreshes++
	f.cutoffSeen = cutoffYear
	return nil
}

type fakeNotifier struct {
	delivered []string
	failOn    string
}

func (f *fakeNotifier) Deliver(_ context.Context, posting domain.Posting) error {
	if posting.GradCafeID == f.failOn {
		return fmt.Errorf("%w: channel rejected message", domain.ErrDeliveryFailed)
	}
	f.delivered = append(f.delivered, posting.GradCafeID)
	return nil
}

func candidate(id string) domain.Candidate {
	return domain.Candidate{
		GradCafeID: id,
		School:     "Alpha U",
		Program:    "Economics",
		Degree:     domain.DegreePhD,
		Decision:   "Accepted",
		DateAdded:  time.Now().Format("Jan 2, 2006"),
	}
}

func newTestPipeline(source *fakeSource, repo *fakeRepo, notifier *fakeNotifier) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:           source,
		Repository:       repo,
		Notifier:         notifier,
		RecentWindowDays: 7,
		LookbackDays:     30,
		CutoffYear:       2018,
	})
}

func TestRunCycleIngestsAggregatesAndDelivers(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: map[int][]domain.Candidate{
		1: {candidate("1"), candidate("2")},
	}}
	repo := newFakeRepo()
	notifier := &fakeNotifier{}

	pipeline := newTestPipeline(source, repo, notifier)
	if err := pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle error: %v", err)
	}

	if len(repo.postings) != 2 {
		t.Fatalf("expected 2 stored postings, got %d", len(repo.postings))
	}
	if repo.refreshes != 1 {
		t.Fatalf("expected 1 aggregate refresh, got %d", repo.refreshes)
	}
	if repo.cutoffSeen != 2018 {
		t.Fatalf("cutoff year must be injected, got %d", repo.cutoffSeen)
	}
	if len(notifier.delivered) != 2 || notifier.delivered[0] != "1" || notifier.delivered[1] != "2" {
		t.Fatalf("unexpected delivery order: %v", notifier.delivered)
	}
	for _, posting := range repo.postings {
		if !posting.Delivered {
			t.Fatalf("posting %s must be marked delivered", posting.GradCafeID)
		}
	}
}

func TestRunCycleIsIdempotent(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: map[int][]domain.Candidate{
		1: {candidate("1"), candidate("2")},
	}}
	repo := newFakeRepo()

	pipeline := newTestPipeline(source, repo, &fakeNotifier{})
	if err := pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if err := pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if len(repo.postings) != 2 {
		t.Fatalf("re-running the same page must not insert, got %d postings", len(repo.postings))
	}
	if repo.refreshes != 1 {
		t.Fatalf("no new insertions means no rebuild, got %d refreshes", repo.refreshes)
	}
}

func TestRunCycleFetchFailureLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	source := &fakeSource{failPage: 1}
	repo := newFakeRepo()

	pipeline := newTestPipeline(source, repo, &fakeNotifier{})
	err := pipeline.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if len(repo.postings) != 0 || repo.refreshes != 0 {
		t.Fatalf("store must be untouched: %d postings, %d refreshes", len(repo.postings), repo.refreshes)
	}
}

func TestRunCycleStorageFailureAbortsCycle(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: map[int][]domain.Candidate{1: {candidate("1")}}}
	repo := newFakeRepo()
	repo.failInsert = true

	pipeline := newTestPipeline(source, repo, &fakeNotifier{})
	err := pipeline.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrStorageFailed) {
		t.Fatalf("expected ErrStorageFailed, got %v", err)
	}
	if repo.refreshes != 0 {
		t.Fatal("aggregates must not rebuild after a storage failure")
	}
}

func TestDeliveryStopsAtFirstFailureAndResumes(t *testing.T) {
	t.Parallel()

	source := &fakeSource{pages: map[int][]domain.Candidate{
		1: {candidate("1"), candidate("2"), candidate("3")},
	}}
	repo := newFakeRepo()
	notifier := &fakeNotifier{failOn: "2"}

	pipeline := newTestPipeline(source, repo, notifier)
	err := pipeline.RunCycle(context.Background())
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	if len(notifier.delivered) != 1 || notifier.delivered[0] != "1" {
		t.Fatalf("only the first posting may go out: %v", notifier.delivered)
	}
	if !repo.postings[0].Delivered {
		t.Fatal("first posting must be marked delivered")
	}
	if repo.postings[1].Delivered || repo.postings[2].Delivered {
		t.Fatal("later postings must stay undelivered when an earlier one fails")
	}

	// Next cycle resumes from the failure point, order intact.
	notifier.failOn = ""
	if err := pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("resume cycle: %v", err)
	}
	if len(notifier.delivered) != 3 || notifier.delivered[1] != "2" || notifier.delivered[2] != "3" {
		t.Fatalf("unexpected resumed order: %v", notifier.delivered)
	}
}

func TestBackfillCountsAndSkipsFailedPages(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		pages: map[int][]domain.Candidate{
			1: {candidate("1"), candidate("2")},
			3: {candidate("2"), candidate("3")},
		},
		failPage: 2,
	}
	repo := newFakeRepo()

	pipeline := newTestPipeline(source, repo, nil)

	var pagesSeen []int
	stats, err := pipeline.Backfill(context.Background(), BackfillRequest{
		StartPage: 1,
		EndPage:   3,
		Progress: func(page, _, _ int) {
			pagesSeen = append(pagesSeen, page)
		},
	})
	if err != nil {
		t.Fatalf("Backfill error: %v", err)
	}

	if stats.PagesScanned != 2 {
		t.Fatalf("expected 2 scanned pages, got %d", stats.PagesScanned)
	}
	if stats.Added != 3 {
		t.Fatalf("expected 3 added, got %d", stats.Added)
	}
	if stats.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", stats.Duplicates)
	}
	if len(pagesSeen) != 2 || pagesSeen[0] != 1 || pagesSeen[1] != 3 {
		t.Fatalf("unexpected progress pages: %v", pagesSeen)
	}
}
