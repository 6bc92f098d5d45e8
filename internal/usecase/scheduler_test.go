package usecase

import (
	"context"
	"testing"
	"time"
)

type fakeDriver struct {
	job     func(time.Time)
	stopped bool
}

func (f *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	f.job = job
	return nil
}

func (f *fakeDriver) Stop(_ context.Context) error {
	f.stopped = true
	return nil
}

func TestSchedulerSwallowsCycleFailures(t *testing.T) {
	t.Parallel()

	source := &fakeSource{failPage: 1}
	repo := newFakeRepo()
	pipeline := newTestPipeline(source, repo, &fakeNotifier{})

	driver := &fakeDriver{}
	sched := NewScheduler(driver, pipeline, nil)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if driver.job == nil {
		t.Fatal("job must be registered with the driver")
	}

	// A failing cycle must not panic or escape; the next tick retries.
	driver.job(time.Now())
	driver.job(time.Now())

	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if !driver.stopped {
		t.Fatal("driver must be stopped")
	}
}
