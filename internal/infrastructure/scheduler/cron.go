package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/be-green/grab-cafe/internal/ports"
)

// CronScheduler drives the pipeline on a fixed interval. Cycles never
// overlap: a tick that fires while the previous cycle is still
// running is skipped.
type CronScheduler struct {
	interval time.Duration
	cron     *cron.Cron

	// immediate tracks the startup run, which the cron runner does
	// not know about.
	immediate sync.WaitGroup
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler firing every interval.
func NewCronScheduler(interval time.Duration) *CronScheduler {
	return &CronScheduler{interval: interval}
}

// Start registers the job and begins ticking. The job also runs once
// immediately, through the same no-overlap chain the ticks use.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if c.cron != nil {
		return nil
	}

	c.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	id, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.interval), func() {
		job(time.Now())
	})
	if err != nil {
		c.cron = nil
		return fmt.Errorf("register job: %w", err)
	}

	c.cron.Start()

	runner := c.cron
	c.immediate.Add(1)
	go func() {
		defer c.immediate.Done()
		runner.Entry(id).WrappedJob.Run()
	}()

	return nil
}

// Stop halts ticking and waits for a running cycle to finish.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.cron == nil {
		return nil
	}

	done := c.cron.Stop().Done()
	c.cron = nil

	drained := make(chan struct{})
	go func() {
		c.immediate.Wait()
		close(drained)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
