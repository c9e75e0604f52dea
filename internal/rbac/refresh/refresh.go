// Package refresh asks the server for the current role on a cron schedule, so
// a role changed on the server is eventually picked up even when no
// invalidation event reaches the client and a role is already stored.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/expenseflow-go/internal/rbac/store"
	"github.com/expenseflow-go/pkg/logger"
)

// Revalidator is the part of the role store a refresh needs.
type Revalidator interface {
	Revalidate(ctx context.Context) store.State
}

type Scheduler struct {
	cron    *cron.Cron
	job     *revalidateJob
	logger  logger.Logger
	mu      sync.Mutex
	running bool
}

type revalidateJob struct {
	store   Revalidator
	timeout time.Duration
	logger  logger.Logger
}

// Run implements cron.Job.
func (j *revalidateJob) Run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	state := j.store.Revalidate(ctx)
	j.logger.Debug("Scheduled role revalidation finished", "role", state.Role.String())
}

// New parses spec (standard five-field cron or a descriptor such as
// "@every 15m") and returns a stopped scheduler. timeout bounds each run.
func New(spec string, rv Revalidator, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	job := &revalidateJob{
		store:   rv,
		timeout: timeout,
		logger:  log,
	}

	c := cron.New(cron.WithLocation(time.UTC))
	// Skip a tick while the previous run is still going.
	c.Schedule(schedule, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job))

	return &Scheduler{
		cron:   c,
		job:    job,
		logger: log,
	}, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("Started role refresh scheduler")
}

// Stop halts the schedule and waits for a running revalidation, or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Stopped role refresh scheduler")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports when the next refresh is due, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
