package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/weavy/weavy/pkg/observability"
)

// Task is a named cleanup job returning the number of items it removed
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Func adapts a cleanup function that reports no count
func Func(name string, fn func()) Task {
	return Task{Name: name, Run: func(context.Context) (int64, error) {
		fn()
		return 0, nil
	}}
}

// Scheduler runs cleanup tasks on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	logger  *observability.Logger
	tasks   []Task
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

// New creates a scheduler. schedule accepts the standard five field cron
// syntax and descriptors such as "@hourly" or "@every 30m". An empty
// schedule yields a scheduler that only runs on demand through RunOnce.
func New(schedule string, logger *observability.Logger, tasks ...Task) (*Scheduler, error) {
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil {
			return nil, errors.New("maintenance task requires a name and a run function")
		}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Scheduler{
		logger:  logger.WithField("component", "maintenance"),
		tasks:   tasks,
		timeout: 5 * time.Minute,
	}
	if schedule == "" {
		return s, nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running tasks on the schedule in the background
func (s *Scheduler) Start() {
	if s.cron == nil {
		s.logger.Info("Cleanup schedule disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("Cleanup scheduler started")
}

// Stop halts the schedule and waits for a running pass to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runScheduled() {
	defer observability.RecoverPanic(s.logger, "maintenance")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.logger.WithError(err).Error("Cleanup pass finished with errors")
	}
}

// RunOnce runs every task once. A pass already in progress makes it a no-op.
// Task errors are joined into the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Cleanup pass already running, skipping")
		return nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var errs []error
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start := time.Now()
		removed, err := t.Run(ctx)
		log := s.logger.WithFields(map[string]interface{}{
			"task":     t.Name,
			"duration": time.Since(start).String(),
		})
		if err != nil {
			log.WithError(err).Error("Cleanup task failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		log.WithField("removed", removed).Debug("Cleanup task finished")
	}
	return errors.Join(errs...)
}
