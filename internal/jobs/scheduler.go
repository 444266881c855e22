// Package jobs runs the recurring background work: the auto sign-out sweep
// and outbox delivery.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	logrus "github.com/sirupsen/logrus"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrLocked     = errors.New("job is already running elsewhere")
)

type SchedulerParams struct {
	Logger   logrus.FieldLogger
	Location *time.Location
	Locks    LockFactory
	Metrics  *Metrics
}

// Scheduler triggers jobs on cron specs with a seconds field. Every run, timed
// or manual, holds the job's lock.
type Scheduler struct {
	cron    *cron.Cron
	log     logrus.FieldLogger
	locks   LockFactory
	metrics *Metrics

	mu   sync.Mutex
	jobs map[string]Job
	ctx  context.Context
}

func NewScheduler(p SchedulerParams) *Scheduler {
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	locks := p.Locks
	if locks == nil {
		locks = NoopLocks
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cron.PrintfLogger(log)),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log))),
		),
		log:     log,
		locks:   locks,
		metrics: p.Metrics,
		jobs:    map[string]Job{},
		ctx:     context.Background(),
	}
}

// Add registers job to fire on spec. An empty spec registers the job for
// RunNow only.
func (s *Scheduler) Add(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name()]; dup {
		return fmt.Errorf("job %s registered twice", job.Name())
	}
	if spec != "" {
		_, err := s.cron.AddFunc(spec, func() {
			if _, err := s.RunNow(s.baseContext(), job.Name()); err != nil && !errors.Is(err, ErrLocked) {
				s.log.WithError(err).WithField("job", job.Name()).Error("scheduled job failed")
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling %s on %q: %w", job.Name(), spec, err)
		}
	}
	s.jobs[job.Name()] = job
	s.log.WithField("job", job.Name()).WithField("spec", spec).Info("job registered")
	return nil
}

// Start begins firing timed jobs. ctx is handed to each run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts the timer and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RunNow executes the named job synchronously under its lock. ran is false
// when another holder had the lock.
func (s *Scheduler) RunNow(ctx context.Context, name string) (ran bool, err error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	log := s.log.WithField("job", name)
	lock := s.locks(name)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	if !acquired {
		log.Info("job is running on another instance, skipping")
		return false, ErrLocked
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			log.WithError(relErr).Warn("failed to release job lock")
		}
	}()

	start := time.Now()
	err = job.Run(ctx)
	elapsed := time.Since(start)
	log = log.WithField("duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.observe(name, elapsed, "failure")
		log.WithError(err).Error("job failed")
		return true, err
	}
	s.metrics.observe(name, elapsed, "success")
	log.Info("job completed")
	return true, nil
}

// Jobs lists the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	return names
}
