package jobs

import (
	"context"
	"sync"

	logrus "github.com/sirupsen/logrus"

	"radhiant_ops/internal/notify"
	"radhiant_ops/internal/occupancy"
)

const (
	AutoSignOutJobName = "auto-signout"
	OutboxJobName      = "outbox-dispatch"
)

type Sweeper interface {
	Sweep(ctx context.Context) (occupancy.SweepReport, error)
}

// AutoSignOutJob closes shifts left open past the daily cutoff.
type AutoSignOutJob struct {
	Sweeper Sweeper
	Log     logrus.FieldLogger

	mu   sync.Mutex
	last occupancy.SweepReport
}

func (j *AutoSignOutJob) Name() string { return AutoSignOutJobName }

func (j *AutoSignOutJob) Run(ctx context.Context) error {
	report, err := j.Sweeper.Sweep(ctx)
	j.mu.Lock()
	j.last = report
	j.mu.Unlock()
	return err
}

// LastReport is the report of the most recent run.
func (j *AutoSignOutJob) LastReport() occupancy.SweepReport {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

type OutboxRunner interface {
	Run(ctx context.Context) (notify.DispatchReport, error)
}

// OutboxJob delivers due notifications.
type OutboxJob struct {
	Dispatcher OutboxRunner
	Log        logrus.FieldLogger
}

func (j *OutboxJob) Name() string { return OutboxJobName }

func (j *OutboxJob) Run(ctx context.Context) error {
	report, err := j.Dispatcher.Run(ctx)
	if err != nil {
		return err
	}
	if j.Log != nil && (report.Delivered > 0 || report.Failed > 0) {
		j.Log.WithField("delivered", report.Delivered).WithField("failed", report.Failed).Info("outbox batch processed")
	}
	return nil
}
