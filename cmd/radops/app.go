package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"radhiant_ops/internal/auth"
	"radhiant_ops/internal/booking"
	"radhiant_ops/internal/config"
	"radhiant_ops/internal/jobs"
	"radhiant_ops/internal/logger"
	"radhiant_ops/internal/notify"
	"radhiant_ops/internal/occupancy"
	"radhiant_ops/internal/statuscache"
)

// app is the wired service graph shared by every subcommand.
type app struct {
	cfg       *config.Settings
	log       *logrus.Logger
	logOut    io.Writer
	db        *gorm.DB
	rdb       *redis.Client
	nc        *nats.Conn
	registry  *prometheus.Registry
	hasher    *auth.Hasher
	occupancy *occupancy.Controller
	status    *statuscache.Cache
	dispatch  *notify.Dispatcher
	scheduler *jobs.Scheduler
	sweep     *jobs.AutoSignOutJob
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	out := logger.Setup(cfg.App.LogFile, cfg.App.LogLevel)
	log := logrus.StandardLogger()

	db, err := config.InitDB(cfg.DB, logger.GormLogger(log))
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			return nil, err
		}
		if err := config.SeedTrucks(db, cfg.Attendance.Trucks); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, log: log, logOut: out, db: db, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.rdb, err = config.InitRedis(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}

	loc := cfg.Attendance.Location()
	a.hasher = auth.NewHasher(cfg.Attendance.BcryptCost)
	a.occupancy, err = occupancy.NewController(db, occupancy.Options{
		Verifier:        a.hasher,
		Logger:          log.WithField("component", "occupancy"),
		Location:        loc,
		CutoffHour:      cfg.Attendance.CutoffHour,
		RetentionMonths: cfg.Attendance.RetentionMonths,
		Metrics:         occupancy.NewMetrics(a.registry),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.status = statuscache.New(a.occupancy, a.rdb, 0, log.WithField("component", "statuscache"))
	a.occupancy.AddObserver(a.status)

	notifiers, err := a.notifiers(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dispatch = notify.NewDispatcher(db, notify.DispatcherOptions{
		Notifiers:   notifiers,
		Hooks:       map[notify.Kind]notify.Hook{notify.KindCalendar: booking.CalendarHook(db)},
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		Logger:      log.WithField("component", "outbox"),
	})

	var locks jobs.LockFactory = jobs.NoopLocks
	if a.rdb != nil {
		locks = jobs.RedisLocks(a.rdb, 0)
	}
	a.scheduler = jobs.NewScheduler(jobs.SchedulerParams{
		Logger:   log.WithField("component", "scheduler"),
		Location: loc,
		Locks:    locks,
		Metrics:  jobs.NewMetrics(a.registry),
	})
	a.sweep = &jobs.AutoSignOutJob{Sweeper: a.occupancy, Log: log}
	if err := a.scheduler.Add(cfg.Attendance.SweepSchedule, a.sweep); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.scheduler.Add(cfg.Outbox.Schedule, &jobs.OutboxJob{Dispatcher: a.dispatch, Log: log}); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// notifiers picks a provider per channel: Graph for the calendar, NATS for
// email and SMS, and the log notifier wherever nothing is configured.
func (a *app) notifiers(ctx context.Context) (map[notify.Kind]notify.Notifier, error) {
	log := a.log.WithField("component", "notify")
	out := map[notify.Kind]notify.Notifier{
		notify.KindCalendar: notify.LogNotifier{Kind: notify.KindCalendar, Log: log},
		notify.KindEmail:    notify.LogNotifier{Kind: notify.KindEmail, Log: log},
		notify.KindSMS:      notify.LogNotifier{Kind: notify.KindSMS, Log: log},
	}

	if g := a.cfg.Graph; g.Enabled() {
		cal, err := notify.NewGraphCalendar(ctx, notify.GraphConfig{
			TenantID:     g.TenantID,
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			UserID:       g.UserID,
			TimeZone:     g.TimeZone,
		})
		if err != nil {
			return nil, fmt.Errorf("graph calendar: %w", err)
		}
		out[notify.KindCalendar] = cal
	}

	if url := a.cfg.NATS.URL; url != "" {
		nc, err := notify.ConnectNATS(url, log)
		if err != nil {
			return nil, err
		}
		a.nc = nc
		out[notify.KindEmail] = notify.NewNATSNotifier(nc, a.cfg.NATS.SubjectPrefix, notify.KindEmail)
		out[notify.KindSMS] = notify.NewNATSNotifier(nc, a.cfg.NATS.SubjectPrefix, notify.KindSMS)
	}
	return out, nil
}

func (a *app) Close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.log.WithError(err).Warn("nats drain failed")
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
