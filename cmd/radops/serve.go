package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"radhiant_ops/internal/booking"
	"radhiant_ops/internal/controllers"
	"radhiant_ops/internal/middleware"
	"radhiant_ops/internal/reporting"
	"radhiant_ops/internal/routes"
	"radhiant_ops/internal/users"
)

func serveCmd() *cobra.Command {
	var noJobs bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), noJobs)
		},
	}
	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "Do not start the cron scheduler (another instance runs it)")
	return cmd
}

func serve(parent context.Context, noJobs bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := controllers.NewTruckHub(a.log.WithField("component", "ws"))
	defer hub.Close()
	// after the status cache, so broadcasts read fresh state
	a.occupancy.AddObserver(&controllers.StatusBroadcaster{Hub: hub, Source: a.status, Log: a.log})

	h := &controllers.Handler{
		DB:        a.db,
		Occupancy: a.occupancy,
		Status:    a.status,
		Reports:   reporting.NewService(a.db, a.cfg.Attendance.Location()),
		Users:     users.NewService(a.db, a.hasher, a.log.WithField("component", "users")),
		Bookings:  booking.NewService(a.db, a.log.WithField("component", "booking")),
		Jobs:      a.scheduler,
		Sweep:     a.sweep,
		Hub:       hub,
		Tokens:    middleware.NewJWT(a.cfg.JWT.Secret, a.cfg.JWT.TTL),
		Log:       a.log,
	}
	r := routes.SetupRouter(h, routes.Options{
		AllowedOrigins: a.cfg.App.AllowedOrigins,
		AccessLog:      a.logOut,
		Metrics:        a.registry,
	})

	if !noJobs {
		a.scheduler.Start(ctx)
		defer a.scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
