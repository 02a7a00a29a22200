package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/calendar"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/jobs"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/migrations"
)

// devOwner receives the sample events when the server runs without a database.
const devOwner = "dev-user"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "hms-server",
		Short:        "HMS calendar and billing API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(exportICSCmd())
	return rootCmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	sample, err := calendar.LoadSampleFile(cfg.CalendarSampleFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load calendar sample events")
	}

	ctx := context.Background()
	var (
		pool   *pgxpool.Pool
		deps   serverDeps
		events calendar.EventRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		if migrate {
			n, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				logger.Fatal().Err(err).Msg("migration failed")
			}
			logger.Info().Int("applied", n).Msg("migrations applied")
		}

		events = calendar.NewEventRepoPG(pool)
		deps.pinger = pool
		deps.appointments = appointment.NewService(appointment.NewRepoPG(pool), logger)
		deps.calendar = calendar.NewService(events, deps.appointments.CalendarSource(), logger)
		deps.billing = billing.NewService(billing.NewInvoiceRepoPG(pool), logger)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, serving calendar from memory and disabling appointments and billing")
		events = calendar.NewMemoryEventRepo(devOwner, sample)
		deps.calendar = calendar.NewService(events, nil, logger)
	}
	deps.calendar.SetSampleEvents(sample)
	deps.calendar.SetClock(func() time.Time { return time.Now().In(loc) })

	deps.hub = websocket.NewHub(logger)
	deps.calendar.SetNotifier(deps.hub)
	if deps.appointments != nil {
		deps.appointments.SetClock(func() time.Time { return time.Now().In(loc) })
		deps.appointments.SetNotifier(deps.hub)
	}
	if deps.billing != nil {
		deps.billing.SetNotifier(deps.hub)
	}

	var scheduler *jobs.Scheduler
	if deps.billing != nil {
		scheduler = jobs.New(deps.billing, cfg.OverdueSchedule, loc, logger)
		if err := scheduler.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start scheduler")
		}
	}

	e := newServer(cfg, logger, deps)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth", cfg.AuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
