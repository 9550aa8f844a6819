package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"parkingreserve/internal/api"
	"parkingreserve/internal/config"
	"parkingreserve/internal/logging"
	"parkingreserve/internal/network"
	"parkingreserve/internal/repository"
	"parkingreserve/internal/service"
)

func main() {
	config.LoadDotEnv()

	app := &cli.App{
		Name:   "parkingreserve",
		Usage:  "parking reservation admission service",
		Flags:  config.Flags(),
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Flags:  config.Flags(),
				Action: serve,
			},
			{
				Name:      "hash-password",
				Usage:     "print a bcrypt hash for ADMIN_PASSWORD_HASH",
				ArgsUsage: "<password>",
				Action: func(c *cli.Context) error {
					hash, err := service.HashPassword(c.Args().First())
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Fprintln(c.App.Writer, hash)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("parkingreserve exited")
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var stats service.StatsRecorder = service.NewMemoryStatsStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		stats = service.NewRedisStatsStore(rdb)
		log.WithField("addr", cfg.RedisAddr).Info("admission stats stored in redis")
	}

	messages := service.NewMessageBuilder(cfg.Location())
	var notifiers []service.Notifier
	if cfg.EmailEnabled() {
		notifiers = append(notifiers, service.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, messages, log))
	} else {
		log.Warn("SENDGRID_API_KEY or SENDGRID_FROM_EMAIL not set, email notifications disabled")
	}
	if cfg.SMSEnabled() {
		notifiers = append(notifiers, service.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, messages, log))
	} else {
		log.Warn("Twilio credentials not set, SMS notifications disabled")
	}
	dispatcher := service.NewNotificationDispatcher(log, notifiers...)

	hub := network.NewHub(log)
	go hub.Run(ctx)

	svc, err := service.NewReservationService(repo, cfg.TotalSpaces, cfg.CapacityThreshold,
		service.WithLogger(log),
		service.WithStats(stats),
		service.WithEventPublisher(hub),
		service.WithNotifications(dispatcher),
	)
	if err != nil {
		return err
	}

	jobs := service.NewJobService(svc, stats, log)
	scheduler := cron.New()
	if _, err := jobs.Schedule(ctx, scheduler, cfg.OccupancyReportSchedule); err != nil {
		return fmt.Errorf("invalid OCCUPANCY_REPORT_SCHEDULE %q: %w", cfg.OccupancyReportSchedule, err)
	}
	scheduler.Start()

	var limiter *api.ClientLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = api.NewClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, api.WithTrustForwardedFor(cfg.TrustForwardedFor))
		limiter.StartJanitor(ctx)
	}

	accessLog := log.WriterLevel(logrus.InfoLevel)
	defer accessLog.Close()

	adminRepo := repository.NewStaticAdminAuthRepository(cfg.AdminEmail, cfg.AdminPasswordHash)
	router := api.NewRouter(api.RouterDeps{
		Reservations: svc,
		AdminAuth:    service.NewAdminAuthService(adminRepo, cfg.JWTSecret, cfg.TokenTTL),
		JWTSecret:    cfg.JWTSecret,
		Limiter:      limiter,
		EventFeed:    hub.ServeWs,
		AccessLog:    accessLog,
		Log:          log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":           cfg.Port,
			"store":          cfg.Store,
			"total_spaces":   svc.TotalSpaces(),
			"capacity_limit": svc.CapacityLimit(),
		}).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	cronDone := scheduler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shut down")
	}
	select {
	case <-cronDone.Done():
	case <-shutdownCtx.Done():
		log.Warn("occupancy job did not finish before shutdown timeout")
	}
	dispatcher.Wait()
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (repository.ReservationRepository, func(), error) {
	var conn *sql.DB
	var repo repository.ReservationRepository
	var err error

	switch cfg.Store {
	case config.StorePostgres:
		conn, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err = repository.EnsurePostgresSchema(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		repo = repository.NewPostgresReservationRepository(conn)
	case config.StoreSQLite:
		conn, err = repository.InitSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo = repository.NewSQLiteReservationRepository(conn)
	default:
		log.Info("using in-memory reservation store")
		return repository.NewMemoryReservationRepository(), func() {}, nil
	}

	log.WithField("store", cfg.Store).Info("reservation store ready")
	return repo, func() { conn.Close() }, nil
}
