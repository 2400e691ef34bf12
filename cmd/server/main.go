package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/video-rental/internal/config"
	"github.com/iliyamo/video-rental/internal/database"
	"github.com/iliyamo/video-rental/internal/handler"
	"github.com/iliyamo/video-rental/internal/queue"
	"github.com/iliyamo/video-rental/internal/repository"
	"github.com/iliyamo/video-rental/internal/router"
	"github.com/iliyamo/video-rental/internal/service"
)

func main() {
	// A missing .env is fine; the real environment still applies.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(database.Options{
		Driver: database.Dialect(cfg.DBDriver),
		Path:   cfg.DBPath,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	titles := repository.NewTitleRepo(store)
	customers := repository.NewCustomerRepo(store)
	rentals := repository.NewRentalRepo(store)
	query := repository.NewRentalQuery(store)
	users := repository.NewUserRepo(store)
	if cfg.ManagerEmail != "" {
		created, err := users.EnsureManager(ctx, cfg.ManagerEmail, cfg.ManagerPassword, cfg.BcryptCost)
		if err != nil {
			return err
		}
		logger.Info("manager account ready", "email", cfg.ManagerEmail, "created", created)
	}

	g, gctx := errgroup.WithContext(ctx)

	ledgerOpts := []service.Option{service.WithLogger(logger)}
	if cfg.RabbitURL != "" {
		ledgerOpts = append(ledgerOpts, service.WithPublisher(service.NewAMQPPublisher(cfg.RabbitURL, logger)))
		g.Go(func() error {
			err := queue.StartRentalConsumer(gctx, cfg.RabbitURL, cfg.RentalLogDir, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("RABBITMQ_URL not set, rental events disabled")
	}
	ledger := service.NewLedger(store, titles, customers, rentals, ledgerOpts...)

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	e := router.New(router.Handlers{
		Health:    &handler.HealthHandler{Store: store},
		Auth:      handler.NewAuthHandler(cfg, users, logger),
		Catalog:   handler.NewCatalogHandler(titles, logger),
		Customers: handler.NewCustomerHandler(customers, query, logger),
		Rentals:   handler.NewRentalHandler(ledger, rentals, query, logger),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		Logger:    logger,
	})

	addr := ":" + cfg.Port
	g.Go(func() error {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
