package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/formbox/internal/config"
	"github.com/iliyamo/formbox/internal/database"
	"github.com/iliyamo/formbox/internal/handler"
	"github.com/iliyamo/formbox/internal/logging"
	"github.com/iliyamo/formbox/internal/middleware"
	"github.com/iliyamo/formbox/internal/queue"
	"github.com/iliyamo/formbox/internal/repository"
	"github.com/iliyamo/formbox/internal/router"
	"github.com/iliyamo/formbox/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "formbox:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(cfg.AMQPURL, cfg.EventsEnabled, log)
	if cfg.EventsEnabled {
		go func() {
			if err := queue.StartConsumer(ctx, cfg.AMQPURL, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	accounts := service.NewAccountService(
		repository.NewUserRepo(db),
		repository.NewSessionRepo(db),
		service.AccountOptions{
			Secret:     []byte(cfg.SessionSecret),
			SessionTTL: cfg.SessionTTL,
			BcryptCost: cfg.BcryptCost,
		},
		log,
	)
	formRepo := repository.NewFormRepo(db)
	forms := service.NewFormService(formRepo, publisher, log)
	submissions := service.NewSubmissionService(repository.NewSubmissionRepo(db), formRepo, publisher, cfg.SubmissionStrict, log)

	cacheCfg := config.LoadCacheConfig()
	e := router.New(router.Deps{
		Auth:          handler.NewAuthHandler(accounts, handler.CookieConfig{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure}, log),
		Forms:         handler.NewFormHandler(forms, log),
		Submissions:   handler.NewSubmissionHandler(submissions, log),
		DB:            db,
		Authenticator: accounts,
		CookieName:    cfg.SessionCookieName,
		RateLimit:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:         middleware.NewRedisCache(cacheCfg, rdb, log),
		Purger:        middleware.NewCachePurger(cacheCfg, rdb, log),
		Log:           log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr()), zap.String("env", cfg.Env))
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
