package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-enrollment/internal/config"
	"github.com/iliyamo/class-enrollment/internal/database"
	"github.com/iliyamo/class-enrollment/internal/handler"
	"github.com/iliyamo/class-enrollment/internal/logger"
	"github.com/iliyamo/class-enrollment/internal/middleware"
	"github.com/iliyamo/class-enrollment/internal/payment"
	"github.com/iliyamo/class-enrollment/internal/queue"
	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/router"
	"github.com/iliyamo/class-enrollment/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	log := logger.Configure(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := openDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn().Str("addr", cfg.Redis.Address()).Msg("redis unavailable; caching and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	classes := repository.NewClassRepo(db)
	carts := repository.NewCartRepo(db)
	enrollments := repository.NewEnrollmentRepo(db)
	payments := repository.NewPaymentRepo(db)
	users := repository.NewUserRepo(db)
	applications := repository.NewApplicationRepo(db)

	publisher := queue.NewPublisher(cfg.RabbitMQURL, log)
	engine := service.NewEngine(db, classes, carts, enrollments, payments, publisher, log)
	catalog := service.NewCatalog(classes, users)
	approval := service.NewApproval(db, applications, users, log)

	purger := middleware.NewCachePurger(cfg.Cache, rdb, log)
	settlement := handler.NewSettlementHandler(engine, cfg.SettlementTimeout)
	settlement.Cache = purger
	catalogHandler := handler.NewCatalogHandler(catalog, approval)
	catalogHandler.Cache = purger
	admin := handler.NewAdminHandler(approval, catalog, service.NewStats(classes, users, enrollments))
	admin.Cache = purger

	h := router.Handlers{
		Health:      &handler.HealthHandler{DB: db},
		Settlement:  settlement,
		Projection:  handler.NewProjectionHandler(service.NewEnrollmentViews(classes, enrollments, users)),
		Leaderboard: handler.NewLeaderboardHandler(service.NewLeaderboard(classes, users, cfg.LeaderboardLimit)),
		Cart:        handler.NewCartHandler(service.NewCartService(classes, carts, enrollments)),
		Payment:     handler.NewPaymentHandler(service.NewCheckout(payment.NewSandbox(), payments, cfg.Currency)),
		Catalog:     catalogHandler,
		Admin:       admin,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log))
	router.RegisterRoutes(e, h, router.Options{
		JWTSecret: cfg.JWTSecret,
		Cache:     cfg.Cache,
		RateLimit: cfg.RateLimit,
		Redis:     rdb,
		Log:       log,
	})

	var wg sync.WaitGroup
	consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.EventLogDir, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	log.Info().Msg("stopped")
}

func openDB(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.DBDriver == "mysql" {
		db, err := database.OpenMySQL(database.MySQLOptions{
			User: cfg.DBUser,
			Pass: cfg.DBPass,
			Host: cfg.DBHost,
			Port: cfg.DBPort,
			Name: cfg.DBName,
		})
		return db, database.MySQL, err
	}
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, database.SQLite, err
		}
	}
	db, err := database.OpenSQLite(cfg.SQLitePath)
	return db, database.SQLite, err
}
