package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/campusbid/auction-service/internal/auction"
	"github.com/campusbid/auction-service/internal/broadcast"
	"github.com/campusbid/auction-service/internal/config"
	"github.com/campusbid/auction-service/internal/database"
	"github.com/campusbid/auction-service/internal/handler"
	"github.com/campusbid/auction-service/internal/queue"
	"github.com/campusbid/auction-service/internal/repository"
	"github.com/campusbid/auction-service/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	if cfg.Env == "dev" {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(database.Config{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	ledger := repository.NewLedger(db)
	users := repository.NewUserRepo(db)

	hub := broadcast.NewHub()
	events := broadcast.NewSink(hub)

	svc := auction.NewService(ledger, events, cfg.SoftClose)
	settler := auction.NewSettler(ledger, events, queue.NewPublisher(cfg.AMQPURL))
	scanner := auction.NewScanner(ledger, settler, events, cfg.ScanInterval, cfg.AdvisoryWindow)

	scanCtx, stopScan := context.WithCancel(context.Background())
	defer stopScan()
	go scanner.Run(scanCtx)

	// The audit consumer tolerates a missing broker and keeps retrying.
	go queue.StartSettlementConsumer(cfg.AMQPURL)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus: true, LogURI: true, LogMethod: true, LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.WithFields(log.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Info("request")
			return nil
		},
	}))

	router.Register(e, router.Deps{
		Cfg:      cfg,
		RateCfg:  config.LoadRateLimitConfig(),
		Redis:    rdb,
		Auth:     handler.NewAuthHandler(cfg, users),
		Items:    handler.NewItemHandler(ledger.Items),
		Auctions: handler.NewAuctionHandler(svc, settler, ledger.Auctions, ledger.Bids, cfg.JWTSecret),
		Admin:    handler.NewAdminHandler(users, ledger, settler),
		Hub:      hub,
	})

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Env}).Info("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopScan()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}
