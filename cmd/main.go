package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gomarket-app/backend/internal/auth"
	"github.com/gomarket-app/backend/internal/auth/jwt"
	rcache "github.com/gomarket-app/backend/internal/cache/redis"
	"github.com/gomarket-app/backend/internal/config"
	"github.com/gomarket-app/backend/internal/ctrl"
	hdl "github.com/gomarket-app/backend/internal/hdl/http"
	"github.com/gomarket-app/backend/internal/observability/metrics/prometheus"
	"github.com/gomarket-app/backend/internal/observability/tracing/jaeger"
	"github.com/gomarket-app/backend/internal/repo/db"
	"github.com/gomarket-app/backend/internal/repo/s3"
	"github.com/gomarket-app/backend/internal/smtp"
	"github.com/gomarket-app/backend/internal/throttle"
	"github.com/gomarket-app/backend/internal/worker"
	"go.uber.org/zap"
)

const envPath = ".env"

func mustRegisterLogger(mode string) {
	switch mode {
	case "prod":
		zap.ReplaceGlobals(zap.Must(zap.NewProduction()))
	case "dev":
		zap.ReplaceGlobals(zap.Must(zap.NewDevelopment()))
	}
}

func buildGates(cli *redis.Client) hdl.ThrottleGates {
	counter := throttle.NewRedisCounter(cli)
	return hdl.ThrottleGates{
		Login: throttle.NewGate(
			"login", throttle.Policy{
				Window:     15 * time.Minute,
				Max:        5,
				DelayAfter: 3,
				DelayStep:  500 * time.Millisecond,
				MaxDelay:   5 * time.Second,
			}, counter,
		),
		Register: throttle.NewGate(
			"register", throttle.Policy{
				Window: 15 * time.Minute,
				Max:    3,
			}, counter,
		),
		Refresh: throttle.NewGate(
			"refresh", throttle.Policy{
				Window: time.Minute,
				Max:    60,
			}, counter,
		),
	}
}

func main() {
	defer func() {
		if err := recover(); err != nil {
			zap.L().Panic("panic occurred", zap.Any("error", err))
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf := config.MustLoad(envPath)
	mustRegisterLogger(conf.Server.Mode)

	go prometheus.New(conf.Server.Port + 5).Start(ctx)
	go jaeger.Start(ctx, conf.ServiceName, conf.Jaeger)

	cache := rcache.New(conf.Redis)
	repo := db.New(conf)
	files := s3.New(conf)
	email := smtp.New(conf)

	// Throttle counters live in their own client so gate traffic does
	// not contend with the cache connection pool.
	throttleCli := redis.NewClient(
		&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
		},
	)

	au := jwt.New(conf)
	svc := ctrl.New(au, auth.New(), repo, cache, files, email)
	h := hdl.New(au, svc, buildGates(throttleCli))

	go worker.NewTokenSweeper(repo, config.SweepInterval, config.SweepRetention).Start(ctx)

	zap.L().Info(
		fmt.Sprintf(
			"Starting server on %v://%v:%v",
			conf.Server.Scheme,
			conf.Server.Domain,
			conf.Server.Port,
		),
	)
	go h.Start(conf.Server.Port)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c

	zap.L().Info("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := h.Close(shutdownCtx); err != nil {
		zap.L().Warn("Error closing handler", zap.Error(err))
	}

	if err := throttleCli.Close(); err != nil {
		zap.L().Warn("Error closing throttle client", zap.Error(err))
	}

	if err := cache.Close(); err != nil {
		zap.L().Warn("Failed to close connection to Redis: ", zap.Error(err))
	}

	if err := repo.Close(shutdownCtx); err != nil {
		zap.L().Warn("Error closing repository", zap.Error(err))
	}

	os.Exit(0)
}
