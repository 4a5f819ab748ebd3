package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	config "order-forecast-api/configs"
	"order-forecast-api/internal/bootstrap"
	"order-forecast-api/internal/router"
	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// サービスの初期化
	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("FATAL: failed to initialise: %v", err)
	}
	defer app.Close()
	logger := app.Logger

	monitoringService := services.NewMonitoringService(app.Location, logger)
	r := router.New(app, monitoringService)

	// アイドルセッションとログの掃除
	go app.Sessions.RunJanitor(ctx, time.Minute)
	go pruneLogs(ctx, monitoringService, 7*24*time.Hour)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting order forecast API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// pruneLogs drops request log entries older than maxAge once an hour.
func pruneLogs(ctx context.Context, monitoring *services.MonitoringService, maxAge time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitoring.Prune(maxAge)
		}
	}
}
