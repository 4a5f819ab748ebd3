// Package router registers the HTTP API routes.
package router

import (
	"net/http"

	"order-forecast-api/internal/bootstrap"
	"order-forecast-api/pkg/handlers"
	"order-forecast-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証ミドルウェア
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || apiKey == "default_secret_key" {
			c.Next()
			return
		}
		providedKey := c.GetHeader("X-API-KEY")
		if providedKey != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// New registers every route on a new engine.
func New(app *bootstrap.App, monitoringService *services.MonitoringService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// ハンドラーの初期化
	forecastHandler := handlers.NewForecastHandler(app.Forecasts, app.Sessions)
	classificationHandler := handlers.NewClassificationHandler(app.Forecasts)
	recordsHandler := handlers.NewRecordsHandler(app.Records)
	sessionHandler := handlers.NewSessionHandler(app.Sessions)
	adminHandler := handlers.NewAdminHandler(app.Config, app.Logger)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)
	if app.Cache != nil {
		adminHandler.AddProbe("snapshot_cache", app.Cache.Ping)
	}

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-API-KEY", handlers.SessionHeader)
	r.Use(cors.New(corsConfig))

	// ヘルスチェックとメトリクス
	r.GET("/health", adminHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(app.Config.APIKey))
	{
		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}

		// セッションAPI
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.CreateSession)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.DELETE("/:id", sessionHandler.DeleteSession)
		}

		// 需要予測API
		demand := v1.Group("/demand")
		{
			demand.GET("/products", forecastHandler.GetProducts)
			demand.GET("/series", forecastHandler.GetSeries)
			demand.POST("/forecast", forecastHandler.PredictDemand)
			demand.GET("/forecast/export", forecastHandler.ExportForecast)
			demand.POST("/retrain", forecastHandler.RetrainModel)
		}

		// 注文ステータスAPI
		orders := v1.Group("/orders")
		{
			orders.POST("/classify", classificationHandler.ClassifyOrders)
			orders.PATCH("/:id/status", recordsHandler.UpdateOrderStatus)
		}

		v1.PATCH("/products/:id/stock", recordsHandler.UpdateProductStock)

		// レコードAPI
		records := v1.Group("/records")
		{
			records.GET("/:table", recordsHandler.ListRecords)
			records.POST("/:table", recordsHandler.CreateRecord)
		}
	}

	return r
}
