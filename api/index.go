package handler

import (
	"context"
	"net/http"
	"sync"

	config "order-forecast-api/configs"
	"order-forecast-api/internal/bootstrap"
	"order-forecast-api/internal/router"
	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

var (
	engine  *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
// セッションはインスタンスのメモリにのみ保持されます。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		// 環境変数はVercelの設定から読み込まれるため、godotenvは呼び出しません。
		cfg := config.LoadConfig()
		gin.SetMode(gin.ReleaseMode)

		app, err := bootstrap.New(context.Background(), cfg, nil)
		if err != nil {
			initErr = err
			return
		}
		engine = router.New(app, services.NewMonitoringService(app.Location, app.Logger))
	})
	return engine, initErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	app, err := setupApp()
	if err != nil {
		http.Error(w, "service unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	app.ServeHTTP(w, r)
}
