package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	config "order-forecast-api/configs"
	"order-forecast-api/internal/bootstrap"
	"order-forecast-api/internal/router"
	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	// テスト環境の設定
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupTestRouter(t *testing.T, apiKey string) *gin.Engine {
	t.Helper()
	base := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records := []map[string]interface{}{}
		if strings.HasSuffix(r.URL.Path, "/Inventari") {
			records = append(records, map[string]interface{}{"id": "recP1", "fields": map[string]interface{}{"ProductID": "P1"}})
		}
		if strings.HasSuffix(r.URL.Path, "/Detall comanda") {
			records = append(records, map[string]interface{}{"id": "recL1", "fields": map[string]interface{}{
				"ProductID": []string{"recP1"}, "Quantity": 3, "Data": "2025-01-02",
			}})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"records": records})
	}))
	t.Cleanup(base.Close)

	cfg := &config.Config{
		Environment:            "test",
		APIKey:                 apiKey,
		AdminUsername:          "admin",
		AirtableBaseURL:        base.URL,
		AirtableAPIKey:         "patTEST",
		AirtableBaseID:         "appTEST",
		AirtableOrdersTable:    "Comanda",
		AirtableLinesTable:     "Detall comanda",
		AirtableProductsTable:  "Inventari",
		AirtableCustomersTable: "Client",
		AirtableTimeoutSeconds: 2,
		SnapshotTTLSeconds:     60,
		SessionIdleMinutes:     10,
		PipelineConfigPath:     filepath.Join(t.TempDir(), "absent.yaml"),
		Timezone:               "UTC",
	}
	app, err := bootstrap.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return router.New(app, services.NewMonitoringService(time.UTC, zap.NewNop()))
}

func serve(r *gin.Engine, method, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupTestRouter(t, "")

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health").Code)

	w := serve(r, http.MethodGet, "/api/v1/demand/products")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"P1"`)

	w = serve(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "order_forecast_store_requests_total")
	assert.Contains(t, w.Body.String(), `env="test"`)
}

func TestAPIKeyMiddleware(t *testing.T) {
	r := setupTestRouter(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/sessions").Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/api/v1/sessions", "X-API-KEY", "s3cret").Code)

	// /health と /metrics は認証不要
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health").Code)
}

func TestRequestsAppearOnDashboard(t *testing.T) {
	r := setupTestRouter(t, "")

	serve(r, http.MethodGet, "/api/v1/demand/products")
	w := serve(r, http.MethodGet, "/api/v1/monitoring/logs?period=1h")
	require.Equal(t, http.StatusOK, w.Code)

	var data services.DashboardData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, 1, data.Endpoints["/api/v1/demand/products"])
}
