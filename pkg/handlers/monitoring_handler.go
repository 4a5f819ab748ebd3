package handlers

import (
	"net/http"

	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// periodHours は period クエリの許容値です。
var periodHours = map[string]int{
	"1h":  1,
	"6h":  6,
	"24h": 24,
	"7d":  24 * 7,
}

// MonitoringHandler はモニタリング関連の操作のハンドラです。
type MonitoringHandler struct {
	service *services.MonitoringService
}

// NewMonitoringHandler は新しいMonitoringHandlerを生成します。
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{service: service}
}

// GetLogs は集計されたログデータを返します。未知の period は24時間として扱います。
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	hours, ok := periodHours[c.DefaultQuery("period", "24h")]
	if !ok {
		hours = 24
	}
	c.JSON(http.StatusOK, h.service.GetDashboardData(hours))
}
