package handlers

import (
	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// ClassificationHandler runs the order status classifier.
type ClassificationHandler struct {
	pipeline *services.PipelineService
}

// NewClassificationHandler は新しいClassificationHandlerを生成します。
func NewClassificationHandler(pipeline *services.PipelineService) *ClassificationHandler {
	return &ClassificationHandler{pipeline: pipeline}
}

// ClassifyOrders trains on labeled orders and writes predicted statuses back.
// An empty body is a normal run.
func (h *ClassificationHandler) ClassifyOrders(c *gin.Context) {
	var request services.ClassifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			respondBadRequest(c, "リクエストの解析に失敗しました: "+err.Error())
			return
		}
	}

	result, err := h.pipeline.ClassifyOrders(c.Request.Context(), request)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}
