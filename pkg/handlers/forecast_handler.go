package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ForecastHandler 需要予測ハンドラー
type ForecastHandler struct {
	pipeline *services.PipelineService
	sessions *services.SessionStore
}

// NewForecastHandler 新しい需要予測ハンドラーを作成
func NewForecastHandler(pipeline *services.PipelineService, sessions *services.SessionStore) *ForecastHandler {
	return &ForecastHandler{pipeline: pipeline, sessions: sessions}
}

// GetProducts は需要データのある製品一覧を返す
func (h *ForecastHandler) GetProducts(c *gin.Context) {
	products, warnings, err := h.pipeline.Products(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"products": products, "warnings": warnings})
}

// GetSeries は製品の日次需要を返す
func (h *ForecastHandler) GetSeries(c *gin.Context) {
	product := strings.TrimSpace(c.Query("product"))
	if product == "" {
		respondBadRequest(c, "product is required")
		return
	}
	series, err := h.pipeline.DemandSeries(c.Request.Context(), product)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, series)
}

// PredictDemand 需要予測を実行
func (h *ForecastHandler) PredictDemand(c *gin.Context) {
	var request services.PredictRequest

	// リクエストボディをバインド
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBadRequest(c, "リクエストの解析に失敗しました: "+err.Error())
		return
	}

	result, ok := h.predict(c, request)
	if !ok {
		return
	}
	respondOK(c, result)
}

// ExportForecast は予測結果をxlsxとして返す
func (h *ForecastHandler) ExportForecast(c *gin.Context) {
	useCached, err := strconv.ParseBool(c.DefaultQuery("use_cached", "false"))
	if err != nil {
		respondBadRequest(c, "use_cached must be a boolean")
		return
	}
	request := services.PredictRequest{
		Product:   strings.TrimSpace(c.Query("product")),
		Month:     c.Query("month"),
		UseCached: useCached,
	}
	if request.Product == "" {
		respondBadRequest(c, "product is required")
		return
	}

	result, ok := h.predict(c, request)
	if !ok {
		return
	}
	data, err := services.ExportForecastWorkbook(result)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+services.ForecastExportFilename(result)+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *ForecastHandler) predict(c *gin.Context, request services.PredictRequest) (*services.ForecastResult, bool) {
	if _, err := services.ParseMonth(request.Month); err != nil {
		respondBadRequest(c, err.Error())
		return nil, false
	}
	session, release, ok := beginSession(c, h.sessions, false)
	if !ok {
		return nil, false
	}
	defer release()

	result, err := h.pipeline.PredictMonth(c.Request.Context(), session, request)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return result, true
}

// RetrainModel は実績データでモデルを再学習しセッションに保存する
func (h *ForecastHandler) RetrainModel(c *gin.Context) {
	var request services.RetrainRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBadRequest(c, "リクエストの解析に失敗しました: "+err.Error())
		return
	}
	if _, err := services.ParseMonth(request.Month); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	session, release, ok := beginSession(c, h.sessions, true)
	if !ok {
		return
	}
	defer release()

	result, err := h.pipeline.RetrainMonth(c.Request.Context(), session, request)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}
