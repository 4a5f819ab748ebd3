package handlers

import (
	"net/http"

	"order-forecast-api/pkg/models"
	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// RecordsHandler serves table listings, record creation and manual edits.
type RecordsHandler struct {
	records *services.RecordsService
}

// NewRecordsHandler は新しいRecordsHandlerを生成します。
func NewRecordsHandler(records *services.RecordsService) *RecordsHandler {
	return &RecordsHandler{records: records}
}

// ListRecords はテーブルの全レコードを表示用に返します。
func (h *RecordsHandler) ListRecords(c *gin.Context) {
	kind, err := services.ParseTableKind(c.Param("table"))
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := h.records.List(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

// CreateRecord はテーブルにレコードを追加します。
func (h *RecordsHandler) CreateRecord(c *gin.Context) {
	kind, err := services.ParseTableKind(c.Param("table"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	var bindErr error
	var created interface{}
	switch kind {
	case services.KindOrders:
		var req services.NewOrder
		if bindErr = c.ShouldBindJSON(&req); bindErr == nil {
			created, err = h.records.CreateOrder(ctx, req)
		}
	case services.KindOrderLines:
		var req services.NewOrderLine
		if bindErr = c.ShouldBindJSON(&req); bindErr == nil {
			created, err = h.records.CreateOrderLine(ctx, req)
		}
	case services.KindProducts:
		var req services.NewProduct
		if bindErr = c.ShouldBindJSON(&req); bindErr == nil {
			created, err = h.records.CreateProduct(ctx, req)
		}
	case services.KindCustomers:
		var req services.NewCustomer
		if bindErr = c.ShouldBindJSON(&req); bindErr == nil {
			created, err = h.records.CreateCustomer(ctx, req)
		}
	}
	if bindErr != nil {
		respondBadRequest(c, "リクエストの解析に失敗しました: "+bindErr.Error())
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": created})
}

// StatusUpdate is the body of a manual status edit.
type StatusUpdate struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// UpdateOrderStatus は注文ステータスを手動で変更します。
func (h *RecordsHandler) UpdateOrderStatus(c *gin.Context) {
	var req StatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}
	record, err := h.records.SetOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}

// StockUpdate is the body of a stock edit.
type StockUpdate struct {
	Stock *int `json:"stock" binding:"required"`
}

// UpdateProductStock は在庫数を変更します。
func (h *RecordsHandler) UpdateProductStock(c *gin.Context) {
	var req StockUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "stock is required")
		return
	}
	record, err := h.records.SetProductStock(c.Request.Context(), c.Param("id"), *req.Stock)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, record)
}
