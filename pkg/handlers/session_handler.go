package handlers

import (
	"net/http"

	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// SessionHandler creates and ends forecast sessions.
type SessionHandler struct {
	sessions *services.SessionStore
}

// NewSessionHandler は新しいSessionHandlerを生成します。
func NewSessionHandler(sessions *services.SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSession はモデルスロットを持つ新しいセッションを発行します。
func (h *SessionHandler) CreateSession(c *gin.Context) {
	session := h.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"session_id": session.ID,
			"created_at": session.CreatedAt,
			"header":     SessionHeader,
		},
	})
}

// GetSession returns the summary of the cached model, if any.
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	data := gin.H{"session_id": session.ID, "created_at": session.CreatedAt, "model": nil}
	if model := session.Model(); model != nil {
		data["model"] = model.Summary()
	}
	respondOK(c, data)
}

// DeleteSession はセッションとキャッシュされたモデルを破棄します。
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		respondError(c, services.ErrSessionNotFound)
		return
	}
	respondOK(c, gin.H{"session_id": c.Param("id")})
}
