package handlers

import (
	"errors"
	"net/http"

	"order-forecast-api/pkg/models"
	"order-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// SessionHeader carries the forecast session id.
const SessionHeader = "X-Session-ID"

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		fetchErr        *models.DataFetchError
		insufficientErr *models.InsufficientDataError
		validationErr   *services.ValidationError
	)
	switch {
	case errors.As(err, &insufficientErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrUnknownTable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError は失敗レスポンスを返します。
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
	})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// beginSession resolves the session named by the request header and locks it
// for the duration of the action. A request without the header gets a nil
// session unless required is set.
func beginSession(c *gin.Context, sessions *services.SessionStore, required bool) (*services.ForecastSession, func(), bool) {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		if required {
			respondBadRequest(c, SessionHeader+" header is required")
			return nil, nil, false
		}
		return nil, func() {}, true
	}
	session, err := sessions.Get(id)
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	release, err := session.Begin()
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return session, release, true
}
