package handlers

import (
	"errors"
	"net/http"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/apiclient"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to the status returned to the browser
func statusFor(err error) int {
	var validationErr *apiclient.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, apiclient.ErrTransport):
		return http.StatusServiceUnavailable
	}
	if status := apiclient.StatusCode(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}

func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var validationErr *apiclient.ValidationError
	if errors.As(err, &validationErr) {
		body["field"] = validationErr.Field
	}
	c.JSON(statusFor(err), body)
}

func respondRaw(c *gin.Context, raw []byte) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
