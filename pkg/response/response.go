package response

import (
	"errors"
	"net/http"

	"cstore/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Envelope is the standard API response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Error sends an error response. Domain errors (*apperror.AppError) are surfaced
// verbatim with their mapped status; anything else becomes an opaque 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Envelope{Success: false, Message: appErr.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, Envelope{Success: false, Message: "Internal server error"})
}
