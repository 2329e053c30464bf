package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/platform/apierr"
	"github.com/gbacskai/docflow4-sub002/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error  APIError         `json:"error"`
	Fields []map[string]any `json:"fields,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps service-layer failures onto HTTP statuses:
// missing records, rejected form payloads, and tagged api errors each get
// their own shape; anything else is a 500.
func RespondServiceError(c *gin.Context, err error) {
	var validation *services.ValidationFailedError
	if errors.As(err, &validation) {
		fields := make([]map[string]any, 0, len(validation.Errors))
		for _, fe := range validation.Errors {
			fields = append(fields, map[string]any{"field": fe.Field, "message": fe.Message})
		}
		c.JSON(http.StatusUnprocessableEntity, ErrorEnvelope{
			Error:  APIError{Message: validation.Error(), Code: "validation_failed"},
			Fields: fields,
		})
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	var api *apierr.Error
	if errors.As(err, &api) {
		RespondError(c, api.Status, api.Code, err)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
