package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gbacskai/docflow4-sub002/internal/middleware"
	"github.com/gbacskai/docflow4-sub002/internal/platform/apierr"
	"github.com/gbacskai/docflow4-sub002/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	userID := middleware.UserIDFromContext(c.Request.Context())
	if userID == uuid.Nil {
		RespondServiceError(c, apierr.Forbidden("no authenticated user"))
		return
	}
	me, err := uh.userService.Get(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"me": me})
}

func (uh *UserHandler) UpdateMe(c *gin.Context) {
	userID := middleware.UserIDFromContext(c.Request.Context())
	if userID == uuid.Nil {
		RespondServiceError(c, apierr.Forbidden("no authenticated user"))
		return
	}
	var profile map[string]any
	if err := c.ShouldBindJSON(&profile); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	email := middleware.EmailFromContext(c.Request.Context())
	me, err := uh.userService.Upsert(c.Request.Context(), userID, email, profile)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"me": me})
}
