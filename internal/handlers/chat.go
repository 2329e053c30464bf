package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gbacskai/docflow4-sub002/internal/middleware"
	"github.com/gbacskai/docflow4-sub002/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (ch *ChatHandler) CreateRoom(c *gin.Context) {
	var body struct {
		ProjectID uuid.UUID `json:"project_id"`
		Name      string    `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := ch.chatService.CreateRoom(c.Request.Context(), body.ProjectID, body.Name)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"room": record})
}

func (ch *ChatHandler) ListRooms(c *gin.Context) {
	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	records, err := ch.chatService.ListRooms(c.Request.Context(), projectID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"rooms": records})
}

func (ch *ChatHandler) PostMessage(c *gin.Context) {
	roomID, err := pathID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	sender := middleware.UserIDFromContext(c.Request.Context())
	record, err := ch.chatService.PostMessage(c.Request.Context(), roomID, sender.String(), body.Body)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"message": record})
}

func (ch *ChatHandler) ListMessages(c *gin.Context) {
	roomID, err := pathID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	records, err := ch.chatService.ListMessages(c.Request.Context(), roomID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": records})
}
