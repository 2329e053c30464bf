package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gbacskai/docflow4-sub002/internal/services"
	"github.com/gbacskai/docflow4-sub002/internal/types"
)

type WorkflowHandler struct {
	workflowService services.WorkflowService
}

func NewWorkflowHandler(workflowService services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService}
}

func (wh *WorkflowHandler) Create(c *gin.Context) {
	var input services.WorkflowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := wh.workflowService.Create(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"workflow": record})
}

func (wh *WorkflowHandler) Update(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var input services.WorkflowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := wh.workflowService.Update(c.Request.Context(), id, input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"workflow": record})
}

func (wh *WorkflowHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := wh.workflowService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"workflow": record})
}

func (wh *WorkflowHandler) List(c *gin.Context) {
	records, err := wh.workflowService.List(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"workflows": records})
}

// CheckRules parse-checks rule text without saving, for the authoring UI.
func (wh *WorkflowHandler) CheckRules(c *gin.Context) {
	var body struct {
		Rules []types.Rule `json:"rules"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	RespondOK(c, gin.H{"checks": wh.workflowService.CheckRules(body.Rules)})
}
