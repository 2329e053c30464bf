package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gbacskai/docflow4-sub002/internal/services"
)

type DocumentTypeHandler struct {
	docTypeService services.DocumentTypeService
}

func NewDocumentTypeHandler(docTypeService services.DocumentTypeService) *DocumentTypeHandler {
	return &DocumentTypeHandler{docTypeService: docTypeService}
}

func (dth *DocumentTypeHandler) Create(c *gin.Context) {
	var input services.DocumentTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := dth.docTypeService.Create(c.Request.Context(), input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"document_type": record})
}

func (dth *DocumentTypeHandler) Update(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var input services.DocumentTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := dth.docTypeService.Update(c.Request.Context(), id, input)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document_type": record})
}

func (dth *DocumentTypeHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := dth.docTypeService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document_type": record})
}

func (dth *DocumentTypeHandler) List(c *gin.Context) {
	records, err := dth.docTypeService.List(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"document_types": records})
}
