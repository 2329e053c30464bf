package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/engine"
	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/schema"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

type DocumentInput struct {
	ProjectID    uuid.UUID      `json:"project_id"`
	DocumentType string         `json:"document_type"`
	FormData     map[string]any `json:"form_data"`
}

// ValidationFailedError carries the per-field results of a rejected save.
type ValidationFailedError struct {
	Errors []schema.FieldError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("form validation failed (%d errors)", len(e.Errors))
}

type DocumentService interface {
	// Save appends a new version (creating the entity when id is uuid.Nil),
	// then runs the workflow cascade for the owning project. The returned
	// cascade result may be nil when the project has no workflow.
	Save(ctx context.Context, id uuid.UUID, input DocumentInput) (*types.Record, *engine.CascadeResult, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Record, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Record, error)
	Versions(ctx context.Context, id uuid.UUID) ([]*types.Record, error)
	FormSchema(ctx context.Context, id uuid.UUID) (*schema.FormSchema, error)
}

type documentService struct {
	db       *gorm.DB
	log      *logger.Logger
	records  repos.RecordRepo
	writer   *versioning.Writer
	engine   *engine.Engine
	docTypes DocumentTypeService
}

func NewDocumentService(db *gorm.DB, log *logger.Logger, records repos.RecordRepo, writer *versioning.Writer, eng *engine.Engine, docTypes DocumentTypeService) DocumentService {
	serviceLog := log.With("service", "DocumentService")
	return &documentService{
		db:       db,
		log:      serviceLog,
		records:  records,
		writer:   writer,
		engine:   eng,
		docTypes: docTypes,
	}
}

func (ds *documentService) Save(ctx context.Context, id uuid.UUID, input DocumentInput) (*types.Record, *engine.CascadeResult, error) {
	projectID := input.ProjectID
	docType := input.DocumentType
	var attrs map[string]any

	if id == uuid.Nil {
		if projectID == uuid.Nil {
			return nil, nil, fmt.Errorf("project id required")
		}
		if docType == "" {
			return nil, nil, fmt.Errorf("document type required")
		}
		attrs = map[string]any{"formData": input.FormData}
	} else {
		current, err := latestActive(ctx, ds.records, id)
		if err != nil {
			return nil, nil, err
		}
		if current.EntityKind != types.EntityKindDocument {
			return nil, nil, fmt.Errorf("record %s is not a document", id)
		}
		if current.ProjectID != nil {
			projectID = *current.ProjectID
		}
		docType = current.DocumentType
		attrs, err = mergeAttributes(current, map[string]any{"formData": input.FormData})
		if err != nil {
			return nil, nil, err
		}
	}

	if err := ds.validateForm(ctx, docType, input.FormData); err != nil {
		return nil, nil, err
	}

	record, err := ds.writer.Write(ctx, versioning.WriteInput{
		EntityKind:   types.EntityKindDocument,
		ID:           id,
		ProjectID:    &projectID,
		DocumentType: docType,
		Attributes:   attrs,
	})
	if err != nil {
		return nil, nil, err
	}

	changedID := record.ID
	result, err := ds.engine.RunCascade(ctx, projectID, &changedID)
	if err != nil {
		// The document version is committed; a cascade failure is surfaced
		// separately so the caller does not retry the save.
		ds.log.Error("Cascade after document save failed", "document_id", record.ID, "project_id", projectID, "error", err)
		return record, nil, nil
	}
	return record, result, nil
}

func (ds *documentService) validateForm(ctx context.Context, docType string, formData map[string]any) error {
	if len(formData) == 0 {
		return nil
	}
	formSchema, err := ds.docTypes.SchemaByIdentifier(ctx, docType)
	if err != nil || formSchema == nil {
		// A type without a declared schema accepts any payload.
		return nil
	}
	if errs := formSchema.Validate(formData); len(errs) > 0 {
		return &ValidationFailedError{Errors: errs}
	}
	return nil
}

func (ds *documentService) Get(ctx context.Context, id uuid.UUID) (*types.Record, error) {
	return latestActive(ctx, ds.records, id)
}

func (ds *documentService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Record, error) {
	rows, err := ds.records.QueryAllActiveByProject(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	docs := make([]*types.Record, 0, len(rows))
	for _, row := range rows {
		if row.EntityKind == types.EntityKindDocument {
			docs = append(docs, row)
		}
	}
	return dedupeLatest(docs), nil
}

func (ds *documentService) Versions(ctx context.Context, id uuid.UUID) ([]*types.Record, error) {
	return ds.records.QueryVersions(ctx, nil, id)
}

// FormSchema returns the document's type schema with engine-disabled fields
// applied, ready for rendering.
func (ds *documentService) FormSchema(ctx context.Context, id uuid.UUID) (*schema.FormSchema, error) {
	doc, err := latestActive(ctx, ds.records, id)
	if err != nil {
		return nil, err
	}
	formSchema, err := ds.docTypes.SchemaByIdentifier(ctx, doc.DocumentType)
	if err != nil {
		return nil, err
	}
	if formSchema == nil {
		return &schema.FormSchema{}, nil
	}
	attrs, err := doc.AttributeMap()
	if err != nil {
		return nil, err
	}
	var disabled []string
	if raw, ok := attrs["disabledFields"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				disabled = append(disabled, s)
			}
		}
	}
	return formSchema.ApplyFieldState(disabled), nil
}
