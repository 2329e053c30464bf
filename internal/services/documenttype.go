package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/platform/apierr"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/schema"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

type DocumentTypeInput struct {
	Identifier string             `json:"identifier"`
	Name       string             `json:"name"`
	Order      *int               `json:"order"`
	Schema     *schema.FormSchema `json:"schema"`
}

type DocumentTypeService interface {
	Create(ctx context.Context, input DocumentTypeInput) (*types.Record, error)
	Update(ctx context.Context, id uuid.UUID, input DocumentTypeInput) (*types.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Record, error)
	List(ctx context.Context) ([]*types.Record, error)
	SchemaByIdentifier(ctx context.Context, identifier string) (*schema.FormSchema, error)
}

type documentTypeService struct {
	db      *gorm.DB
	log     *logger.Logger
	records repos.RecordRepo
	writer  *versioning.Writer
}

func NewDocumentTypeService(db *gorm.DB, log *logger.Logger, records repos.RecordRepo, writer *versioning.Writer) DocumentTypeService {
	serviceLog := log.With("service", "DocumentTypeService")
	return &documentTypeService{
		db:      db,
		log:     serviceLog,
		records: records,
		writer:  writer,
	}
}

func (dts *documentTypeService) Create(ctx context.Context, input DocumentTypeInput) (*types.Record, error) {
	if input.Identifier == "" {
		return nil, fmt.Errorf("document type identifier required")
	}
	existing, err := dts.byIdentifier(ctx, input.Identifier)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict("document type %q already exists", input.Identifier)
	}
	attrs, err := dts.attributes(input)
	if err != nil {
		return nil, err
	}
	return dts.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindDocumentType,
		Attributes: attrs,
	})
}

func (dts *documentTypeService) Update(ctx context.Context, id uuid.UUID, input DocumentTypeInput) (*types.Record, error) {
	current, err := latestActive(ctx, dts.records, id)
	if err != nil {
		return nil, err
	}
	if current.EntityKind != types.EntityKindDocumentType {
		return nil, fmt.Errorf("record %s is not a document type", id)
	}
	updates, err := dts.attributes(input)
	if err != nil {
		return nil, err
	}
	attrs, err := mergeAttributes(current, updates)
	if err != nil {
		return nil, err
	}
	return dts.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindDocumentType,
		ID:         id,
		Attributes: attrs,
	})
}

func (dts *documentTypeService) attributes(input DocumentTypeInput) (map[string]any, error) {
	attrs := map[string]any{}
	if input.Identifier != "" {
		attrs["identifier"] = input.Identifier
	}
	if input.Name != "" {
		attrs["name"] = input.Name
	}
	if input.Order != nil {
		attrs["order"] = *input.Order
	}
	if input.Schema != nil {
		raw, err := json.Marshal(input.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		// Round-trip through Parse so invalid schemas are rejected at
		// authoring time, not at first form save.
		if _, err := schema.Parse(raw); err != nil {
			return nil, err
		}
		attrs["schema"] = input.Schema
	}
	return attrs, nil
}

func (dts *documentTypeService) Get(ctx context.Context, id uuid.UUID) (*types.Record, error) {
	return latestActive(ctx, dts.records, id)
}

func (dts *documentTypeService) List(ctx context.Context) ([]*types.Record, error) {
	rows, err := dts.records.QueryActiveByKind(ctx, nil, types.EntityKindDocumentType)
	if err != nil {
		return nil, err
	}
	return dedupeLatest(rows), nil
}

func (dts *documentTypeService) byIdentifier(ctx context.Context, identifier string) (*types.Record, error) {
	all, err := dts.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		attrs, err := rec.AttributeMap()
		if err != nil {
			continue
		}
		if ident, _ := attrs["identifier"].(string); ident == identifier {
			return rec, nil
		}
	}
	return nil, nil
}

func (dts *documentTypeService) SchemaByIdentifier(ctx context.Context, identifier string) (*schema.FormSchema, error) {
	rec, err := dts.byIdentifier(ctx, identifier)
	if err != nil || rec == nil {
		return nil, err
	}
	attrs, err := rec.AttributeMap()
	if err != nil {
		return nil, err
	}
	raw, ok := attrs["schema"]
	if !ok {
		return nil, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return schema.Parse(encoded)
}
