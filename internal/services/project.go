package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/engine"
	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

type ProjectInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	WorkflowID  *uuid.UUID `json:"workflow_id"`
}

type ProjectService interface {
	Create(ctx context.Context, input ProjectInput) (*types.Record, error)
	Update(ctx context.Context, id uuid.UUID, input ProjectInput) (*types.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Record, error)
	List(ctx context.Context) ([]*types.Record, error)
	Versions(ctx context.Context, id uuid.UUID) ([]*types.Record, error)
	Matrix(ctx context.Context, id uuid.UUID) ([]engine.MatrixRow, error)
	RunCascade(ctx context.Context, id uuid.UUID) (*engine.CascadeResult, error)
}

type projectService struct {
	db      *gorm.DB
	log     *logger.Logger
	records repos.RecordRepo
	writer  *versioning.Writer
	engine  *engine.Engine
}

func NewProjectService(db *gorm.DB, log *logger.Logger, records repos.RecordRepo, writer *versioning.Writer, eng *engine.Engine) ProjectService {
	serviceLog := log.With("service", "ProjectService")
	return &projectService{
		db:      db,
		log:     serviceLog,
		records: records,
		writer:  writer,
		engine:  eng,
	}
}

func (ps *projectService) Create(ctx context.Context, input ProjectInput) (*types.Record, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("project name required")
	}
	return ps.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindProject,
		Attributes: ps.attributes(input),
	})
}

func (ps *projectService) Update(ctx context.Context, id uuid.UUID, input ProjectInput) (*types.Record, error) {
	current, err := latestActive(ctx, ps.records, id)
	if err != nil {
		return nil, err
	}
	if current.EntityKind != types.EntityKindProject {
		return nil, fmt.Errorf("record %s is not a project", id)
	}
	attrs, err := mergeAttributes(current, ps.attributes(input))
	if err != nil {
		return nil, err
	}
	return ps.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindProject,
		ID:         id,
		Attributes: attrs,
	})
}

func (ps *projectService) attributes(input ProjectInput) map[string]any {
	attrs := map[string]any{}
	if input.Name != "" {
		attrs["name"] = input.Name
	}
	if input.Description != "" {
		attrs["description"] = input.Description
	}
	if input.Status != "" {
		attrs["status"] = input.Status
	}
	if input.WorkflowID != nil {
		attrs["workflowId"] = input.WorkflowID.String()
	}
	return attrs
}

func (ps *projectService) Get(ctx context.Context, id uuid.UUID) (*types.Record, error) {
	return latestActive(ctx, ps.records, id)
}

func (ps *projectService) List(ctx context.Context) ([]*types.Record, error) {
	rows, err := ps.records.QueryActiveByKind(ctx, nil, types.EntityKindProject)
	if err != nil {
		return nil, err
	}
	return dedupeLatest(rows), nil
}

func (ps *projectService) Versions(ctx context.Context, id uuid.UUID) ([]*types.Record, error) {
	return ps.records.QueryVersions(ctx, nil, id)
}

func (ps *projectService) Matrix(ctx context.Context, id uuid.UUID) ([]engine.MatrixRow, error) {
	return ps.engine.Matrix(ctx, id)
}

func (ps *projectService) RunCascade(ctx context.Context, id uuid.UUID) (*engine.CascadeResult, error) {
	result, err := ps.engine.RunCascade(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	ps.log.Info("Cascade run finished",
		"project_id", id,
		"iterations", result.Iterations,
		"documents_changed", result.DocumentsChanged)
	return result, nil
}
