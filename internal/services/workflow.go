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

type WorkflowInput struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Rules       []types.Rule `json:"rules"`
}

// RuleCheck is the authoring-time verdict on one rule: either the compiled
// dependency set, or why it failed to parse.
type RuleCheck struct {
	RuleID    string   `json:"rule_id"`
	Valid     bool     `json:"valid"`
	DependsOn []string `json:"depends_on,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type WorkflowService interface {
	Create(ctx context.Context, input WorkflowInput) (*types.Record, error)
	Update(ctx context.Context, id uuid.UUID, input WorkflowInput) (*types.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Record, error)
	List(ctx context.Context) ([]*types.Record, error)
	CheckRules(rules []types.Rule) []RuleCheck
}

type workflowService struct {
	db      *gorm.DB
	log     *logger.Logger
	records repos.RecordRepo
	writer  *versioning.Writer
}

func NewWorkflowService(db *gorm.DB, log *logger.Logger, records repos.RecordRepo, writer *versioning.Writer) WorkflowService {
	serviceLog := log.With("service", "WorkflowService")
	return &workflowService{
		db:      db,
		log:     serviceLog,
		records: records,
		writer:  writer,
	}
}

func (ws *workflowService) Create(ctx context.Context, input WorkflowInput) (*types.Record, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("workflow name required")
	}
	return ws.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindWorkflow,
		Attributes: ws.attributes(input),
	})
}

func (ws *workflowService) Update(ctx context.Context, id uuid.UUID, input WorkflowInput) (*types.Record, error) {
	current, err := latestActive(ctx, ws.records, id)
	if err != nil {
		return nil, err
	}
	if current.EntityKind != types.EntityKindWorkflow {
		return nil, fmt.Errorf("record %s is not a workflow", id)
	}
	attrs, err := mergeAttributes(current, ws.attributes(input))
	if err != nil {
		return nil, err
	}
	return ws.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindWorkflow,
		ID:         id,
		Attributes: attrs,
	})
}

func (ws *workflowService) attributes(input WorkflowInput) map[string]any {
	attrs := map[string]any{}
	if input.Name != "" {
		attrs["name"] = input.Name
	}
	if input.Description != "" {
		attrs["description"] = input.Description
	}
	if input.Rules != nil {
		attrs["rules"] = input.Rules
	}
	return attrs
}

func (ws *workflowService) Get(ctx context.Context, id uuid.UUID) (*types.Record, error) {
	return latestActive(ctx, ws.records, id)
}

func (ws *workflowService) List(ctx context.Context) ([]*types.Record, error) {
	rows, err := ws.records.QueryActiveByKind(ctx, nil, types.EntityKindWorkflow)
	if err != nil {
		return nil, err
	}
	return dedupeLatest(rows), nil
}

// CheckRules parse-checks rule text without persisting anything, so the
// authoring UI can flag broken rules before they reach the engine.
func (ws *workflowService) CheckRules(rules []types.Rule) []RuleCheck {
	checks := make([]RuleCheck, 0, len(rules))
	for _, r := range rules {
		parsed, err := engine.ParseRule(r)
		if err != nil {
			checks = append(checks, RuleCheck{RuleID: r.ID, Valid: false, Error: err.Error()})
			continue
		}
		checks = append(checks, RuleCheck{RuleID: r.ID, Valid: true, DependsOn: parsed.DependsOn})
	}
	return checks
}
