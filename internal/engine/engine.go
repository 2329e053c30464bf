package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

const (
	defaultMaxIterations = 10
	defaultTimeout       = 30 * time.Second
)

// CascadeResult summarizes one cascade run for the operator surface.
type CascadeResult struct {
	ProjectID        uuid.UUID   `json:"project_id"`
	Iterations       int         `json:"iterations"`
	RulesEvaluated   int         `json:"rules_evaluated"`
	ActionsApplied   []string    `json:"actions_applied"`
	DocumentsChanged int         `json:"documents_changed"`
	SkippedRules     []RuleError `json:"skipped_rules,omitempty"`
	CapReached       bool        `json:"cap_reached,omitempty"`
}

// Engine evaluates a project's workflow rules against the active document
// snapshot and applies satisfied actions until a fixpoint, an iteration
// cap, or a wall-clock timeout. Runs for the same project are serialized
// through the locker.
type Engine struct {
	log           *logger.Logger
	records       repos.RecordRepo
	writer        *versioning.Writer
	locker        ProjectLocker
	maxIterations int
	timeout       time.Duration
}

func NewEngine(log *logger.Logger, records repos.RecordRepo, writer *versioning.Writer, locker ProjectLocker, maxIterations int, timeout time.Duration) *Engine {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	engineLog := log.With("service", "WorkflowEngine")
	return &Engine{
		log:           engineLog,
		records:       records,
		writer:        writer,
		locker:        locker,
		maxIterations: maxIterations,
		timeout:       timeout,
	}
}

// RunCascade evaluates the project's rule set to a fixpoint.
// changedDocumentID is a hint for logging only; the engine always re-reads
// the full project state because it has no incremental diff mechanism.
func (e *Engine) RunCascade(ctx context.Context, projectID uuid.UUID, changedDocumentID *uuid.UUID) (*CascadeResult, error) {
	runLog := e.log.With("project_id", projectID)
	if changedDocumentID != nil {
		runLog = runLog.With("changed_document_id", *changedDocumentID)
	}

	unlock, err := e.locker.Lock(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("acquire cascade lock: %w", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result := &CascadeResult{ProjectID: projectID, ActionsApplied: []string{}}

	rules, skipped, err := e.loadRules(ctx, projectID)
	if err != nil {
		return nil, err
	}
	result.SkippedRules = skipped
	for _, bad := range skipped {
		runLog.Warn("Skipping malformed workflow rule", "rule_id", bad.RuleID, "error", bad.Error)
	}
	if len(rules) == 0 {
		runLog.Debug("No usable workflow rules, nothing to cascade")
		return result, nil
	}

	for result.Iterations < e.maxIterations {
		if err := ctx.Err(); err != nil {
			runLog.Warn("Cascade stopped by timeout", "iterations", result.Iterations)
			result.CapReached = true
			return result, nil
		}

		active, err := e.records.QueryAllActiveByProject(ctx, nil, projectID)
		if err != nil {
			return result, fmt.Errorf("load project documents: %w", err)
		}
		snap := BuildSnapshot(active)

		changes := 0
		for _, rule := range rules {
			result.RulesEvaluated++
			if !rule.Validation.Eval(snap) {
				continue
			}
			changed, err := e.apply(ctx, projectID, rule.Action, snap)
			if err != nil {
				// A failed action write aborts that action only; the rest of
				// the iteration continues.
				runLog.Error("Action failed", "rule_id", rule.Rule.ID, "action", rule.Action.String(), "error", err)
				continue
			}
			if changed {
				changes++
				result.DocumentsChanged++
				result.ActionsApplied = append(result.ActionsApplied, fmt.Sprintf("%s:%s", rule.Rule.ID, rule.Action.String()))
			}
		}

		result.Iterations++
		if changes == 0 {
			runLog.Info("Cascade converged",
				"iterations", result.Iterations,
				"rules_evaluated", result.RulesEvaluated,
				"documents_changed", result.DocumentsChanged)
			return result, nil
		}
	}

	result.CapReached = true
	runLog.Warn("Cascade hit iteration cap before converging",
		"iterations", result.Iterations,
		"documents_changed", result.DocumentsChanged)
	return result, nil
}

// loadRules resolves project -> assigned workflow -> compiled rule set.
func (e *Engine) loadRules(ctx context.Context, projectID uuid.UUID) ([]*ParsedRule, []RuleError, error) {
	project, err := e.latestActive(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	}
	if project == nil {
		return nil, nil, fmt.Errorf("project %s has no active record", projectID)
	}

	attrs, err := project.AttributeMap()
	if err != nil {
		return nil, nil, fmt.Errorf("decode project attributes: %w", err)
	}
	workflowRef, _ := attrs["workflowId"].(string)
	if workflowRef == "" {
		return nil, nil, nil
	}
	workflowID, err := uuid.Parse(workflowRef)
	if err != nil {
		return nil, nil, fmt.Errorf("project %s has malformed workflowId %q", projectID, workflowRef)
	}

	workflow, err := e.latestActive(ctx, workflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("load workflow: %w", err)
	}
	if workflow == nil {
		e.log.Warn("Assigned workflow has no active record", "project_id", projectID, "workflow_id", workflowID)
		return nil, nil, nil
	}

	var wfAttrs types.WorkflowAttributes
	if len(workflow.Attributes) > 0 {
		if err := json.Unmarshal(workflow.Attributes, &wfAttrs); err != nil {
			return nil, nil, fmt.Errorf("decode workflow attributes: %w", err)
		}
	}

	parsed, failed := ParseRules(wfAttrs.Rules)
	return parsed, failed, nil
}

func (e *Engine) latestActive(ctx context.Context, id uuid.UUID) (*types.Record, error) {
	rows, err := e.records.QueryActiveByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var latest *types.Record
	for _, row := range rows {
		if latest == nil || row.Version > latest.Version {
			latest = row
		}
	}
	return latest, nil
}

// apply executes one action against the iteration snapshot. Every branch is
// a no-op when the goal state already holds, which is what lets the cascade
// reach a fixpoint.
func (e *Engine) apply(ctx context.Context, projectID uuid.UUID, action Action, snap *Snapshot) (bool, error) {
	doc := snap.Docs[action.DocType]

	switch action.Verb {
	case VerbProcess:
		if doc == nil {
			pid := projectID
			_, err := e.writer.Write(ctx, versioning.WriteInput{
				EntityKind:   types.EntityKindDocument,
				ProjectID:    &pid,
				DocumentType: action.DocType,
				Attributes: map[string]any{
					"formData": map[string]any{"status": "inprogress"},
				},
			})
			if err != nil {
				return false, err
			}
			return true, nil
		}
		switch doc.Status {
		case "", "notstarted", "queued":
			return e.rewriteDocument(ctx, doc, func(attrs map[string]any) {
				form := DecodeFormData(attrs)
				form["status"] = "inprogress"
				attrs["formData"] = form
			})
		}
		return false, nil

	case VerbHide:
		if doc == nil || doc.Hidden {
			return false, nil
		}
		return e.rewriteDocument(ctx, doc, func(attrs map[string]any) {
			attrs["hidden"] = true
		})

	case VerbDisable:
		if doc == nil {
			return false, nil
		}
		disabled := stringSlice(docAttr(doc, "disabledFields"))
		for _, f := range disabled {
			if f == action.Field {
				return false, nil
			}
		}
		return e.rewriteDocument(ctx, doc, func(attrs map[string]any) {
			fields := stringSlice(attrs["disabledFields"])
			for _, f := range fields {
				if f == action.Field {
					return
				}
			}
			attrs["disabledFields"] = append(fields, action.Field)
		})
	}
	return false, fmt.Errorf("unknown action verb %q", action.Verb)
}

// rewriteDocument appends a new version of doc with mutate applied to a
// copy of its attributes. The base is re-read rather than taken from the
// iteration snapshot so that two actions touching the same document within
// one iteration do not clobber each other.
func (e *Engine) rewriteDocument(ctx context.Context, doc *DocView, mutate func(attrs map[string]any)) (bool, error) {
	base := doc.Record
	fresh, err := e.latestActive(ctx, doc.Record.ID)
	if err != nil {
		return false, fmt.Errorf("reload document %s: %w", doc.Record.ID, err)
	}
	if fresh != nil {
		base = fresh
	}
	attrs, err := base.AttributeMap()
	if err != nil {
		return false, fmt.Errorf("decode document attributes: %w", err)
	}
	before, err := json.Marshal(attrs)
	if err != nil {
		return false, fmt.Errorf("encode document attributes: %w", err)
	}
	mutate(attrs)
	after, err := json.Marshal(attrs)
	if err != nil {
		return false, fmt.Errorf("encode mutated attributes: %w", err)
	}
	// Against the freshest version the mutation may already hold; writing an
	// identical row would count as a change and stall convergence accounting.
	if string(before) == string(after) {
		return false, nil
	}
	_, err = e.writer.Write(ctx, versioning.WriteInput{
		EntityKind:   types.EntityKindDocument,
		ID:           base.ID,
		ProjectID:    base.ProjectID,
		DocumentType: base.DocumentType,
		Attributes:   attrs,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func docAttr(doc *DocView, key string) any {
	attrs, err := doc.Record.AttributeMap()
	if err != nil {
		return nil
	}
	return attrs[key]
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
