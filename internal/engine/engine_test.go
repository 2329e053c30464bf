package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gbacskai/docflow4-sub002/internal/engine"
	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/repos/testutil"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

type fixture struct {
	log     *logger.Logger
	records repos.RecordRepo
	writer  *versioning.Writer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	records := repos.NewRecordRepo(db, log)
	return &fixture{
		log:     log,
		records: records,
		writer:  versioning.NewWriter(db, log, records, nil),
	}
}

func (f *fixture) newEngine(t *testing.T, maxIterations int) *engine.Engine {
	t.Helper()
	return engine.NewEngine(f.log, f.records, f.writer, engine.NewLocalLocker(), maxIterations, 10*time.Second)
}

func (f *fixture) seedWorkflow(t *testing.T, rules []types.Rule) uuid.UUID {
	t.Helper()
	rec, err := f.writer.Write(context.Background(), versioning.WriteInput{
		EntityKind: types.EntityKindWorkflow,
		Attributes: map[string]any{
			"name":  "Approval Flow",
			"rules": rules,
		},
	})
	if err != nil {
		t.Fatalf("seed workflow: %v", err)
	}
	return rec.ID
}

func (f *fixture) seedProject(t *testing.T, workflowID uuid.UUID) uuid.UUID {
	t.Helper()
	attrs := map[string]any{"name": "Harbor Upgrade"}
	if workflowID != uuid.Nil {
		attrs["workflowId"] = workflowID.String()
	}
	rec, err := f.writer.Write(context.Background(), versioning.WriteInput{
		EntityKind: types.EntityKindProject,
		Attributes: attrs,
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return rec.ID
}

func (f *fixture) seedDocument(t *testing.T, projectID uuid.UUID, docType string, form map[string]any) uuid.UUID {
	t.Helper()
	pid := projectID
	rec, err := f.writer.Write(context.Background(), versioning.WriteInput{
		EntityKind:   types.EntityKindDocument,
		ProjectID:    &pid,
		DocumentType: docType,
		Attributes:   map[string]any{"formData": form},
	})
	if err != nil {
		t.Fatalf("seed document %s: %v", docType, err)
	}
	return rec.ID
}

func (f *fixture) latestDoc(t *testing.T, projectID uuid.UUID, docType string) *engine.DocView {
	t.Helper()
	active, err := f.records.QueryAllActiveByProject(context.Background(), nil, projectID)
	if err != nil {
		t.Fatalf("query project docs: %v", err)
	}
	return engine.BuildSnapshot(active).Docs[docType]
}

func TestRunCascade_ProcessCreatesDownstreamDocument(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{{
		ID:         "rule-assessment",
		Validation: `document.BuildingPermit.status in ("completed", "notrequired")`,
		Action:     "process.EnvironmentalAssessment",
	}})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "BuildingPermit", map[string]any{"status": "completed"})

	result, err := f.newEngine(t, 0).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	// One productive iteration plus one confirming convergence.
	if result.Iterations != 2 {
		t.Fatalf("iterations: want=2 got=%d", result.Iterations)
	}
	if result.DocumentsChanged != 1 {
		t.Fatalf("documents changed: want=1 got=%d", result.DocumentsChanged)
	}
	if result.CapReached {
		t.Fatalf("cap reached on a converging cascade")
	}

	created := f.latestDoc(t, project, "EnvironmentalAssessment")
	if created == nil {
		t.Fatalf("EnvironmentalAssessment document was not created")
	}
	if created.Status != "inprogress" {
		t.Fatalf("created status: want=inprogress got=%q", created.Status)
	}
}

func TestRunCascade_ChainsAcrossIterations(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{
		{ID: "r1", Validation: `document.Intake.status = "completed"`, Action: "process.Review"},
		{ID: "r2", Validation: `document.Review.status exists`, Action: "process.Signoff"},
	})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "Intake", map[string]any{"status": "completed"})

	result, err := f.newEngine(t, 0).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if result.DocumentsChanged != 2 {
		t.Fatalf("documents changed: want=2 got=%d", result.DocumentsChanged)
	}
	if f.latestDoc(t, project, "Review") == nil || f.latestDoc(t, project, "Signoff") == nil {
		t.Fatalf("chained documents missing")
	}
	if result.Iterations > 3 {
		t.Fatalf("iterations: want<=3 got=%d", result.Iterations)
	}
}

func TestRunCascade_ReachesFixpointOnRerun(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{{
		ID:         "rule-assessment",
		Validation: `document.BuildingPermit.status = "completed"`,
		Action:     "process.EnvironmentalAssessment",
	}})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "BuildingPermit", map[string]any{"status": "completed"})

	eng := f.newEngine(t, 0)
	if _, err := eng.RunCascade(context.Background(), project, nil); err != nil {
		t.Fatalf("first cascade: %v", err)
	}

	// The cascaded state already holds, so a rerun changes nothing.
	result, err := eng.RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("second cascade: %v", err)
	}
	if result.DocumentsChanged != 0 {
		t.Fatalf("rerun documents changed: want=0 got=%d", result.DocumentsChanged)
	}
	if result.Iterations != 1 {
		t.Fatalf("rerun iterations: want=1 got=%d", result.Iterations)
	}
}

func TestRunCascade_IterationCap(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{
		{ID: "r1", Validation: `document.Intake.status = "completed"`, Action: "process.Review"},
		{ID: "r2", Validation: `document.Review.status exists`, Action: "process.Signoff"},
	})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "Intake", map[string]any{"status": "completed"})

	// The chain needs two productive iterations; a cap of one cuts it short.
	result, err := f.newEngine(t, 1).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if !result.CapReached {
		t.Fatalf("cap reached: want=true got=false")
	}
	if result.Iterations != 1 {
		t.Fatalf("iterations: want=1 got=%d", result.Iterations)
	}
	if f.latestDoc(t, project, "Signoff") != nil {
		t.Fatalf("second chain step ran despite the cap")
	}
}

func TestRunCascade_HideAndDisableActions(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{
		{ID: "r-hide", Validation: `document.FinalApproval.status = "completed"`, Action: "hide.BuildingPermit"},
		{ID: "r-disable", Validation: `document.FinalApproval.status = "completed"`, Action: "disable.BuildingPermit.ownerName"},
	})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "BuildingPermit", map[string]any{"status": "completed", "ownerName": "Alex"})
	f.seedDocument(t, project, "FinalApproval", map[string]any{"status": "completed"})

	eng := f.newEngine(t, 0)
	result, err := eng.RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if result.DocumentsChanged != 2 {
		t.Fatalf("documents changed: want=2 got=%d", result.DocumentsChanged)
	}

	permit := f.latestDoc(t, project, "BuildingPermit")
	if permit == nil {
		t.Fatalf("BuildingPermit disappeared")
	}
	if !permit.Hidden {
		t.Fatalf("BuildingPermit should be hidden")
	}
	attrs, err := permit.Record.AttributeMap()
	if err != nil {
		t.Fatalf("decode permit attributes: %v", err)
	}
	disabled, _ := attrs["disabledFields"].([]any)
	if len(disabled) != 1 || disabled[0] != "ownerName" {
		t.Fatalf("disabled fields: want=[ownerName] got=%v", attrs["disabledFields"])
	}

	// Both actions are no-ops once the goal state holds.
	result, err = eng.RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("rerun cascade: %v", err)
	}
	if result.DocumentsChanged != 0 {
		t.Fatalf("rerun documents changed: want=0 got=%d", result.DocumentsChanged)
	}
}

func TestRunCascade_MutuallyDependentRulesConverge(t *testing.T) {
	f := newFixture(t)
	// Each rule's action feeds the other rule's validation. Actions are
	// idempotent at the goal state, so the loop still terminates.
	wf := f.seedWorkflow(t, []types.Rule{
		{ID: "r-a", Validation: `document.SitePlan.status exists`, Action: "process.SafetyAudit"},
		{ID: "r-b", Validation: `document.SafetyAudit.status exists`, Action: "process.SitePlan"},
	})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "SitePlan", map[string]any{"status": "notstarted"})

	result, err := f.newEngine(t, 0).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if result.CapReached {
		t.Fatalf("cap reached on a converging cascade, iterations=%d", result.Iterations)
	}
	// Create SafetyAudit, then advance SitePlan, then confirm the fixpoint.
	if result.Iterations != 3 {
		t.Fatalf("iterations: want=3 got=%d", result.Iterations)
	}
	if result.DocumentsChanged != 2 {
		t.Fatalf("documents changed: want=2 got=%d", result.DocumentsChanged)
	}
	for _, docType := range []string{"SitePlan", "SafetyAudit"} {
		doc := f.latestDoc(t, project, docType)
		if doc == nil || doc.Status != "inprogress" {
			t.Fatalf("%s: want status inprogress got=%+v", docType, doc)
		}
	}
}

func TestRunCascade_MutuallyDependentRulesRespectCap(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{
		{ID: "r-a", Validation: `document.SitePlan.status exists`, Action: "process.SafetyAudit"},
		{ID: "r-b", Validation: `document.SafetyAudit.status exists`, Action: "process.SitePlan"},
	})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "SitePlan", map[string]any{"status": "notstarted"})

	result, err := f.newEngine(t, 2).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if !result.CapReached {
		t.Fatalf("cap reached: want=true got=false")
	}
	if result.Iterations != 2 {
		t.Fatalf("iterations: want=2 got=%d", result.Iterations)
	}
}

func TestRunCascade_DuplicateActionsWriteOneVersion(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{
		{ID: "d1", Validation: `document.FinalApproval.status = "completed"`, Action: "disable.BuildingPermit.ownerName"},
		{ID: "d2", Validation: `document.FinalApproval.status = "completed"`, Action: "disable.BuildingPermit.ownerName"},
	})
	project := f.seedProject(t, wf)
	permitID := f.seedDocument(t, project, "BuildingPermit", map[string]any{"status": "completed", "ownerName": "Alex"})
	f.seedDocument(t, project, "FinalApproval", map[string]any{"status": "completed"})

	result, err := f.newEngine(t, 0).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	// The second rule sees the field already disabled on the reloaded
	// record and must not append a byte-identical version.
	if result.DocumentsChanged != 1 {
		t.Fatalf("documents changed: want=1 got=%d", result.DocumentsChanged)
	}
	versions, err := f.records.QueryVersions(context.Background(), nil, permitID)
	if err != nil {
		t.Fatalf("query versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("permit versions: want=2 got=%d", len(versions))
	}
}

func TestRunCascade_MalformedRulesAreSkipped(t *testing.T) {
	f := newFixture(t)
	wf := f.seedWorkflow(t, []types.Rule{
		{ID: "bad", Validation: `document.Intake.status ~~ what`, Action: "process.Review"},
		{ID: "good", Validation: `document.Intake.status = "completed"`, Action: "process.Review"},
	})
	project := f.seedProject(t, wf)
	f.seedDocument(t, project, "Intake", map[string]any{"status": "completed"})

	result, err := f.newEngine(t, 0).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if len(result.SkippedRules) != 1 || result.SkippedRules[0].RuleID != "bad" {
		t.Fatalf("skipped rules: want=[bad] got=%v", result.SkippedRules)
	}
	if f.latestDoc(t, project, "Review") == nil {
		t.Fatalf("good rule did not run")
	}
}

func TestRunCascade_ProjectWithoutWorkflow(t *testing.T) {
	f := newFixture(t)
	project := f.seedProject(t, uuid.Nil)

	result, err := f.newEngine(t, 0).RunCascade(context.Background(), project, nil)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if result.Iterations != 0 || result.DocumentsChanged != 0 {
		t.Fatalf("no-workflow cascade should be empty, got=%+v", result)
	}
}
