package versioning_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/repos/testutil"
	"github.com/gbacskai/docflow4-sub002/internal/stream"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

func countActive(t *testing.T, repo repos.RecordRepo, id uuid.UUID) int {
	t.Helper()
	rows, err := repo.QueryActiveByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("query active: %v", err)
	}
	return len(rows)
}

func TestReconciler_LeavesExactlyOneActiveRow(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewRecordRepo(db, log)
	bus := &recordingBus{}
	writer := versioning.NewWriter(db, log, repo, bus)
	reconciler := versioning.NewReconciler(log, repo, 0)
	ctx := context.Background()

	var id uuid.UUID
	var latest string
	for i := 0; i < 5; i++ {
		rec, err := writer.Write(ctx, versioning.WriteInput{
			EntityKind: types.EntityKindDocument,
			ID:         id,
			Attributes: map[string]any{"rev": i},
		})
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		id = rec.ID
		latest = rec.Version
	}
	if got := countActive(t, repo, id); got != 5 {
		t.Fatalf("active before reconciliation: want=5 got=%d", got)
	}

	for _, event := range bus.drain() {
		if _, err := reconciler.HandleEvent(ctx, event); err != nil {
			t.Fatalf("handle event: %v", err)
		}
	}

	rows, err := repo.QueryActiveByID(ctx, nil, id)
	if err != nil {
		t.Fatalf("query active: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("active after reconciliation: want=1 got=%d", len(rows))
	}
	if rows[0].Version != latest {
		t.Fatalf("surviving version: want=%q got=%q", latest, rows[0].Version)
	}
}

func TestReconciler_DuplicateDeliveryIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewRecordRepo(db, log)
	bus := &recordingBus{}
	writer := versioning.NewWriter(db, log, repo, bus)
	reconciler := versioning.NewReconciler(log, repo, 0)
	ctx := context.Background()

	first, err := writer.Write(ctx, versioning.WriteInput{EntityKind: types.EntityKindDocument})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := writer.Write(ctx, versioning.WriteInput{EntityKind: types.EntityKindDocument, ID: first.ID})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	events := bus.drain()
	// At-least-once delivery: run every event three times over.
	for round := 0; round < 3; round++ {
		for _, event := range events {
			if _, err := reconciler.HandleEvent(ctx, event); err != nil {
				t.Fatalf("round %d: handle event: %v", round, err)
			}
		}
	}

	rows, err := repo.QueryActiveByID(ctx, nil, first.ID)
	if err != nil {
		t.Fatalf("query active: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("active rows: want=1 got=%d", len(rows))
	}
	if rows[0].Version != second.Version {
		t.Fatalf("surviving version: want=%q got=%q", second.Version, rows[0].Version)
	}
}

func TestReconciler_EventOrderDoesNotMatter(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewRecordRepo(db, log)
	bus := &recordingBus{}
	writer := versioning.NewWriter(db, log, repo, bus)
	reconciler := versioning.NewReconciler(log, repo, 0)
	ctx := context.Background()

	first, err := writer.Write(ctx, versioning.WriteInput{EntityKind: types.EntityKindDocument})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := writer.Write(ctx, versioning.WriteInput{EntityKind: types.EntityKindDocument, ID: first.ID})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	events := bus.drain()
	if len(events) != 2 {
		t.Fatalf("events: want=2 got=%d", len(events))
	}
	// Deliver the newer event first, then the stale one. The head pointer,
	// not arrival order, decides the survivor.
	for _, event := range []stream.ChangeEvent{events[1], events[0]} {
		if _, err := reconciler.HandleEvent(ctx, event); err != nil {
			t.Fatalf("handle event: %v", err)
		}
	}

	rows, err := repo.QueryActiveByID(ctx, nil, first.ID)
	if err != nil {
		t.Fatalf("query active: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("active rows: want=1 got=%d", len(rows))
	}
	if rows[0].Version != second.Version {
		t.Fatalf("surviving version: want=%q got=%q", second.Version, rows[0].Version)
	}
}

func TestReconciler_PagesThroughLargeBacklogs(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewRecordRepo(db, log)
	writer := versioning.NewWriter(db, log, repo, nil)
	// Page size 3 against 10 versions forces multiple fetches.
	reconciler := versioning.NewReconciler(log, repo, 3)
	ctx := context.Background()

	var id uuid.UUID
	var latest *types.Record
	for i := 0; i < 10; i++ {
		rec, err := writer.Write(ctx, versioning.WriteInput{EntityKind: types.EntityKindDocument, ID: id})
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		id = rec.ID
		latest = rec
	}

	deactivated, err := reconciler.ReconcileID(ctx, id, latest.Version)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if deactivated != 9 {
		t.Fatalf("deactivated: want=9 got=%d", deactivated)
	}
	if got := countActive(t, repo, id); got != 1 {
		t.Fatalf("active rows: want=1 got=%d", got)
	}
}

func TestReconciler_SweepRecoversLostEvents(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewRecordRepo(db, log)
	// A nil bus stands in for events lost while no consumer was up.
	writer := versioning.NewWriter(db, log, repo, nil)
	reconciler := versioning.NewReconciler(log, repo, 0)
	ctx := context.Background()

	var backlogID uuid.UUID
	var latest string
	for i := 0; i < 3; i++ {
		rec, err := writer.Write(ctx, versioning.WriteInput{EntityKind: types.EntityKindDocument, ID: backlogID})
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		backlogID = rec.ID
		latest = rec.Version
	}
	clean, err := writer.Write(ctx, versioning.WriteInput{EntityKind: types.EntityKindDocument})
	if err != nil {
		t.Fatalf("write clean: %v", err)
	}

	deactivated, err := reconciler.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deactivated != 2 {
		t.Fatalf("swept rows: want=2 got=%d", deactivated)
	}

	rows, err := repo.QueryActiveByID(ctx, nil, backlogID)
	if err != nil {
		t.Fatalf("query backlog id: %v", err)
	}
	if len(rows) != 1 || rows[0].Version != latest {
		t.Fatalf("backlog id after sweep: want 1 active row at %q, got %d rows", latest, len(rows))
	}
	if got := countActive(t, repo, clean.ID); got != 1 {
		t.Fatalf("single-version id after sweep: want=1 got=%d", got)
	}

	// A second sweep finds nothing to do.
	deactivated, err = reconciler.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if deactivated != 0 {
		t.Fatalf("second sweep: want=0 got=%d", deactivated)
	}
}

func TestReconciler_IgnoresInactiveAndNonInsertEvents(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewRecordRepo(db, log)
	reconciler := versioning.NewReconciler(log, repo, 0)
	ctx := context.Background()

	n, err := reconciler.HandleEvent(ctx, stream.ChangeEvent{EventType: stream.EventModify})
	if err != nil || n != 0 {
		t.Fatalf("modify event: want=(0,nil) got=(%d,%v)", n, err)
	}

	inactive := &types.Record{ID: uuid.New(), Version: "00000000000000000001.000000"}
	n, err = reconciler.HandleEvent(ctx, stream.ChangeEvent{EventType: stream.EventInsert, NewImage: inactive})
	if err != nil || n != 0 {
		t.Fatalf("inactive insert: want=(0,nil) got=(%d,%v)", n, err)
	}
}
