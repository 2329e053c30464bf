package versioning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/stream"
)

const defaultPageSize = 25

// Reconciler restores the single-active-version invariant after inserts. It
// is triggered once per INSERT change event whose new image carries the
// active marker and deactivates every other active row for that id. The
// head pointer decides which row survives, so duplicate deliveries and
// concurrent runs for the same id all converge on the same end state.
type Reconciler struct {
	log      *logger.Logger
	records  repos.RecordRepo
	pageSize int
}

func NewReconciler(log *logger.Logger, records repos.RecordRepo, pageSize int) *Reconciler {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	reconcilerLog := log.With("service", "Reconciler")
	return &Reconciler{
		log:      reconcilerLog,
		records:  records,
		pageSize: pageSize,
	}
}

// Start subscribes the reconciler to the change-event bus. Each event is
// handled with its own timeout; handler errors are logged, never fatal.
func (r *Reconciler) Start(ctx context.Context, bus stream.Bus) error {
	return bus.StartForwarder(ctx, func(event stream.ChangeEvent) {
		evCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := r.HandleEvent(evCtx, event); err != nil {
			r.log.Error("Reconciliation failed", "error", err)
		}
	})
}

// Sweep reconciles every id that has more than one active row. The bus can
// lose events published while no consumer was subscribed, so this runs at
// startup to clear anything left over from the outage.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	ids, err := r.records.QueryMultiActiveIDs(ctx, nil)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, id := range ids {
		rows, err := r.records.QueryActiveByID(ctx, nil, id)
		if err != nil {
			r.log.Error("Sweep failed to load active rows", "id", id, "error", err)
			continue
		}
		if len(rows) < 2 {
			continue
		}
		// Rows come back version-ascending; the newest is the fallback
		// should the head pointer be missing.
		newest := rows[len(rows)-1].Version

		n, err := r.ReconcileID(ctx, id, newest)
		if err != nil {
			r.log.Error("Sweep failed to reconcile id", "id", id, "error", err)
			continue
		}
		total += n
	}
	if total > 0 {
		r.log.Info("Startup sweep reconciled leftover versions", "ids", len(ids), "deactivated", total)
	}
	return total, nil
}

// HandleEvent processes one change event and returns how many rows it
// deactivated. Non-INSERT events and inserts without the active marker are
// ignored.
func (r *Reconciler) HandleEvent(ctx context.Context, event stream.ChangeEvent) (int, error) {
	if event.EventType != stream.EventInsert {
		r.log.Debug("Ignoring non-insert event", "event_type", event.EventType)
		return 0, nil
	}
	if event.NewImage == nil || !event.NewImage.IsActive() {
		r.log.Debug("Ignoring insert without active marker")
		return 0, nil
	}
	return r.ReconcileID(ctx, event.NewImage.ID, event.NewImage.Version)
}

// ReconcileID deactivates every active row for id except the current head.
// eventVersion is only a fallback for rows that predate the head table.
func (r *Reconciler) ReconcileID(ctx context.Context, id uuid.UUID, eventVersion string) (int, error) {
	keep := eventVersion
	head, err := r.records.GetHead(ctx, nil, id)
	switch {
	case err == nil:
		keep = head.CurrentVersion
	case errors.Is(err, gorm.ErrRecordNotFound):
		r.log.Warn("No head pointer for id, falling back to event version", "id", id, "version", eventVersion)
	default:
		return 0, err
	}

	deactivated := 0
	attempted := map[string]bool{}
	for {
		page, err := r.records.QueryActiveByIDPage(ctx, nil, id, keep, r.pageSize)
		if err != nil {
			return deactivated, err
		}

		progressed := false
		for _, row := range page {
			if attempted[row.Version] {
				continue
			}
			attempted[row.Version] = true
			progressed = true

			removed, err := r.records.RemoveActive(ctx, nil, row.ID, row.Version)
			if err != nil {
				// An isolated failure must not block the rest of the batch.
				r.log.Error("Failed to remove active marker", "id", row.ID, "version", row.Version, "error", err)
				continue
			}
			if !removed {
				// Already removed by an earlier delivery. Benign.
				r.log.Debug("Active marker already removed", "id", row.ID, "version", row.Version)
				continue
			}
			deactivated++
		}

		// Rows whose removal failed stay active and come back on the next
		// fetch; the attempted set keeps them from looping forever.
		if !progressed {
			break
		}
		if len(page) < r.pageSize {
			break
		}
	}

	if deactivated > 0 {
		r.log.Info("Reconciled record versions", "id", id, "kept_version", keep, "deactivated", deactivated)
	}
	return deactivated, nil
}
