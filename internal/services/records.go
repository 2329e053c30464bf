package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// ErrNotFound is returned when a logical entity has no active version.
var ErrNotFound = gorm.ErrRecordNotFound

// latestActive resolves a logical id to its single current record. During
// reconciliation lag more than one active row can exist; the newest version
// is authoritative.
func latestActive(ctx context.Context, records repos.RecordRepo, id uuid.UUID) (*types.Record, error) {
	rows, err := records.QueryActiveByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	var latest *types.Record
	for _, row := range rows {
		if latest == nil || row.Version > latest.Version {
			latest = row
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return latest, nil
}

// dedupeLatest collapses a set of active rows to one per logical id,
// ordered by version ascending for stable listings.
func dedupeLatest(rows []*types.Record) []*types.Record {
	latest := map[uuid.UUID]*types.Record{}
	for _, row := range rows {
		if prev, ok := latest[row.ID]; ok && prev.Version >= row.Version {
			continue
		}
		latest[row.ID] = row
	}
	out := make([]*types.Record, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// mergeAttributes overlays updates onto the current attribute payload so an
// update call does not drop attributes it did not mention.
func mergeAttributes(current *types.Record, updates map[string]any) (map[string]any, error) {
	attrs, err := current.AttributeMap()
	if err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	for k, v := range updates {
		if v == nil {
			delete(attrs, k)
			continue
		}
		attrs[k] = v
	}
	return attrs, nil
}
