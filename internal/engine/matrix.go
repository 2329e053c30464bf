package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// MatrixRow is one line of the project reporting matrix: a document type in
// dependency order with the state of its latest-active document.
type MatrixRow struct {
	DocumentType string     `json:"document_type"`
	DisplayName  string     `json:"display_name,omitempty"`
	Status       string     `json:"status"`
	Hidden       bool       `json:"hidden,omitempty"`
	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
	Version      string     `json:"version,omitempty"`
}

// Matrix renders the reporting view: every known document type, ordered so
// that rule prerequisites come first, with the project's current status per
// type. Types with no document yet still get a row.
func (e *Engine) Matrix(ctx context.Context, projectID uuid.UUID) ([]MatrixRow, error) {
	rules, _, err := e.loadRules(ctx, projectID)
	if err != nil {
		return nil, err
	}

	docTypes, err := e.activeDocumentTypes(ctx)
	if err != nil {
		return nil, err
	}
	identifiers := make([]string, 0, len(docTypes))
	for _, dt := range docTypes {
		identifiers = append(identifiers, dt.identifier)
	}

	ordered := SortDocumentTypes(identifiers, rules)

	active, err := e.records.QueryAllActiveByProject(ctx, nil, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project documents: %w", err)
	}
	snap := BuildSnapshot(active)

	names := map[string]string{}
	for _, dt := range docTypes {
		names[dt.identifier] = dt.name
	}

	rows := make([]MatrixRow, 0, len(ordered))
	for _, identifier := range ordered {
		row := MatrixRow{DocumentType: identifier, DisplayName: names[identifier]}
		if doc := snap.Docs[identifier]; doc != nil {
			id := doc.Record.ID
			row.Status = doc.Status
			row.Hidden = doc.Hidden
			row.DocumentID = &id
			row.Version = doc.Record.Version
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type docTypeView struct {
	identifier string
	name       string
	order      int
	hasOrder   bool
}

// activeDocumentTypes returns the latest-active document type definitions
// in their authoring order: ascending order attribute first, then
// identifier. This is the stable base order the topological sort ties back
// to.
func (e *Engine) activeDocumentTypes(ctx context.Context) ([]docTypeView, error) {
	rows, err := e.records.QueryActiveByKind(ctx, nil, types.EntityKindDocumentType)
	if err != nil {
		return nil, fmt.Errorf("load document types: %w", err)
	}

	latest := map[uuid.UUID]*types.Record{}
	for _, row := range rows {
		if prev, ok := latest[row.ID]; ok && prev.Version >= row.Version {
			continue
		}
		latest[row.ID] = row
	}

	var views []docTypeView
	for _, rec := range latest {
		attrs, err := rec.AttributeMap()
		if err != nil {
			continue
		}
		identifier, _ := attrs["identifier"].(string)
		if identifier == "" {
			continue
		}
		name, _ := attrs["name"].(string)
		view := docTypeView{identifier: identifier, name: name}
		if ord, ok := attrs["order"].(float64); ok {
			view.order = int(ord)
			view.hasOrder = true
		}
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		switch {
		case a.hasOrder && b.hasOrder && a.order != b.order:
			return a.order < b.order
		case a.hasOrder != b.hasOrder:
			return a.hasOrder
		}
		return a.identifier < b.identifier
	})
	return views, nil
}
