package engine

import (
	"strings"

	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// DocView is the engine's read model of one document: the latest-active
// record of its type within the project, with the form payload decoded and
// the status heuristic applied once.
type DocView struct {
	Record *types.Record
	Fields map[string]any
	Status string
	Hidden bool
}

// Snapshot is the set of document views the engine evaluates one iteration
// against. It is immutable for the duration of the iteration; actions write
// through the version writer and only become visible on the next reload.
type Snapshot struct {
	Docs map[string]*DocView
}

// BuildSnapshot folds the active document records of a project into views,
// keyed by document type identifier. When reconciliation lag leaves more
// than one active record per type, the latest version wins.
func BuildSnapshot(records []*types.Record) *Snapshot {
	snap := &Snapshot{Docs: map[string]*DocView{}}
	for _, rec := range records {
		if rec.EntityKind != types.EntityKindDocument || rec.DocumentType == "" {
			continue
		}
		prev, ok := snap.Docs[rec.DocumentType]
		if ok && prev.Record.Version >= rec.Version {
			continue
		}
		attrs, err := rec.AttributeMap()
		if err != nil {
			continue
		}
		fields := DecodeFormData(attrs)
		hidden, _ := attrs["hidden"].(bool)
		snap.Docs[rec.DocumentType] = &DocView{
			Record: rec,
			Fields: fields,
			Status: ExtractStatus(fields),
			Hidden: hidden,
		}
	}
	return snap
}

// Attribute resolves a rule path against the snapshot. A missing document
// or attribute resolves to the empty string, so predicates over absent
// documents are simply false rather than errors.
func (s *Snapshot) Attribute(p Path) string {
	doc, ok := s.Docs[p.DocType]
	if !ok || doc == nil {
		return ""
	}
	switch strings.ToLower(p.Attribute) {
	case "status":
		return doc.Status
	case "hidden":
		if doc.Hidden {
			return "true"
		}
		return ""
	}
	if v, ok := doc.Fields[p.Attribute]; ok {
		return stringify(v)
	}
	return ""
}
