package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EntityKind names the logical table an append-only record belongs to.
type EntityKind string

const (
	EntityKindProject      EntityKind = "project"
	EntityKindDocument     EntityKind = "document"
	EntityKindDocumentType EntityKind = "documenttype"
	EntityKindWorkflow     EntityKind = "workflow"
	EntityKindUser         EntityKind = "user"
	EntityKindChatRoom     EntityKind = "chatroom"
	EntityKindChatMessage  EntityKind = "chatmessage"
)

var AllEntityKinds = []EntityKind{
	EntityKindProject,
	EntityKindDocument,
	EntityKindDocumentType,
	EntityKindWorkflow,
	EntityKindUser,
	EntityKindChatRoom,
	EntityKindChatMessage,
}

func (k EntityKind) Valid() bool {
	for _, known := range AllEntityKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Record is one immutable version of a logical entity. A logical entity is
// the set of rows sharing an ID; updates append a new (ID, Version) row and
// never touch prior rows. Active is a presence flag: the reconciler removes
// it (sets NULL) on superseded rows, it is never stored as false.
type Record struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Version      string         `gorm:"primaryKey;size:64" json:"version"`
	EntityKind   EntityKind     `gorm:"column:entity_kind;not null;index" json:"entity_kind"`
	Active       *bool          `gorm:"column:active;index" json:"active,omitempty"`
	ProjectID    *uuid.UUID     `gorm:"type:uuid;column:project_id;index" json:"project_id,omitempty"`
	DocumentType string         `gorm:"column:document_type;index" json:"document_type,omitempty"`
	Attributes   datatypes.JSON `gorm:"column:attributes;type:jsonb" json:"attributes"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (Record) TableName() string { return "record" }

func (r *Record) IsActive() bool {
	return r != nil && r.Active != nil && *r.Active
}

// AttributeMap decodes the opaque attribute payload. A nil or empty payload
// decodes to an empty map, not an error.
func (r *Record) AttributeMap() (map[string]any, error) {
	out := map[string]any{}
	if r == nil || len(r.Attributes) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Attributes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordHead is the per-id pointer to the current active version. It is
// advanced by a single conditional write on every insert, so the newest
// version always wins regardless of reconciler ordering.
type RecordHead struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EntityKind     EntityKind `gorm:"column:entity_kind;not null" json:"entity_kind"`
	CurrentVersion string     `gorm:"column:current_version;not null;size:64" json:"current_version"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (RecordHead) TableName() string { return "record_head" }
