package stream

import (
	"context"

	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// EventType mirrors the change-stream record types emitted by the store.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventModify EventType = "MODIFY"
	EventRemove EventType = "REMOVE"
)

// ChangeEvent is published after every record insert and delivered to the
// reconciler with at-least-once semantics. Consumers must be idempotent.
type ChangeEvent struct {
	EventType  EventType        `json:"event_type"`
	EntityKind types.EntityKind `json:"entity_kind"`
	NewImage   *types.Record    `json:"new_image,omitempty"`
	OldImage   *types.Record    `json:"old_image,omitempty"`
}

type Bus interface {
	Publish(ctx context.Context, event ChangeEvent) error
	StartForwarder(ctx context.Context, onEvent func(event ChangeEvent)) error
	Close() error
}
