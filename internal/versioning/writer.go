package versioning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/stream"
	"github.com/gbacskai/docflow4-sub002/internal/types"
)

// WriteInput describes one create-or-update of a logical entity. A nil ID
// creates a new entity; a set ID appends a new version of an existing one.
type WriteInput struct {
	EntityKind   types.EntityKind
	ID           uuid.UUID
	ProjectID    *uuid.UUID
	DocumentType string
	Attributes   map[string]any
}

// Writer is the single write path of the store. Every call inserts a brand
// new (id, version) row with the active marker set and advances the head
// pointer in the same transaction; it never mutates existing rows and never
// waits for reconciliation.
type Writer struct {
	db      *gorm.DB
	log     *logger.Logger
	records repos.RecordRepo
	bus     stream.Bus
	tokens  *TokenSource
}

func NewWriter(db *gorm.DB, log *logger.Logger, records repos.RecordRepo, bus stream.Bus) *Writer {
	writerLog := log.With("service", "VersionWriter")
	return &Writer{
		db:      db,
		log:     writerLog,
		records: records,
		bus:     bus,
		tokens:  NewTokenSource(),
	}
}

func (w *Writer) Write(ctx context.Context, in WriteInput) (*types.Record, error) {
	if !in.EntityKind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", in.EntityKind)
	}

	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	attrs := in.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}

	active := true
	now := time.Now().UTC()
	record := &types.Record{
		ID:           id,
		Version:      w.tokens.Next(),
		EntityKind:   in.EntityKind,
		Active:       &active,
		ProjectID:    in.ProjectID,
		DocumentType: in.DocumentType,
		Attributes:   raw,
		CreatedAt:    now,
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := w.records.Insert(ctx, tx, record); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		head := &types.RecordHead{
			ID:             record.ID,
			EntityKind:     record.EntityKind,
			CurrentVersion: record.Version,
			UpdatedAt:      now,
		}
		if err := w.records.AdvanceHead(ctx, tx, head); err != nil {
			return fmt.Errorf("advance head: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The row is committed; a publish failure only delays reconciliation,
	// it must not fail the write.
	if w.bus != nil {
		event := stream.ChangeEvent{
			EventType:  stream.EventInsert,
			EntityKind: record.EntityKind,
			NewImage:   record,
		}
		if err := w.bus.Publish(ctx, event); err != nil {
			w.log.Error("Failed to publish change event", "id", record.ID, "version", record.Version, "error", err)
		}
	}

	return record, nil
}
