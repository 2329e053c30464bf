package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

// ChatService is plain CRUD over chat rooms and messages stored as
// versioned records. Delivery is polling only; there is no realtime
// transport here.
type ChatService interface {
	CreateRoom(ctx context.Context, projectID uuid.UUID, name string) (*types.Record, error)
	ListRooms(ctx context.Context, projectID uuid.UUID) ([]*types.Record, error)
	PostMessage(ctx context.Context, roomID uuid.UUID, senderID, body string) (*types.Record, error)
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]*types.Record, error)
}

type chatService struct {
	db      *gorm.DB
	log     *logger.Logger
	records repos.RecordRepo
	writer  *versioning.Writer
}

func NewChatService(db *gorm.DB, log *logger.Logger, records repos.RecordRepo, writer *versioning.Writer) ChatService {
	serviceLog := log.With("service", "ChatService")
	return &chatService{
		db:      db,
		log:     serviceLog,
		records: records,
		writer:  writer,
	}
}

func (cs *chatService) CreateRoom(ctx context.Context, projectID uuid.UUID, name string) (*types.Record, error) {
	if name == "" {
		return nil, fmt.Errorf("room name required")
	}
	pid := projectID
	return cs.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindChatRoom,
		ProjectID:  &pid,
		Attributes: map[string]any{"name": name},
	})
}

func (cs *chatService) ListRooms(ctx context.Context, projectID uuid.UUID) ([]*types.Record, error) {
	rows, err := cs.records.QueryAllActiveByProject(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	rooms := make([]*types.Record, 0)
	for _, row := range rows {
		if row.EntityKind == types.EntityKindChatRoom {
			rooms = append(rooms, row)
		}
	}
	return dedupeLatest(rooms), nil
}

func (cs *chatService) PostMessage(ctx context.Context, roomID uuid.UUID, senderID, body string) (*types.Record, error) {
	if body == "" {
		return nil, fmt.Errorf("message body required")
	}
	room, err := latestActive(ctx, cs.records, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room.EntityKind != types.EntityKindChatRoom {
		return nil, fmt.Errorf("record %s is not a chat room", roomID)
	}
	return cs.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindChatMessage,
		ProjectID:  room.ProjectID,
		Attributes: map[string]any{
			"roomId":   roomID.String(),
			"senderId": senderID,
			"body":     body,
		},
	})
}

func (cs *chatService) ListMessages(ctx context.Context, roomID uuid.UUID) ([]*types.Record, error) {
	room, err := latestActive(ctx, cs.records, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room.ProjectID == nil {
		return []*types.Record{}, nil
	}
	rows, err := cs.records.QueryAllActiveByProject(ctx, nil, *room.ProjectID)
	if err != nil {
		return nil, err
	}
	messages := make([]*types.Record, 0)
	want := roomID.String()
	for _, row := range rows {
		if row.EntityKind != types.EntityKindChatMessage {
			continue
		}
		attrs, err := row.AttributeMap()
		if err != nil {
			continue
		}
		if rid, _ := attrs["roomId"].(string); rid == want {
			messages = append(messages, row)
		}
	}
	return dedupeLatest(messages), nil
}
