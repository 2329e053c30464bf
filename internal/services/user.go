package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gbacskai/docflow4-sub002/internal/pkg/logger"
	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/types"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

// UserService maintains user profile records. Identity itself comes from
// the external provider; this only mirrors id and email plus profile
// attributes into the versioned store.
type UserService interface {
	Upsert(ctx context.Context, userID uuid.UUID, email string, profile map[string]any) (*types.Record, error)
	Get(ctx context.Context, userID uuid.UUID) (*types.Record, error)
}

type userService struct {
	db      *gorm.DB
	log     *logger.Logger
	records repos.RecordRepo
	writer  *versioning.Writer
}

func NewUserService(db *gorm.DB, log *logger.Logger, records repos.RecordRepo, writer *versioning.Writer) UserService {
	serviceLog := log.With("service", "UserService")
	return &userService{
		db:      db,
		log:     serviceLog,
		records: records,
		writer:  writer,
	}
}

func (us *userService) Upsert(ctx context.Context, userID uuid.UUID, email string, profile map[string]any) (*types.Record, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}

	attrs := map[string]any{"email": email}
	for k, v := range profile {
		attrs[k] = v
	}

	current, err := latestActive(ctx, us.records, userID)
	switch {
	case err == nil:
		merged, mergeErr := mergeAttributes(current, attrs)
		if mergeErr != nil {
			return nil, mergeErr
		}
		attrs = merged
	case errors.Is(err, ErrNotFound):
		// First write for this user, nothing to merge.
	default:
		return nil, fmt.Errorf("load user profile: %w", err)
	}

	return us.writer.Write(ctx, versioning.WriteInput{
		EntityKind: types.EntityKindUser,
		ID:         userID,
		Attributes: attrs,
	})
}

func (us *userService) Get(ctx context.Context, userID uuid.UUID) (*types.Record, error) {
	return latestActive(ctx, us.records, userID)
}
