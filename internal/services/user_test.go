package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/gbacskai/docflow4-sub002/internal/repos"
	"github.com/gbacskai/docflow4-sub002/internal/repos/testutil"
	"github.com/gbacskai/docflow4-sub002/internal/services"
	"github.com/gbacskai/docflow4-sub002/internal/versioning"
)

func newUserService(t *testing.T) services.UserService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	records := repos.NewRecordRepo(db, log)
	writer := versioning.NewWriter(db, log, records, nil)
	return services.NewUserService(db, log, records, writer)
}

func TestUserService_UpsertCreatesThenMergesProfile(t *testing.T) {
	users := newUserService(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := users.Upsert(ctx, userID, "alex@example.com", map[string]any{"displayName": "Alex"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := users.Upsert(ctx, userID, "alex@example.com", map[string]any{"phone": "555-0100"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rec, err := users.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	attrs, err := rec.AttributeMap()
	if err != nil {
		t.Fatalf("decode attributes: %v", err)
	}
	if attrs["displayName"] != "Alex" {
		t.Fatalf("displayName lost on merge: got=%v", attrs["displayName"])
	}
	if attrs["phone"] != "555-0100" {
		t.Fatalf("phone: want=555-0100 got=%v", attrs["phone"])
	}
}

func TestUserService_UpsertRejectsNilID(t *testing.T) {
	users := newUserService(t)
	if _, err := users.Upsert(context.Background(), uuid.Nil, "x@example.com", nil); err == nil {
		t.Fatalf("nil user id: want error got nil")
	}
}

func TestUserService_UpsertSurfacesLookupFailure(t *testing.T) {
	users := newUserService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A failed profile lookup must abort the upsert rather than being
	// mistaken for a missing profile and overwriting merged attributes.
	_, err := users.Upsert(ctx, uuid.New(), "alex@example.com", nil)
	if err == nil {
		t.Fatalf("canceled context: want error got nil")
	}
	if !strings.Contains(err.Error(), "load user profile") {
		t.Fatalf("error should surface the lookup failure, got=%v", err)
	}
}
