package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/veiled-app/moments-backend/internal/domain"
)

func newIdentityServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("identity_svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Identity{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func countIdentities(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Identity{}).Count(&n).Error; err != nil {
		t.Fatalf("count identities: %v", err)
	}
	return n
}

func TestResolve_AnonymousAlwaysCreates(t *testing.T) {
	db := newIdentityServiceDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	a, err := svc.Resolve(ctx, IdentityDescriptor{})
	if err != nil {
		t.Fatalf("Resolve anonymous: %v", err)
	}
	b, err := svc.Resolve(ctx, IdentityDescriptor{})
	if err != nil {
		t.Fatalf("Resolve anonymous again: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("anonymous resolves must each create a fresh identity")
	}
	if n := countIdentities(t, db); n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}

func TestResolve_GuestIsStableAcrossCalls(t *testing.T) {
	db := newIdentityServiceDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	first, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1"})
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same guest resolved to different identities: %s vs %s", first.ID, second.ID)
	}
	if n := countIdentities(t, db); n != 1 {
		t.Fatalf("expected a single row, got %d", n)
	}
}

func TestResolve_MatchesEitherIdentifier(t *testing.T) {
	db := newIdentityServiceDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	created, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1", AuthUserID: "u1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	byGuest, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1"})
	if err != nil {
		t.Fatalf("Resolve by guest: %v", err)
	}
	byAuth, err := svc.Resolve(ctx, IdentityDescriptor{AuthUserID: "u1"})
	if err != nil {
		t.Fatalf("Resolve by auth: %v", err)
	}
	if byGuest.ID != created.ID || byAuth.ID != created.ID {
		t.Fatalf("identifiers resolved to different rows: %s / %s / %s", created.ID, byGuest.ID, byAuth.ID)
	}
}

func TestResolve_AuthMatchWinsOverGuestMatch(t *testing.T) {
	db := newIdentityServiceDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	guestRow, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1"})
	if err != nil {
		t.Fatalf("seed guest row: %v", err)
	}
	authRow, err := svc.Resolve(ctx, IdentityDescriptor{AuthUserID: "u1"})
	if err != nil {
		t.Fatalf("seed auth row: %v", err)
	}
	if guestRow.ID == authRow.ID {
		t.Fatal("fixture rows must differ")
	}

	got, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1", AuthUserID: "u1"})
	if err != nil {
		t.Fatalf("Resolve with both: %v", err)
	}
	if got.ID != authRow.ID {
		t.Fatalf("expected auth row %s to win, got %s", authRow.ID, got.ID)
	}
}

func TestResolve_NeverUpdatesExistingRow(t *testing.T) {
	db := newIdentityServiceDB(t)
	svc := &IdentityService{DB: db}
	ctx := context.Background()

	row, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Same guest shows up later carrying an auth user id: the stored row must
	// keep its NULL auth_user_id.
	got, err := svc.Resolve(ctx, IdentityDescriptor{GuestID: "g1", AuthUserID: "u-new"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != row.ID {
		t.Fatalf("expected existing row, got %s", got.ID)
	}

	var stored domain.Identity
	if err := db.First(&stored, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.AuthUserID != nil {
		t.Fatalf("auth_user_id must stay NULL, got %q", *stored.AuthUserID)
	}
}

func TestResolve_WhitespaceIsAnonymous(t *testing.T) {
	db := newIdentityServiceDB(t)
	svc := &IdentityService{DB: db}

	got, err := svc.Resolve(context.Background(), IdentityDescriptor{GuestID: "   ", AuthUserID: "\t"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.GuestID != nil || got.AuthUserID != nil {
		t.Fatalf("whitespace identifiers must not be stored: %+v", got)
	}
}
