package repo

import (
	"path/filepath"
	"testing"

	"github.com/veiled-app/moments-backend/internal/domain"
)

func TestOpenSQLite_CreatesAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	m := db.Migrator()
	for _, tbl := range []any{
		&domain.Identity{}, &domain.Moment{}, &domain.Reply{},
		&domain.PricingOption{}, &domain.Purchase{}, &domain.Event{}, &domain.Followup{},
	} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T", tbl)
		}
	}
	if !m.HasIndex(&domain.Moment{}, "ux_moments_short_code") {
		t.Fatal("expected unique index on moments.short_code")
	}
	if len(db.Config.Plugins) == 0 {
		t.Fatal("expected the tracing plugin to be registered")
	}
}

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "no-such-dir", "x.db")); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestOpenSQLite_AppliesPragmas(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "pragma.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var mode string
	if err := db.Raw("PRAGMA journal_mode;").Scan(&mode).Error; err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q; want wal", mode)
	}

	var fk int
	if err := db.Raw("PRAGMA foreign_keys;").Scan(&fk).Error; err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d; want 1", fk)
	}
}

func TestAutoMigrate_Rerunnable(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "rerun.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	for i := 0; i < 2; i++ {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("AutoMigrate run %d: %v", i+1, err)
		}
	}
}
