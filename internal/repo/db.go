// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and pricing catalog seeding.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/veiled-app/moments-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// DB-level spans; HTTP metrics stay with Prometheus.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Identity{},
		&domain.Moment{},
		&domain.Reply{},
		&domain.PricingOption{},
		&domain.Purchase{},
		&domain.Event{},
		&domain.Followup{},
	)
}

// defaultPricing is the static catalog seeded on startup. Amounts are minor
// units (cents).
var defaultPricing = []domain.PricingOption{
	{Code: domain.PricingPremiumReveal, PriceAmount: 299, Currency: "USD", IsActive: true},
	{Code: domain.PricingDeepTruth, PriceAmount: 199, Currency: "USD", IsActive: true},
	{Code: domain.PricingTruthL2, PriceAmount: 149, Currency: "USD", IsActive: true},
	{Code: domain.PricingHiddenUnlock, PriceAmount: 99, Currency: "USD", IsActive: true},
}

// SeedPricingOptions inserts the default pricing catalog, skipping codes that
// already exist. Safe to run on every startup.
func SeedPricingOptions(db *gorm.DB) error {
	for _, p := range defaultPricing {
		p.ID = uuid.NewString()
		p.CreatedAt = time.Now().UTC()
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&p)
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}
