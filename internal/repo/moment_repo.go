// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Moment model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a moment is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Duplicate short-code inserts surface the raw driver error; callers use
//     IsDuplicate to distinguish them from other storage failures and retry
//     with a fresh candidate.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// IsDuplicate reports whether err is a unique-constraint violation. The
// short-code generator relies on this to tell a lost insert race apart from
// other storage errors.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// CreateMoment inserts a fully populated moment row. The caller assigns the
// ID, short code, and timestamps; the unique index on short_code is the
// correctness backstop against concurrent generators.
func CreateMoment(ctx context.Context, db *gorm.DB, m *domain.Moment) error {
	return db.WithContext(ctx).Create(m).Error
}

// GetMomentByCode fetches a moment by its public short code, or ErrNotFound.
func GetMomentByCode(ctx context.Context, db *gorm.DB, shortCode string) (*domain.Moment, error) {
	var m domain.Moment
	err := db.WithContext(ctx).
		Where("short_code = ?", shortCode).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMoment fetches a moment by primary key, or ErrNotFound.
func GetMoment(ctx context.Context, db *gorm.DB, id string) (*domain.Moment, error) {
	var m domain.Moment
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ShortCodeExists reports whether any moment already uses shortCode.
func ShortCodeExists(ctx context.Context, db *gorm.DB, shortCode string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Moment{}).
		Where("short_code = ?", shortCode).
		Count(&n).Error
	return n > 0, err
}

// SetHiddenMessage attaches or replaces the hidden text (and optional unlock
// price) of a moment. Status is untouched; the moment may already have
// replies. Returns ErrNotFound when the moment does not exist.
func SetHiddenMessage(ctx context.Context, db *gorm.DB, id, hiddenText string, price *int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Moment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"hidden_text":  hiddenText,
			"hidden_price": price,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CompleteMoment flips a moment to completed and stamps completed_at.
// The write is idempotent: running it again on an already completed moment
// re-stamps the timestamp but the status value never moves backward.
func CompleteMoment(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Moment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.MomentStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountMoments returns the total number of moments sent by senderIdentityID.
func CountMoments(ctx context.Context, db *gorm.DB, senderIdentityID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Moment{}).
		Where("sender_identity_id = ?", senderIdentityID).
		Count(&total).Error
	return total, err
}

// ListMomentsPage returns a paginated slice of a sender's moments, ordered by
// send time descending. Use CountMoments to obtain the total for pagination
// metadata.
func ListMomentsPage(ctx context.Context, db *gorm.DB, senderIdentityID string, offset, limit int) ([]domain.Moment, error) {
	var out []domain.Moment
	err := db.WithContext(ctx).
		Where("sender_identity_id = ?", senderIdentityID).
		Order("sent_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
