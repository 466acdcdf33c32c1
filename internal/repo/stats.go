// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
)

// MomentsStats returns aggregate metadata for a sender's moments: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the sender has no moments, the returned count is 0 and maxUpdatedAt is
// nil. A reply flips its moment's UpdatedAt, so the pair (count, maxUpdatedAt)
// changes whenever the sender's inbox view would change.
func MomentsStats(ctx context.Context, db *gorm.DB, senderIdentityID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Moment{}).Where("sender_identity_id = ?", senderIdentityID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
