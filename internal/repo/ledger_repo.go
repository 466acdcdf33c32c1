// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the pricing
// catalog, the purchase ledger, and the audit event trail.
//
// Purchases and events are append-only: there are intentionally no update or
// delete functions for them.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
)

// GetActivePricingOption fetches the active catalog entry for code, or
// ErrNotFound when the code is unknown or inactive.
func GetActivePricingOption(ctx context.Context, db *gorm.DB, code string) (*domain.PricingOption, error) {
	var p domain.PricingOption
	err := db.WithContext(ctx).
		Where("code = ? AND is_active = ?", code, true).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePurchase appends one ledger row recording an entitlement grant.
func CreatePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}

// CreateEvent appends one audit row. Properties are marshaled to JSON; a nil
// map stores no payload. Events are observational only and never read back by
// the core for decisions.
func CreateEvent(ctx context.Context, db *gorm.DB, identityID, eventType string, momentID, replyID *string, properties map[string]any) error {
	var props []byte
	if len(properties) > 0 {
		b, err := json.Marshal(properties)
		if err != nil {
			return err
		}
		props = b
	}
	e := &domain.Event{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		MomentID:   momentID,
		ReplyID:    replyID,
		EventType:  eventType,
		Properties: props,
		CreatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(e).Error
}

// CreateFollowup appends a purchased Truth-Level-2 question row.
func CreateFollowup(ctx context.Context, db *gorm.DB, momentID, replyID, pricingOptionID, text string) (*domain.Followup, error) {
	f := &domain.Followup{
		ID:              uuid.NewString(),
		MomentID:        momentID,
		ReplyID:         replyID,
		PricingOptionID: pricingOptionID,
		Text:            text,
		AskedAt:         time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}
