// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Identity
// model.
//
// Error semantics:
//   - When an identity is not found, functions return gorm.ErrRecordNotFound
//     (also exported in this package as ErrNotFound).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
)

// CreateIdentity inserts a new identity carrying whatever subset of
// {guestID, authUserID} was supplied. Empty strings are stored as NULL.
// The identity ID is a randomly generated UUID and CreatedAt is set to UTC.
func CreateIdentity(ctx context.Context, db *gorm.DB, guestID, authUserID string) (*domain.Identity, error) {
	id := &domain.Identity{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if guestID != "" {
		id.GuestID = &guestID
	}
	if authUserID != "" {
		id.AuthUserID = &authUserID
	}
	if err := db.WithContext(ctx).Create(id).Error; err != nil {
		return nil, err
	}
	return id, nil
}

// FindIdentityByAuthUser returns the oldest identity whose auth_user_id equals
// authUserID, or ErrNotFound. Ordering by creation time makes "first match"
// deterministic when the identity-merge race left duplicates behind.
func FindIdentityByAuthUser(ctx context.Context, db *gorm.DB, authUserID string) (*domain.Identity, error) {
	var out domain.Identity
	err := db.WithContext(ctx).
		Where("auth_user_id = ?", authUserID).
		Order("created_at asc").
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindIdentityByGuest returns the oldest identity whose guest_id equals
// guestID, or ErrNotFound.
func FindIdentityByGuest(ctx context.Context, db *gorm.DB, guestID string) (*domain.Identity, error) {
	var out domain.Identity
	err := db.WithContext(ctx).
		Where("guest_id = ?", guestID).
		Order("created_at asc").
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}
