// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Reply model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
)

// CreateReply inserts a new reply row for momentID authored by
// responderIdentityID. The reply ID is a generated UUID and CreatedAt is UTC.
func CreateReply(ctx context.Context, db *gorm.DB, momentID, responderIdentityID, replyText string, vibeScore *int) (*domain.Reply, error) {
	r := &domain.Reply{
		ID:                  uuid.NewString(),
		MomentID:            momentID,
		ResponderIdentityID: responderIdentityID,
		ReplyText:           replyText,
		VibeScore:           vibeScore,
		CreatedAt:           time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetReply fetches a reply by primary key, or ErrNotFound.
func GetReply(ctx context.Context, db *gorm.DB, id string) (*domain.Reply, error) {
	var r domain.Reply
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRepliesByMoment returns all replies for a moment ordered by creation
// time ascending, the order the deep-truth synthesis consumes them in.
func ListRepliesByMoment(ctx context.Context, db *gorm.DB, momentID string) ([]domain.Reply, error) {
	var out []domain.Reply
	err := db.WithContext(ctx).
		Where("moment_id = ?", momentID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// SetReplyReaction stores the receiver-facing reaction text on a reply,
// enforcing that the reply belongs to momentID. Returns ErrNotFound when the
// reply/moment pair does not match.
func SetReplyReaction(ctx context.Context, db *gorm.DB, momentID, replyID, reactionText string) error {
	return updateReplyColumn(ctx, db, momentID, replyID, "reaction_text", reactionText)
}

// SetSenderResponse stores the sender's response text on a reply, enforcing
// that the reply belongs to momentID. Returns ErrNotFound when the
// reply/moment pair does not match.
func SetSenderResponse(ctx context.Context, db *gorm.DB, momentID, replyID, responseText string) error {
	return updateReplyColumn(ctx, db, momentID, replyID, "sender_response_text", responseText)
}

func updateReplyColumn(ctx context.Context, db *gorm.DB, momentID, replyID, column, value string) error {
	res := db.WithContext(ctx).
		Model(&domain.Reply{}).
		Where("id = ? AND moment_id = ?", replyID, momentID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
