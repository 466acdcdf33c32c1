// Package services – ReplyService
//
// This file implements the reply-based unlock and the annotations on replies.
// Replying is the unlock condition for the basic hidden text: the reply row,
// its audit event, and the moment's completion are committed in one
// transaction, and only then does the hidden text leave the service.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/notify"
	"github.com/veiled-app/moments-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReplyService implements reply submission and reply annotations.
type ReplyService struct {
	DB         *gorm.DB
	Identities *IdentityService
	Notifier   notify.Notifier

	MaxReplyRunes int
}

// ReplyResult is returned to the receiver after a successful reply: the
// entirety of the moment's hidden text, unlocked by the act of replying.
type ReplyResult struct {
	ReplyID      string `json:"reply_id"`
	MomentStatus string `json:"moment_status"`
	HiddenText   string `json:"hidden_text"`
}

// Create submits a reply to the moment behind shortCode and returns the hidden
// text. There is no monetary gate on this path: the reply itself is the
// unlock.
//
// The completion write is unconditional and idempotent: a second reply
// re-stamps completed_at but the status value never moves backward. Both
// replies persist as distinct rows. Concurrent replies may race on the
// timestamp; last writer wins, which is acceptable since status is monotone.
func (s *ReplyService) Create(ctx context.Context, d IdentityDescriptor, shortCode, replyText string, vibeScore *int) (*ReplyResult, error) {
	tr := otel.Tracer("services/ReplyService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("moment.short_code", shortCode)),
	)
	defer span.End()

	text := strings.TrimSpace(replyText)
	if text == "" {
		return nil, ErrEmptyReply
	}
	if s.MaxReplyRunes > 0 && utf8.RuneCountInString(text) > s.MaxReplyRunes {
		return nil, ErrReplyTooLong
	}

	responder, err := s.Identities.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}

	m, err := repo.GetMomentByCode(ctx, s.DB, shortCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMomentNotFound
		}
		return nil, err
	}
	if !m.HasHidden() {
		return nil, ErrHiddenNotSet
	}

	var reply *domain.Reply
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.CreateReply(ctx, tx, m.ID, responder.ID, text, vibeScore)
		if err != nil {
			return err
		}
		reply = r
		if err := repo.CreateEvent(ctx, tx, responder.ID, "reply_created", &m.ID, &r.ID, map[string]any{
			"short_code": m.ShortCode,
		}); err != nil {
			return err
		}
		return repo.CompleteMoment(ctx, tx, m.ID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	if m.NotifyPhone != nil {
		notify.Dispatch(s.Notifier, *m.NotifyPhone, notify.EventReplyReceived, m.ShortCode)
	}

	return &ReplyResult{
		ReplyID:      reply.ID,
		MomentStatus: domain.MomentStatusCompleted,
		HiddenText:   *m.HiddenText,
	}, nil
}

// CreateReaction attaches the receiver's reaction text to a reply. Fails with
// ErrReplyNotFound when the reply does not belong to the moment behind
// shortCode.
func (s *ReplyService) CreateReaction(ctx context.Context, d IdentityDescriptor, shortCode, replyID, reactionText string) error {
	return s.annotate(ctx, d, shortCode, replyID, reactionText, "reaction_created", repo.SetReplyReaction)
}

// SetSenderResponse attaches the sender's response text to a reply. Fails with
// ErrReplyNotFound when the reply does not belong to the moment behind
// shortCode.
func (s *ReplyService) SetSenderResponse(ctx context.Context, d IdentityDescriptor, shortCode, replyID, responseText string) error {
	return s.annotate(ctx, d, shortCode, replyID, responseText, "sender_response_created", repo.SetSenderResponse)
}

func (s *ReplyService) annotate(
	ctx context.Context,
	d IdentityDescriptor,
	shortCode, replyID, text, eventType string,
	write func(context.Context, *gorm.DB, string, string, string) error,
) error {
	tr := otel.Tracer("services/ReplyService")
	ctx, span := tr.Start(ctx, eventType,
		trace.WithAttributes(
			attribute.String("moment.short_code", shortCode),
			attribute.String("reply.id", replyID),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyAnnotation
	}

	caller, err := s.Identities.Resolve(ctx, d)
	if err != nil {
		return err
	}
	m, err := repo.GetMomentByCode(ctx, s.DB, shortCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMomentNotFound
		}
		return err
	}
	if err := write(ctx, s.DB, m.ID, replyID, text); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReplyNotFound
		}
		return err
	}
	return repo.CreateEvent(ctx, s.DB, caller.ID, eventType, &m.ID, &replyID, nil)
}
