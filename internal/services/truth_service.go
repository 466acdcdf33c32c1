// Package services – TruthService
//
// This file implements the two paid analysis features: deep truth (an
// AI-synthesized read of the whole exchange) and truth level 2 (a purchased
// follow-up question pinned to one reply). Both are gated by the entitlement
// ledger; the gated effect never runs unless the gate succeeded.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/generation"
	"github.com/veiled-app/moments-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// followupSnippets is the static Truth-Level-2 question catalog. Snippet ids
// are stable public identifiers chosen by the client.
var followupSnippets = map[string]string{
	"why_now":      "Why did you decide to say this now?",
	"how_long":     "How long have you felt this way?",
	"what_changed": "What changed between us?",
	"do_you_mean":  "Did you really mean what you said?",
	"what_next":    "Where do you want this to go next?",
}

// TruthService implements deep-truth generation and follow-up purchases.
type TruthService struct {
	DB           *gorm.DB
	Identities   *IdentityService
	Entitlements *EntitlementService
	Generator    generation.Generator

	// SystemPrompt overrides the built-in deep-truth system prompt when set.
	SystemPrompt string
	GenParams    generation.Params
}

// RunDeepTruth produces the paid deep-truth analysis for a moment.
//
// Flow: resolve identity → load moment and ordered replies → entitlement gate
// for DEEP_TRUTH → external generation → deep_truth_generated usage event.
// An entitlement failure means no generation call is made and no text leaves
// the service; a generation failure (error or empty output) surfaces as
// ErrGenerationFailed with the cause attached.
func (s *TruthService) RunDeepTruth(ctx context.Context, d IdentityDescriptor, shortCode string, paymentReference *string, skipPayment bool) (string, error) {
	tr := otel.Tracer("services/TruthService")
	ctx, span := tr.Start(ctx, "RunDeepTruth",
		trace.WithAttributes(attribute.String("moment.short_code", shortCode)),
	)
	defer span.End()

	caller, err := s.Identities.Resolve(ctx, d)
	if err != nil {
		return "", err
	}
	m, err := repo.GetMomentByCode(ctx, s.DB, shortCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrMomentNotFound
		}
		return "", err
	}
	replies, err := repo.ListRepliesByMoment(ctx, s.DB, m.ID)
	if err != nil {
		return "", err
	}

	if _, err := s.Entitlements.ChargeOrUsePass(ctx, caller.ID, domain.PricingDeepTruth, &m.ID, paymentReference, skipPayment); err != nil {
		return "", err
	}

	hidden := ""
	if m.HiddenText != nil {
		hidden = *m.HiddenText
	}
	replyTexts := make([]string, 0, len(replies))
	for _, r := range replies {
		replyTexts = append(replyTexts, r.ReplyText)
	}

	text, err := s.Generator.Generate(ctx,
		s.systemPrompt(),
		generation.BuildDeepTruthPrompt(m.ModeKey, m.TeaserText, hidden, replyTexts),
		s.GenParams,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrGenerationFailed
	}

	if err := repo.CreateEvent(ctx, s.DB, caller.ID, "deep_truth_generated", &m.ID, nil, map[string]any{
		"reply_count": len(replies),
	}); err != nil {
		return "", err
	}
	return text, nil
}

// RunTruthLevel2 records a purchased follow-up question on a reply and returns
// the created followup row.
//
// Content validation happens before anything else, including the entitlement
// check, so a request with neither a snippet id nor custom text fails without
// writing a single row.
func (s *TruthService) RunTruthLevel2(ctx context.Context, d IdentityDescriptor, shortCode, replyID, followupSnippetID, customFollowupText string, paymentReference *string, skipPayment bool) (*domain.Followup, error) {
	tr := otel.Tracer("services/TruthService")
	ctx, span := tr.Start(ctx, "RunTruthLevel2",
		trace.WithAttributes(
			attribute.String("moment.short_code", shortCode),
			attribute.String("reply.id", replyID),
		),
	)
	defer span.End()

	text := strings.TrimSpace(customFollowupText)
	snippetID := strings.TrimSpace(followupSnippetID)
	if text == "" && snippetID == "" {
		return nil, ErrMissingFollowupContent
	}
	if text == "" {
		snippet, ok := followupSnippets[snippetID]
		if !ok {
			return nil, ErrUnknownFollowupSnippet
		}
		text = snippet
	}

	caller, err := s.Identities.Resolve(ctx, d)
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
	reply, err := repo.GetReply(ctx, s.DB, replyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReplyNotFound
		}
		return nil, err
	}
	if reply.MomentID != m.ID {
		return nil, ErrReplyNotFound
	}

	res, err := s.Entitlements.ChargeOrUsePass(ctx, caller.ID, domain.PricingTruthL2, &m.ID, paymentReference, skipPayment)
	if err != nil {
		return nil, err
	}

	return repo.CreateFollowup(ctx, s.DB, m.ID, reply.ID, res.Option.ID, text)
}

func (s *TruthService) systemPrompt() string {
	if strings.TrimSpace(s.SystemPrompt) != "" {
		return s.SystemPrompt
	}
	return generation.DefaultDeepTruthSystemPrompt
}
