// Package services – MomentService
//
// This file implements the moment lifecycle around creation and visibility:
// creating a moment (optionally premium, entitlement-gated), the receiver's
// public read by short code, attaching the hidden message, the paid
// hidden-unlock path, and the sender's inbox listing.
//
// Ordering within every operation is strict: identity resolve → gate check →
// mutate → audit event. Each step's success is a precondition for the next,
// so an audit event is never recorded for an effect that did not happen.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/notify"
	"github.com/veiled-app/moments-backend/internal/repo"
	"github.com/veiled-app/moments-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// momentsCreatedTotal counts created moments by premium flag.
var momentsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moments_created_total",
		Help: "Total number of moments created.",
	},
	[]string{"premium"},
)

func init() {
	prometheus.MustRegister(momentsCreatedTotal)
}

// MomentService coordinates moment creation, reads, and hidden-text access.
type MomentService struct {
	DB           *gorm.DB
	Identities   *IdentityService
	Entitlements *EntitlementService
	Codes        *CodeGenerator
	Notifier     notify.Notifier

	// Optional guards
	MaxTeaserRunes int
	MaxHiddenRunes int
}

// CreateMomentInput carries everything needed to publish a moment.
type CreateMomentInput struct {
	Identity       IdentityDescriptor
	ModeKey        string
	DeliveryFormat string
	TeaserText     string
	HiddenText     string
	HiddenPrice    *int64
	PremiumReveal  bool
	// RecipientPhone, when set, triggers a best-effort WhatsApp ping with the
	// new short code. It is never stored.
	RecipientPhone string
	// NotifyPhone is the sender's number, stored so the reply path can ping
	// them back.
	NotifyPhone string

	// Payment assertion, relevant only when PremiumReveal is set.
	PaymentReference *string
	SkipPaymentCheck bool
}

// CreateMomentResult is the public outcome of a successful creation.
type CreateMomentResult struct {
	ID        string `json:"id"`
	ShortCode string `json:"short_code"`
	Status    string `json:"status"`
}

// Length guards, applied after trimming.
var (
	ErrTeaserTooLong = errors.New("teaser too long")
	ErrHiddenTooLong = errors.New("hidden text too long")
	ErrReplyTooLong  = errors.New("reply too long")
)

// CreateMoment publishes a new moment.
//
// Flow: resolve identity → entitlement check for PREMIUM_REVEAL when requested
// → generate a unique short code → insert with status sent → moment_created
// audit event → optional receiver notification (fire-and-forget).
//
// A duplicate short-code insert (lost race against a concurrent creator) is
// retried with a fresh candidate rather than failing the request; the retry
// budget is the code generator's attempt cap.
func (s *MomentService) CreateMoment(ctx context.Context, in CreateMomentInput) (*CreateMomentResult, error) {
	tr := otel.Tracer("services/MomentService")
	ctx, span := tr.Start(ctx, "CreateMoment",
		trace.WithAttributes(
			attribute.String("moment.mode_key", in.ModeKey),
			attribute.Bool("moment.premium", in.PremiumReveal),
		),
	)
	defer span.End()

	teaser := strings.TrimSpace(in.TeaserText)
	if teaser == "" {
		return nil, ErrEmptyTeaser
	}
	if s.MaxTeaserRunes > 0 && utf8.RuneCountInString(teaser) > s.MaxTeaserRunes {
		return nil, ErrTeaserTooLong
	}
	hidden := strings.TrimSpace(in.HiddenText)
	if hidden != "" && s.MaxHiddenRunes > 0 && utf8.RuneCountInString(hidden) > s.MaxHiddenRunes {
		return nil, ErrHiddenTooLong
	}

	sender, err := s.Identities.Resolve(ctx, in.Identity)
	if err != nil {
		return nil, err
	}

	var premiumOptionID *string
	if in.PremiumReveal {
		res, err := s.Entitlements.ChargeOrUsePass(ctx, sender.ID, domain.PricingPremiumReveal, nil, in.PaymentReference, in.SkipPaymentCheck)
		if err != nil {
			return nil, err
		}
		premiumOptionID = &res.Option.ID
	}

	now := time.Now().UTC()
	m := &domain.Moment{
		ID:               uuid.NewString(),
		ModeKey:          in.ModeKey,
		DeliveryFormat:   deliveryFormatOrDefault(in.DeliveryFormat),
		SenderIdentityID: sender.ID,
		TeaserText:       teaser,
		HiddenPrice:      in.HiddenPrice,
		IsPremiumReveal:  in.PremiumReveal,
		PremiumOptionID:  premiumOptionID,
		Status:           domain.MomentStatusSent,
		SentAt:           now,
		CreatedAt:        now,
	}
	if hidden != "" {
		m.HiddenText = &hidden
	}
	if phone := strings.TrimSpace(in.NotifyPhone); phone != "" {
		m.NotifyPhone = &phone
	}

	// The existence check in Generate and the insert below are not atomic
	// against concurrent creators; the unique index on short_code is the
	// backstop. A duplicate insert gets a fresh candidate.
	for attempt := 0; ; attempt++ {
		code, err := s.Codes.Generate(ctx)
		if err != nil {
			return nil, err
		}
		m.ShortCode = code
		err = repo.CreateMoment(ctx, s.DB, m)
		if err == nil {
			break
		}
		if repo.IsDuplicate(err) && attempt < s.Codes.maxAttempts() {
			continue
		}
		return nil, err
	}

	if err := repo.CreateEvent(ctx, s.DB, sender.ID, "moment_created", &m.ID, nil, map[string]any{
		"short_code": m.ShortCode,
		"mode_key":   m.ModeKey,
		"premium":    m.IsPremiumReveal,
	}); err != nil {
		return nil, err
	}

	momentsCreatedTotal.WithLabelValues(boolLabel(m.IsPremiumReveal)).Inc()
	notify.Dispatch(s.Notifier, strings.TrimSpace(in.RecipientPhone), notify.EventMomentCreated, m.ShortCode)

	return &CreateMomentResult{ID: m.ID, ShortCode: m.ShortCode, Status: m.Status}, nil
}

// ReceiverView is the public shape of a moment as seen by a receiver before
// unlocking. The hidden text itself is never exposed here, only its presence.
type ReceiverView struct {
	ShortCode       string `json:"short_code"`
	ModeKey         string `json:"mode_key"`
	DeliveryFormat  string `json:"delivery_format"`
	TeaserText      string `json:"teaser_text"`
	Status          string `json:"status"`
	IsPremiumReveal bool   `json:"is_premium_reveal"`
	HasHidden       bool   `json:"has_hidden"`
	HiddenPrice     *int64 `json:"hidden_price,omitempty"`
}

// GetForReceiver is a pure read by short code. It never mutates state and
// fails with ErrMomentNotFound when the code is unknown; other storage errors
// propagate unwrapped so callers can tell "not created yet" from a transient
// store failure.
func (s *MomentService) GetForReceiver(ctx context.Context, shortCode string) (*ReceiverView, error) {
	tr := otel.Tracer("services/MomentService")
	ctx, span := tr.Start(ctx, "GetForReceiver",
		trace.WithAttributes(attribute.String("moment.short_code", shortCode)),
	)
	defer span.End()

	m, err := repo.GetMomentByCode(ctx, s.DB, shortCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMomentNotFound
		}
		return nil, err
	}
	return &ReceiverView{
		ShortCode:       m.ShortCode,
		ModeKey:         m.ModeKey,
		DeliveryFormat:  m.DeliveryFormat,
		TeaserText:      m.TeaserText,
		Status:          m.Status,
		IsPremiumReveal: m.IsPremiumReveal,
		HasHidden:       m.HasHidden(),
		HiddenPrice:     m.HiddenPrice,
	}, nil
}

// SetHiddenMessage attaches or replaces the hidden text (and unlock price) on
// a moment the sender owns, addressed by short code. Authorization is assumed
// to have happened upstream. Status is untouched; the moment may already have
// replies.
func (s *MomentService) SetHiddenMessage(ctx context.Context, d IdentityDescriptor, shortCode, hiddenText string, price *int64) error {
	tr := otel.Tracer("services/MomentService")
	ctx, span := tr.Start(ctx, "SetHiddenMessage",
		trace.WithAttributes(attribute.String("moment.short_code", shortCode)),
	)
	defer span.End()

	hidden := strings.TrimSpace(hiddenText)
	if hidden == "" {
		return ErrEmptyHidden
	}

	sender, err := s.Identities.Resolve(ctx, d)
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
	if err := repo.SetHiddenMessage(ctx, s.DB, m.ID, hidden, price); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMomentNotFound
		}
		return err
	}
	return repo.CreateEvent(ctx, s.DB, sender.ID, "hidden_message_set", &m.ID, nil, nil)
}

// UnlockHiddenByPayment is the direct-pay unlock path, orthogonal to the
// reply-based unlock: the caller asserts a confirmed HIDDEN_UNLOCK payment and
// receives the full hidden text. The gate must succeed before the text leaves
// the service.
func (s *MomentService) UnlockHiddenByPayment(ctx context.Context, d IdentityDescriptor, shortCode string, paymentReference *string, skipPayment bool) (string, error) {
	tr := otel.Tracer("services/MomentService")
	ctx, span := tr.Start(ctx, "UnlockHiddenByPayment",
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
	if !m.HasHidden() {
		return "", ErrHiddenNotSet
	}

	if _, err := s.Entitlements.ChargeOrUsePass(ctx, caller.ID, domain.PricingHiddenUnlock, &m.ID, paymentReference, skipPayment); err != nil {
		return "", err
	}
	if err := repo.CreateEvent(ctx, s.DB, caller.ID, "hidden_unlocked", &m.ID, nil, map[string]any{
		"via": "payment",
	}); err != nil {
		return "", err
	}
	return *m.HiddenText, nil
}

// ListForSender returns a page of the sender's moments plus the total count.
func (s *MomentService) ListForSender(ctx context.Context, d IdentityDescriptor, page, pageSize int) ([]domain.Moment, int64, error) {
	tr := otel.Tracer("services/MomentService")
	ctx, span := tr.Start(ctx, "ListForSender",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.PageOffset(page, pageSize)

	sender, err := s.Identities.Resolve(ctx, d)
	if err != nil {
		return nil, 0, err
	}
	total, err := repo.CountMoments(ctx, s.DB, sender.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Moment{}, 0, nil
	}
	items, err := repo.ListMomentsPage(ctx, s.DB, sender.ID, offset, pageSize)
	return items, total, err
}

// InboxStats resolves the caller and returns aggregate inbox metadata used by
// the HTTP layer for weak ETags.
func (s *MomentService) InboxStats(ctx context.Context, d IdentityDescriptor) (identityID string, count int64, maxUpdatedAt *time.Time, err error) {
	sender, err := s.Identities.Resolve(ctx, d)
	if err != nil {
		return "", 0, nil, err
	}
	count, maxUpdatedAt, err = repo.MomentsStats(ctx, s.DB, sender.ID)
	return sender.ID, count, maxUpdatedAt, err
}

func deliveryFormatOrDefault(f string) string {
	f = strings.TrimSpace(strings.ToLower(f))
	if f == "" {
		return "text"
	}
	return f
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
