// Package domain defines the persistence models for identities, moments,
// replies, and the entitlement ledger. These types are mapped with GORM and
// form the core data layer of the moments backend.
package domain

import (
	"time"
)

// Moment lifecycle states. Status only ever moves sent -> completed.
const (
	MomentStatusSent      = "sent"
	MomentStatusCompleted = "completed"
)

// Pricing catalog codes. Rows for these are seeded at startup and referenced
// by code from the entitlement ledger.
const (
	PricingPremiumReveal = "PREMIUM_REVEAL"
	PricingDeepTruth     = "DEEP_TRUTH"
	PricingTruthL2       = "TRUTH_L2"
	PricingHiddenUnlock  = "HIDDEN_UNLOCK"
)

// Identity is the durable record unifying a guest-session reference and/or an
// externally authenticated user reference. Exactly one row exists per distinct
// caller; rows are created lazily on first contact and never deleted.
//
// GuestID and AuthUserID are both nullable: an anonymous first contact may
// carry neither. The resolver never updates an existing row, so the two
// columns are immutable after insert.
type Identity struct {
	ID         string    `json:"id"           gorm:"type:char(36);primaryKey"`
	GuestID    *string   `json:"guest_id"     gorm:"type:varchar(64);index"`
	AuthUserID *string   `json:"auth_user_id" gorm:"type:varchar(64);index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Identity.
func (Identity) TableName() string { return "identities" }

// Moment is a sender-authored teaser/hidden-text pair addressed by a public
// short code. The short code is the only public handle; it is assigned exactly
// once, at creation, and backed by a unique index.
//
// HiddenText may be absent at creation and attached later by the sender, but
// must exist before a receiver can unlock it. NotifyPhone is the sender's
// optional WhatsApp number used to ping them when a reply lands.
type Moment struct {
	ID               string     `json:"id"                 gorm:"type:char(36);primaryKey"`
	ShortCode        string     `json:"short_code"         gorm:"type:varchar(12);not null;uniqueIndex:ux_moments_short_code"`
	ModeKey          string     `json:"mode_key"           gorm:"type:varchar(32);not null"`
	DeliveryFormat   string     `json:"delivery_format"    gorm:"type:varchar(16);not null;default:'text'"`
	SenderIdentityID string     `json:"sender_identity_id" gorm:"type:char(36);not null;index:idx_sender_moments"`
	TeaserText       string     `json:"teaser_text"        gorm:"type:text;not null"`
	HiddenText       *string    `json:"hidden_text,omitempty" gorm:"type:text"`
	HiddenPrice      *int64     `json:"hidden_price,omitempty"`
	IsPremiumReveal  bool       `json:"is_premium_reveal"  gorm:"not null;default:false"`
	PremiumOptionID  *string    `json:"premium_option_id,omitempty" gorm:"type:char(36)"`
	NotifyPhone      *string    `json:"-"                  gorm:"type:varchar(32)"`
	Status           string     `json:"status"             gorm:"type:varchar(16);not null;default:'sent';check:status IN ('sent','completed')"`
	SentAt           time.Time  `json:"sent_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Sender Identity `json:"-" gorm:"foreignKey:SenderIdentityID;references:ID"`
}

// TableName returns the database table name for Moment.
func (Moment) TableName() string { return "moments" }

// HasHidden reports whether a hidden message has been attached.
func (m *Moment) HasHidden() bool {
	return m.HiddenText != nil && *m.HiddenText != ""
}

// Reply is a receiver's answer to a moment. The first reply flips the moment
// to completed; every reply persists as its own row. ReactionText and
// SenderResponseText are annotations attached after the fact.
type Reply struct {
	ID                  string    `json:"id"                    gorm:"type:char(36);primaryKey"`
	MomentID            string    `json:"moment_id"             gorm:"type:char(36);not null;index:idx_moment_replies,priority:1"`
	ResponderIdentityID string    `json:"responder_identity_id" gorm:"type:char(36);not null;index"`
	ReplyText           string    `json:"reply_text"            gorm:"type:text;not null"`
	VibeScore           *int      `json:"vibe_score,omitempty"`
	ReactionText        *string   `json:"reaction_text,omitempty"        gorm:"type:text"`
	SenderResponseText  *string   `json:"sender_response_text,omitempty" gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at" gorm:"index:idx_moment_replies,priority:2"`
	UpdatedAt           time.Time `json:"updated_at"`

	// Moment is the parent. Replies are cascade-deleted with their moment.
	Moment Moment `json:"-" gorm:"foreignKey:MomentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Reply.
func (Reply) TableName() string { return "replies" }

// PricingOption is a static catalog entry for a priced feature.
type PricingOption struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Code        string    `json:"code"         gorm:"type:varchar(32);not null;uniqueIndex:ux_pricing_code"`
	PriceAmount int64     `json:"price_amount" gorm:"not null"`
	Currency    string    `json:"currency"     gorm:"type:varchar(8);not null;default:'USD'"`
	IsActive    bool      `json:"is_active"    gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for PricingOption.
func (PricingOption) TableName() string { return "pricing_options" }

// Purchase is an append-only ledger row recording one entitlement grant.
// Rows are never mutated after insert; the Purchase row is the authoritative
// entitlement record (the companion Event is observational only).
type Purchase struct {
	ID              string    `json:"id"                gorm:"type:char(36);primaryKey"`
	IdentityID      string    `json:"identity_id"       gorm:"type:char(36);not null;index"`
	MomentID        *string   `json:"moment_id,omitempty"    gorm:"type:char(36);index"`
	PricingOptionID string    `json:"pricing_option_id" gorm:"type:char(36);not null;index"`
	ProviderRef     *string   `json:"provider_ref,omitempty" gorm:"type:varchar(128)"`
	Amount          int64     `json:"amount"            gorm:"not null"`
	Currency        string    `json:"currency"          gorm:"type:varchar(8);not null"`
	Status          string    `json:"status"            gorm:"type:varchar(16);not null"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// Event is an append-only audit row. Events are written by every mutating
// operation and never read back by the core for decisions. Properties holds a
// small JSON object with event-specific context.
type Event struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	IdentityID string    `json:"identity_id" gorm:"type:char(36);not null;index"`
	MomentID   *string   `json:"moment_id,omitempty" gorm:"type:char(36);index"`
	ReplyID    *string   `json:"reply_id,omitempty"  gorm:"type:char(36)"`
	EventType  string    `json:"event_type"  gorm:"type:varchar(64);not null;index"`
	Properties []byte    `json:"properties,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "events" }

// Followup is a purchased Truth-Level-2 question attached to a specific reply.
type Followup struct {
	ID              string    `json:"id"                gorm:"type:char(36);primaryKey"`
	MomentID        string    `json:"moment_id"         gorm:"type:char(36);not null;index"`
	ReplyID         string    `json:"reply_id"          gorm:"type:char(36);not null;index"`
	PricingOptionID string    `json:"pricing_option_id" gorm:"type:char(36);not null"`
	Text            string    `json:"text"              gorm:"type:text;not null"`
	AskedAt         time.Time `json:"asked_at"`

	Reply Reply `json:"-" gorm:"foreignKey:ReplyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Followup.
func (Followup) TableName() string { return "followups" }
