// Package services defines the business logic for identities, moments,
// replies, and the entitlement ledger. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer. Unexpected storage failures are never wrapped into these sentinels;
// the raw error bubbles up so callers can tell "not created yet" apart from a
// transient store error.
package services

import "errors"

// Lookup errors.
var (
	// ErrMomentNotFound indicates that no moment exists for the given short
	// code or id.
	ErrMomentNotFound = errors.New("moment not found")

	// ErrReplyNotFound indicates that the requested reply does not exist or
	// does not belong to the given moment.
	ErrReplyNotFound = errors.New("reply not found")
)

// Validation errors.
var (
	// ErrEmptyTeaser is returned when a moment is created without teaser text.
	ErrEmptyTeaser = errors.New("teaser text is empty")

	// ErrEmptyReply is returned when a reply is submitted without text.
	ErrEmptyReply = errors.New("reply text is empty")

	// ErrEmptyHidden is returned when SetHiddenMessage is called with no text.
	ErrEmptyHidden = errors.New("hidden text is empty")

	// ErrHiddenNotSet is returned when a receiver tries to unlock a moment
	// whose sender has not attached a hidden message yet.
	ErrHiddenNotSet = errors.New("hidden message not set")

	// ErrEmptyAnnotation is returned when a reaction or sender response is
	// submitted without text.
	ErrEmptyAnnotation = errors.New("annotation text is empty")

	// ErrMissingFollowupContent is returned when a Truth-Level-2 request
	// carries neither a snippet id nor custom followup text.
	ErrMissingFollowupContent = errors.New("followup snippet or custom text required")

	// ErrUnknownFollowupSnippet is returned when the given snippet id is not
	// in the followup catalog.
	ErrUnknownFollowupSnippet = errors.New("unknown followup snippet")
)

// Entitlement errors.
var (
	// ErrUnknownPricingOption is returned when no active catalog entry exists
	// for the requested pricing code.
	ErrUnknownPricingOption = errors.New("unknown pricing option")

	// ErrPaymentRequired is returned when a priced feature is requested
	// without an upstream payment assertion. The core never initiates a
	// charge itself; it only records one already confirmed by the gateway.
	ErrPaymentRequired = errors.New("payment required")
)

// Generation and code-space errors.
var (
	// ErrCodeSpaceExhausted is returned when the short-code generator runs out
	// of retries without finding an unused candidate.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")

	// ErrGenerationFailed is returned when the external text generator fails
	// or returns no content.
	ErrGenerationFailed = errors.New("text generation failed")
)
