// Package services – IdentityService
//
// This file implements the identity resolver: the mapping from an anonymous
// guest cookie and/or an externally authenticated user id to one durable
// identity row. Every mutating operation in the system resolves an identity
// before touching any other state.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IdentityDescriptor carries the caller-supplied identifiers for a request.
// Either or both fields may be empty.
type IdentityDescriptor struct {
	GuestID    string
	AuthUserID string
}

// IdentityService resolves identity descriptors to durable identity rows.
type IdentityService struct {
	DB *gorm.DB
}

// Resolve maps a (guestID, authUserID) pair to exactly one identity row,
// creating one if absent.
//
// Semantics:
//   - Neither identifier supplied: a brand-new anonymous identity is inserted
//     without any lookup.
//   - Otherwise the lookup matches on auth_user_id OR guest_id. The auth-user
//     match is preferred over the guest match, which makes the tie-break
//     deterministic when the two identifiers point at different rows.
//   - A found row is returned as-is; its stored identifiers are never updated
//     or merged with the new input.
//   - No match: a new row is inserted carrying whatever subset of the pair was
//     supplied.
//
// Two concurrent first contacts for the same new guest id can both take the
// not-found branch and insert two rows. That race is accepted: it can only
// happen on a caller's very first simultaneous requests, and the ordered
// lookup returns the oldest row consistently afterwards.
//
// Storage errors propagate unwrapped. Each call performs zero or one insert
// and never an update.
func (s *IdentityService) Resolve(ctx context.Context, d IdentityDescriptor) (*domain.Identity, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.Bool("identity.has_guest", d.GuestID != ""),
			attribute.Bool("identity.has_auth", d.AuthUserID != ""),
		),
	)
	defer span.End()

	guestID := strings.TrimSpace(d.GuestID)
	authUserID := strings.TrimSpace(d.AuthUserID)

	if guestID == "" && authUserID == "" {
		return repo.CreateIdentity(ctx, s.DB, "", "")
	}

	if authUserID != "" {
		id, err := repo.FindIdentityByAuthUser(ctx, s.DB, authUserID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if guestID != "" {
		id, err := repo.FindIdentityByGuest(ctx, s.DB, guestID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return repo.CreateIdentity(ctx, s.DB, guestID, authUserID)
}
