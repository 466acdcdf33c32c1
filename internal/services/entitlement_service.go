// Package services – EntitlementService
//
// This file implements the entitlement ledger: the single gate in front of
// every priced feature (premium reveal, deep truth, truth level 2, paid hidden
// unlock). The service never initiates a charge (actual capture happens in an
// external gateway before the core is invoked); it only records a confirmed
// charge and grants access by appending a Purchase row plus an audit Event.
package services

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// purchasesTotal counts granted entitlements by pricing code.
var purchasesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "entitlement_purchases_total",
		Help: "Total number of recorded entitlement purchases.",
	},
	[]string{"pricing_code"},
)

func init() {
	prometheus.MustRegister(purchasesTotal)
}

// purchasedEventTypes maps a pricing code to the audit event written when the
// corresponding entitlement is granted.
var purchasedEventTypes = map[string]string{
	domain.PricingPremiumReveal: "premium_reveal_purchased",
	domain.PricingDeepTruth:     "deep_truth_purchased",
	domain.PricingTruthL2:       "truth_l2_purchased",
	domain.PricingHiddenUnlock:  "hidden_unlock_purchased",
}

// EntitlementResult reports the outcome of a successful ChargeOrUsePass call.
type EntitlementResult struct {
	// CoveredByPass is reserved for pass-balance coverage. Pass semantics are
	// not yet supported, so it is always false in the current behavior; the
	// field keeps the contract stable for when balances arrive.
	CoveredByPass bool
	// Option is the resolved catalog entry the grant was priced from.
	Option *domain.PricingOption
	// PurchaseID identifies the appended ledger row.
	PurchaseID string
}

// EntitlementService implements the payment-or-pass check.
type EntitlementService struct {
	DB *gorm.DB
}

// ChargeOrUsePass decides whether the priced feature identified by pricingCode
// is accessible to identityID and, if so, records the grant.
//
// Semantics:
//   - pricingCode must resolve to an active catalog entry; otherwise
//     ErrUnknownPricingOption.
//   - skipPayment=false fails with ErrPaymentRequired. This is the only
//     refusal path for a known code: the core records charges, it never makes
//     them.
//   - skipPayment=true appends exactly one Purchase row (status success,
//     provider reference as supplied) and one feature-specific purchased
//     Event, atomically. This is the sole path that grants access.
//
// Callers must not perform the gated effect unless this method returned
// successfully. The Purchase row is the authoritative entitlement record; the
// Event is observational.
func (s *EntitlementService) ChargeOrUsePass(ctx context.Context, identityID, pricingCode string, momentID, paymentReference *string, skipPayment bool) (*EntitlementResult, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "ChargeOrUsePass",
		trace.WithAttributes(
			attribute.String("pricing.code", pricingCode),
			attribute.Bool("payment.skip", skipPayment),
		),
	)
	defer span.End()

	opt, err := repo.GetActivePricingOption(ctx, s.DB, pricingCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownPricingOption
		}
		return nil, err
	}

	// Pass coverage is a stated extension point, not yet supported: no pass
	// balance is consulted or decremented.

	if !skipPayment {
		return nil, ErrPaymentRequired
	}

	purchase := &domain.Purchase{
		IdentityID:      identityID,
		MomentID:        momentID,
		PricingOptionID: opt.ID,
		ProviderRef:     paymentReference,
		Amount:          opt.PriceAmount,
		Currency:        opt.Currency,
		Status:          "success",
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreatePurchase(ctx, tx, purchase); err != nil {
			return err
		}
		return repo.CreateEvent(ctx, tx, identityID, purchasedEventTypes[opt.Code], momentID, nil, map[string]any{
			"pricing_code": opt.Code,
			"amount":       opt.PriceAmount,
			"currency":     opt.Currency,
			"purchase_id":  purchase.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	purchasesTotal.WithLabelValues(opt.Code).Inc()

	return &EntitlementResult{
		CoveredByPass: false,
		Option:        opt,
		PurchaseID:    purchase.ID,
	}, nil
}
