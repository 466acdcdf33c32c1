// Moment HTTP handlers.
//
// This file exposes REST endpoints for moment resources:
//   - POST /moments                 (create)
//   - GET  /moments                 (sender inbox, paginated, ETag support)
//   - GET  /moments/{code}          (receiver view by short code)
//   - PUT  /moments/{code}/hidden   (attach/replace hidden message)
//   - POST /moments/{code}/unlock   (paid hidden unlock)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Every request carries an identity
// descriptor extracted by middleware (guest cookie/header, auth header).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/http/middleware"
	"github.com/veiled-app/moments-backend/internal/services"
	"github.com/veiled-app/moments-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// MomentService defines moment lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MomentService interface {
	// CreateMoment publishes a new moment and returns its id and short code.
	CreateMoment(ctx context.Context, in services.CreateMomentInput) (*services.CreateMomentResult, error)
	// GetForReceiver returns the public view of a moment by short code.
	GetForReceiver(ctx context.Context, shortCode string) (*services.ReceiverView, error)
	// SetHiddenMessage attaches or replaces the hidden text of a moment.
	SetHiddenMessage(ctx context.Context, d services.IdentityDescriptor, shortCode, hiddenText string, price *int64) error
	// UnlockHiddenByPayment grants the hidden text through the paid path.
	UnlockHiddenByPayment(ctx context.Context, d services.IdentityDescriptor, shortCode string, paymentReference *string, skipPayment bool) (string, error)
	// ListForSender returns a page of the caller's moments and the total count.
	ListForSender(ctx context.Context, d services.IdentityDescriptor, page, pageSize int) ([]domain.Moment, int64, error)
	// InboxStats returns aggregate inbox metadata for conditional responses.
	InboxStats(ctx context.Context, d services.IdentityDescriptor) (string, int64, *time.Time, error)
}

// ReplyService defines reply submission and annotation operations.
type ReplyService interface {
	// Create submits a reply and returns the unlocked hidden text.
	Create(ctx context.Context, d services.IdentityDescriptor, shortCode, replyText string, vibeScore *int) (*services.ReplyResult, error)
	// CreateReaction attaches reaction text to a reply.
	CreateReaction(ctx context.Context, d services.IdentityDescriptor, shortCode, replyID, reactionText string) error
	// SetSenderResponse attaches the sender's response text to a reply.
	SetSenderResponse(ctx context.Context, d services.IdentityDescriptor, shortCode, replyID, responseText string) error
}

// TruthService defines the paid analysis operations.
type TruthService interface {
	// RunDeepTruth generates the paid deep-truth analysis for a moment.
	RunDeepTruth(ctx context.Context, d services.IdentityDescriptor, shortCode string, paymentReference *string, skipPayment bool) (string, error)
	// RunTruthLevel2 records a purchased follow-up question on a reply.
	RunTruthLevel2(ctx context.Context, d services.IdentityDescriptor, shortCode, replyID, followupSnippetID, customFollowupText string, paymentReference *string, skipPayment bool) (*domain.Followup, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for moments, replies, and paid analysis.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	momentSvc MomentService
	replySvc  ReplyService
	truthSvc  TruthService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(momentSvc MomentService, replySvc ReplyService, truthSvc TruthService) *Handlers {
	return &Handlers{momentSvc: momentSvc, replySvc: replySvc, truthSvc: truthSvc}
}

// identityOf builds the identity descriptor from values stashed by
// middleware.IdentityExtractor. Both fields may be empty (anonymous caller).
func identityOf(c *gin.Context) services.IdentityDescriptor {
	return services.IdentityDescriptor{
		GuestID:    middleware.GuestID(c),
		AuthUserID: middleware.AuthUserID(c),
	}
}

// failFromErr translates service-level sentinel errors into the HTTP error
// taxonomy. Unrecognized errors (storage failures) become 500s with the
// supplied fallback code, so transient store errors stay distinguishable from
// "not created yet".
func failFromErr(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrMomentNotFound),
		errors.Is(err, services.ErrReplyNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrPaymentRequired),
		errors.Is(err, services.ErrUnknownPricingOption):
		fail(c, http.StatusPaymentRequired, ErrCodeEntitlementDenied, err.Error())
	case errors.Is(err, services.ErrCodeSpaceExhausted):
		fail(c, http.StatusServiceUnavailable, ErrCodeCodeSpace, err.Error())
	case errors.Is(err, services.ErrGenerationFailed):
		fail(c, http.StatusBadGateway, ErrCodeGenerationFailed, err.Error())
	case errors.Is(err, services.ErrEmptyTeaser),
		errors.Is(err, services.ErrEmptyReply),
		errors.Is(err, services.ErrEmptyHidden),
		errors.Is(err, services.ErrEmptyAnnotation),
		errors.Is(err, services.ErrHiddenNotSet),
		errors.Is(err, services.ErrMissingFollowupContent),
		errors.Is(err, services.ErrUnknownFollowupSnippet),
		errors.Is(err, services.ErrTeaserTooLong),
		errors.Is(err, services.ErrHiddenTooLong),
		errors.Is(err, services.ErrReplyTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// DTOs
//

// CreateMomentRequest is the JSON payload for creating a moment.
type CreateMomentRequest struct {
	ModeKey        string `json:"mode_key" example:"crush_confession"`
	DeliveryFormat string `json:"delivery_format" example:"text"`
	TeaserText     string `json:"teaser_text" binding:"required,min=1" example:"Real talk…"`
	HiddenText     string `json:"hidden_text" example:"I still think about you"`
	HiddenPrice    *int64 `json:"hidden_price,omitempty"`
	PremiumReveal  bool   `json:"premium_reveal"`
	RecipientPhone string `json:"recipient_phone,omitempty" example:"+15551234567"`
	NotifyPhone    string `json:"notify_phone,omitempty" example:"+15557654321"`

	PaymentReference *string `json:"payment_reference,omitempty"`
	SkipPaymentCheck bool    `json:"skip_payment_check"`
}

// SetHiddenRequest is the JSON payload for attaching a hidden message.
type SetHiddenRequest struct {
	HiddenText  string `json:"hidden_text" binding:"required,min=1"`
	HiddenPrice *int64 `json:"hidden_price,omitempty"`
}

// PaymentAssertionRequest carries the caller's payment assertion for paid
// operations. The core performs no verification call itself; verification is
// an upstream responsibility.
type PaymentAssertionRequest struct {
	PaymentReference *string `json:"payment_reference,omitempty"`
	SkipPaymentCheck bool    `json:"skip_payment_check"`
}

// UnlockResponse returns the hidden text after a successful paid unlock.
type UnlockResponse struct {
	HiddenText string `json:"hidden_text"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMomentsResponse wraps a page of moments and pagination information.
type ListMomentsResponse struct {
	Moments    []domain.Moment `json:"moments"`
	Pagination Pagination      `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateMoment godoc
// @ID          createMoment
// @Summary     Publish a new moment
// @Description Creates a moment (optionally premium, entitlement-gated) and returns its id and short code.
// @Tags        Moments
// @Accept      json
// @Produce     json
//
// @Param       X-Guest-ID   header  string  false "Guest id (cookie also accepted)"
// @Param       X-Auth-User  header  string  false "Authenticated user id"
// @Param       body         body    handlers.CreateMomentRequest  true  "Create moment payload"
//
// @Success     201  {object}  services.CreateMomentResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse  "Entitlement denied"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments [post]
func (h *Handlers) CreateMoment(c *gin.Context) {
	var req CreateMomentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	res, err := h.momentSvc.CreateMoment(c.Request.Context(), services.CreateMomentInput{
		Identity:         identityOf(c),
		ModeKey:          req.ModeKey,
		DeliveryFormat:   req.DeliveryFormat,
		TeaserText:       req.TeaserText,
		HiddenText:       req.HiddenText,
		HiddenPrice:      req.HiddenPrice,
		PremiumReveal:    req.PremiumReveal,
		RecipientPhone:   req.RecipientPhone,
		NotifyPhone:      req.NotifyPhone,
		PaymentReference: req.PaymentReference,
		SkipPaymentCheck: req.SkipPaymentCheck,
	})
	if err != nil {
		failFromErr(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, res)
}

// GetMoment godoc
// @ID          getMoment
// @Summary     Receiver view of a moment
// @Description Returns the public shape of a moment by short code. The hidden text itself is never included.
// @Tags        Moments
// @Produce     json
//
// @Param       code  path  string  true  "Short code"
//
// @Success     200  {object}  services.ReceiverView
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code} [get]
func (h *Handlers) GetMoment(c *gin.Context) {
	view, err := h.momentSvc.GetForReceiver(c.Request.Context(), c.Param("code"))
	if err != nil {
		failFromErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, view)
}

// ListMoments godoc
// @ID          listMoments
// @Summary     Sender inbox (paginated)
// @Description Returns a page of the caller's moments. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Moments
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMomentsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /moments [get]
func (h *Handlers) ListMoments(c *gin.Context) {
	ctx := c.Request.Context()
	d := identityOf(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if senderID, count, maxTS, err := h.momentSvc.InboxStats(ctx, d); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"moments:%s:%d:%d"`, senderID, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.momentSvc.ListForSender(ctx, d, page, pageSize)
	if err != nil {
		failFromErr(c, err, ErrCodeListFailed)
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMomentsResponse{
		Moments: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// SetHidden godoc
// @ID          setHiddenMessage
// @Summary     Attach or replace the hidden message
// @Description Sender-only operation; does not change moment status. Authorization happens upstream.
// @Tags        Moments
// @Accept      json
// @Produce     json
//
// @Param       code  path  string  true  "Short code"
// @Param       body  body  handlers.SetHiddenRequest  true  "Hidden message payload"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code}/hidden [put]
func (h *Handlers) SetHidden(c *gin.Context) {
	var req SetHiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	err := h.momentSvc.SetHiddenMessage(c.Request.Context(), identityOf(c), c.Param("code"), req.HiddenText, req.HiddenPrice)
	if err != nil {
		failFromErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// UnlockHidden godoc
// @ID          unlockHidden
// @Summary     Paid hidden unlock
// @Description Grants the full hidden text against a confirmed HIDDEN_UNLOCK payment, orthogonal to the reply-based unlock.
// @Tags        Moments
// @Accept      json
// @Produce     json
//
// @Param       code  path  string  true  "Short code"
// @Param       body  body  handlers.PaymentAssertionRequest  true  "Payment assertion"
//
// @Success     200  {object}  handlers.UnlockResponse
// @Failure     402  {object}  handlers.ErrorResponse  "Entitlement denied"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code}/unlock [post]
func (h *Handlers) UnlockHidden(c *gin.Context) {
	var req PaymentAssertionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	hidden, err := h.momentSvc.UnlockHiddenByPayment(c.Request.Context(), identityOf(c), c.Param("code"), req.PaymentReference, req.SkipPaymentCheck)
	if err != nil {
		failFromErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, UnlockResponse{HiddenText: hidden})
}
