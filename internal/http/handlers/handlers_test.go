package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/http/middleware"
	"github.com/veiled-app/moments-backend/internal/services"
)

//
// Service stubs
//

type stubMomentSvc struct {
	createRes *services.CreateMomentResult
	createErr error
	createIn  services.CreateMomentInput

	view    *services.ReceiverView
	viewErr error

	setHiddenErr  error
	setHiddenCode string
	setHiddenText string

	unlockText string
	unlockErr  error

	listItems []domain.Moment
	listTotal int64
	listErr   error
	listPage  int
	listSize  int

	statsSender string
	statsCount  int64
	statsTS     *time.Time
	statsErr    error
}

func (s *stubMomentSvc) CreateMoment(_ context.Context, in services.CreateMomentInput) (*services.CreateMomentResult, error) {
	s.createIn = in
	return s.createRes, s.createErr
}

func (s *stubMomentSvc) GetForReceiver(context.Context, string) (*services.ReceiverView, error) {
	return s.view, s.viewErr
}

func (s *stubMomentSvc) SetHiddenMessage(_ context.Context, _ services.IdentityDescriptor, shortCode, hiddenText string, _ *int64) error {
	s.setHiddenCode = shortCode
	s.setHiddenText = hiddenText
	return s.setHiddenErr
}

func (s *stubMomentSvc) UnlockHiddenByPayment(context.Context, services.IdentityDescriptor, string, *string, bool) (string, error) {
	return s.unlockText, s.unlockErr
}

func (s *stubMomentSvc) ListForSender(_ context.Context, _ services.IdentityDescriptor, page, pageSize int) ([]domain.Moment, int64, error) {
	s.listPage = page
	s.listSize = pageSize
	return s.listItems, s.listTotal, s.listErr
}

func (s *stubMomentSvc) InboxStats(context.Context, services.IdentityDescriptor) (string, int64, *time.Time, error) {
	return s.statsSender, s.statsCount, s.statsTS, s.statsErr
}

type stubReplySvc struct {
	res *services.ReplyResult
	err error

	reactionErr error
	responseErr error

	gotIdentity services.IdentityDescriptor
	gotCode     string
	gotText     string
	gotReplyID  string
}

func (s *stubReplySvc) Create(_ context.Context, d services.IdentityDescriptor, shortCode, replyText string, _ *int) (*services.ReplyResult, error) {
	s.gotIdentity = d
	s.gotCode = shortCode
	s.gotText = replyText
	return s.res, s.err
}

func (s *stubReplySvc) CreateReaction(_ context.Context, _ services.IdentityDescriptor, shortCode, replyID, reactionText string) error {
	s.gotCode = shortCode
	s.gotReplyID = replyID
	s.gotText = reactionText
	return s.reactionErr
}

func (s *stubReplySvc) SetSenderResponse(_ context.Context, _ services.IdentityDescriptor, shortCode, replyID, responseText string) error {
	s.gotCode = shortCode
	s.gotReplyID = replyID
	s.gotText = responseText
	return s.responseErr
}

type stubTruthSvc struct {
	analysis    string
	analysisErr error

	followup    *domain.Followup
	followupErr error

	gotSnippet string
	gotCustom  string
}

func (s *stubTruthSvc) RunDeepTruth(context.Context, services.IdentityDescriptor, string, *string, bool) (string, error) {
	return s.analysis, s.analysisErr
}

func (s *stubTruthSvc) RunTruthLevel2(_ context.Context, _ services.IdentityDescriptor, _, _, followupSnippetID, customFollowupText string, _ *string, _ bool) (*domain.Followup, error) {
	s.gotSnippet = followupSnippetID
	s.gotCustom = customFollowupText
	return s.followup, s.followupErr
}

//
// Router + request helpers
//

// newTestRouter mounts the handlers behind the same route shapes and identity
// middleware the production router uses.
func newTestRouter(m MomentService, rp ReplyService, tr TruthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.IdentityExtractor())

	h := New(m, rp, tr)
	r.POST("/moments", h.CreateMoment)
	r.GET("/moments", h.ListMoments)
	r.GET("/moments/:code", h.GetMoment)
	r.PUT("/moments/:code/hidden", h.SetHidden)
	r.POST("/moments/:code/unlock", h.UnlockHidden)
	r.POST("/moments/:code/replies", h.CreateReply)
	r.POST("/moments/:code/replies/:replyId/reaction", h.CreateReaction)
	r.PUT("/moments/:code/replies/:replyId/sender-response", h.SetSenderResponse)
	r.POST("/moments/:code/deep-truth", h.RunDeepTruth)
	r.POST("/moments/:code/replies/:replyId/followups", h.RunTruthLevel2)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, w.Body.String())
	}
	return e
}

//
// Error taxonomy
//

func TestFailFromErr_Mapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"moment not found", services.ErrMomentNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"reply not found", services.ErrReplyNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"payment required", services.ErrPaymentRequired, http.StatusPaymentRequired, ErrCodeEntitlementDenied},
		{"unknown pricing option", services.ErrUnknownPricingOption, http.StatusPaymentRequired, ErrCodeEntitlementDenied},
		{"code space exhausted", services.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, ErrCodeCodeSpace},
		{"generation failed", services.ErrGenerationFailed, http.StatusBadGateway, ErrCodeGenerationFailed},
		{"empty teaser", services.ErrEmptyTeaser, http.StatusBadRequest, ErrCodeBadRequest},
		{"empty reply", services.ErrEmptyReply, http.StatusBadRequest, ErrCodeBadRequest},
		{"hidden not set", services.ErrHiddenNotSet, http.StatusBadRequest, ErrCodeBadRequest},
		{"teaser too long", services.ErrTeaserTooLong, http.StatusBadRequest, ErrCodeBadRequest},
		{"reply too long", services.ErrReplyTooLong, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown snippet", services.ErrUnknownFollowupSnippet, http.StatusBadRequest, ErrCodeBadRequest},
		{"storage failure", errors.New("disk on fire"), http.StatusInternalServerError, "fallback_code"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			failFromErr(c, tc.err, "fallback_code")

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d; want %d", w.Code, tc.wantStatus)
			}
			if e := decodeError(t, w); e.Code != tc.wantCode {
				t.Fatalf("code = %q; want %q", e.Code, tc.wantCode)
			}
		})
	}
}

//
// Pagination clamping
//

func TestClampPagination(t *testing.T) {
	cases := []struct {
		query    string
		wantPage int
		wantSize int
	}{
		{"", 1, 20},
		{"?page=3&page_size=50", 3, 50},
		{"?page=0&page_size=0", 1, 1},
		{"?page=-4&page_size=9999", 1, 100},
		{"?page=abc&page_size=xyz", 1, 20},
	}
	for _, tc := range cases {
		gin.SetMode(gin.TestMode)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/moments"+tc.query, nil)

		page, size := clampPagination(c)
		if page != tc.wantPage || size != tc.wantSize {
			t.Fatalf("clampPagination(%q) = (%d, %d); want (%d, %d)",
				tc.query, page, size, tc.wantPage, tc.wantSize)
		}
	}
}
