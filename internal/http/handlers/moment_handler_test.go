package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/veiled-app/moments-backend/internal/domain"
	"github.com/veiled-app/moments-backend/internal/http/middleware"
	"github.com/veiled-app/moments-backend/internal/services"
)

func TestCreateMoment(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		m := &stubMomentSvc{createRes: &services.CreateMomentResult{
			ID: "m-1", ShortCode: "AbC123", Status: "sent",
		}}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodPost, "/moments", CreateMomentRequest{
			ModeKey:    "crush_confession",
			TeaserText: "Real talk…",
			HiddenText: "I still think about you",
		}, map[string]string{middleware.HeaderGuestID: "guest-1"})

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		var res services.CreateMomentResult
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.ShortCode != "AbC123" || res.Status != "sent" {
			t.Fatalf("unexpected result: %+v", res)
		}
		if m.createIn.Identity.GuestID != "guest-1" {
			t.Fatalf("identity not forwarded: %+v", m.createIn.Identity)
		}
		if m.createIn.TeaserText != "Real talk…" || m.createIn.HiddenText != "I still think about you" {
			t.Fatalf("payload not forwarded: %+v", m.createIn)
		}
	})

	t.Run("missing teaser rejected at bind", func(t *testing.T) {
		m := &stubMomentSvc{}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodPost, "/moments", map[string]any{"mode_key": "classic"}, nil)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		if e := decodeError(t, w); e.Code != ErrCodeBadRequest {
			t.Fatalf("code = %q", e.Code)
		}
	})

	t.Run("entitlement denied", func(t *testing.T) {
		m := &stubMomentSvc{createErr: services.ErrPaymentRequired}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodPost, "/moments", CreateMomentRequest{
			TeaserText:    "t",
			PremiumReveal: true,
		}, nil)

		if w.Code != http.StatusPaymentRequired {
			t.Fatalf("status = %d", w.Code)
		}
		if e := decodeError(t, w); e.Code != ErrCodeEntitlementDenied {
			t.Fatalf("code = %q", e.Code)
		}
	})
}

func TestGetMoment(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		price := int64(99)
		m := &stubMomentSvc{view: &services.ReceiverView{
			ShortCode:   "AbC123",
			TeaserText:  "Real talk…",
			Status:      "sent",
			HasHidden:   true,
			HiddenPrice: &price,
		}}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodGet, "/moments/AbC123", nil, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var view services.ReceiverView
		if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !view.HasHidden || view.HiddenPrice == nil || *view.HiddenPrice != 99 {
			t.Fatalf("unexpected view: %+v", view)
		}
	})

	t.Run("not found", func(t *testing.T) {
		m := &stubMomentSvc{viewErr: services.ErrMomentNotFound}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodGet, "/moments/nope", nil, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d", w.Code)
		}
	})
}

func TestListMoments(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("page with etag header", func(t *testing.T) {
		m := &stubMomentSvc{
			listItems:   []domain.Moment{{ID: "m-1", ShortCode: "AbC123"}},
			listTotal:   5,
			statsSender: "sender-1",
			statsCount:  5,
			statsTS:     &ts,
		}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodGet, "/moments?page=2&page_size=2", nil, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		wantETag := fmt.Sprintf(`W/"moments:sender-1:5:%d"`, ts.Unix())
		if got := w.Header().Get("ETag"); got != wantETag {
			t.Fatalf("ETag = %q; want %q", got, wantETag)
		}
		var res ListMomentsResponse
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.Pagination.Page != 2 || res.Pagination.PageSize != 2 || res.Pagination.Total != 5 {
			t.Fatalf("pagination: %+v", res.Pagination)
		}
		if res.Pagination.TotalPages != 3 || !res.Pagination.HasNext {
			t.Fatalf("pagination: %+v", res.Pagination)
		}
		if m.listPage != 2 || m.listSize != 2 {
			t.Fatalf("clamped params not forwarded: (%d, %d)", m.listPage, m.listSize)
		}
	})

	t.Run("if-none-match short-circuits to 304", func(t *testing.T) {
		m := &stubMomentSvc{statsSender: "sender-1", statsCount: 5, statsTS: &ts}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		etag := fmt.Sprintf(`W/"moments:sender-1:5:%d"`, ts.Unix())
		w := doJSON(t, r, http.MethodGet, "/moments", nil, map[string]string{"If-None-Match": etag})

		if w.Code != http.StatusNotModified {
			t.Fatalf("status = %d", w.Code)
		}
		if w.Body.Len() != 0 {
			t.Fatalf("304 must carry no body: %s", w.Body.String())
		}
	})

	t.Run("stale etag falls through to the list", func(t *testing.T) {
		m := &stubMomentSvc{statsSender: "sender-1", statsCount: 6, statsTS: &ts}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		stale := fmt.Sprintf(`W/"moments:sender-1:5:%d"`, ts.Unix())
		w := doJSON(t, r, http.MethodGet, "/moments", nil, map[string]string{"If-None-Match": stale})

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("list failure", func(t *testing.T) {
		m := &stubMomentSvc{listErr: fmt.Errorf("db closed")}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodGet, "/moments", nil, nil)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		if e := decodeError(t, w); e.Code != ErrCodeListFailed {
			t.Fatalf("code = %q", e.Code)
		}
	})
}

func TestSetHidden(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		m := &stubMomentSvc{}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodPut, "/moments/AbC123/hidden", SetHiddenRequest{
			HiddenText: "now you know",
		}, nil)

		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		if m.setHiddenCode != "AbC123" || m.setHiddenText != "now you know" {
			t.Fatalf("not forwarded: code=%q text=%q", m.setHiddenCode, m.setHiddenText)
		}
	})

	t.Run("missing text rejected at bind", func(t *testing.T) {
		r := newTestRouter(&stubMomentSvc{}, &stubReplySvc{}, &stubTruthSvc{})
		w := doJSON(t, r, http.MethodPut, "/moments/AbC123/hidden", map[string]any{}, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		m := &stubMomentSvc{setHiddenErr: services.ErrMomentNotFound}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})
		w := doJSON(t, r, http.MethodPut, "/moments/nope/hidden", SetHiddenRequest{HiddenText: "x"}, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d", w.Code)
		}
	})
}

func TestUnlockHidden(t *testing.T) {
	t.Run("unlocked", func(t *testing.T) {
		m := &stubMomentSvc{unlockText: "I still think about you"}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodPost, "/moments/AbC123/unlock", PaymentAssertionRequest{
			SkipPaymentCheck: true,
		}, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		var res UnlockResponse
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if res.HiddenText != "I still think about you" {
			t.Fatalf("hidden = %q", res.HiddenText)
		}
	})

	t.Run("payment required", func(t *testing.T) {
		m := &stubMomentSvc{unlockErr: services.ErrPaymentRequired}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodPost, "/moments/AbC123/unlock", PaymentAssertionRequest{}, nil)
		if w.Code != http.StatusPaymentRequired {
			t.Fatalf("status = %d", w.Code)
		}
		if e := decodeError(t, w); e.Code != ErrCodeEntitlementDenied {
			t.Fatalf("code = %q", e.Code)
		}
	})

	t.Run("hidden not set", func(t *testing.T) {
		m := &stubMomentSvc{unlockErr: services.ErrHiddenNotSet}
		r := newTestRouter(m, &stubReplySvc{}, &stubTruthSvc{})

		w := doJSON(t, r, http.MethodPost, "/moments/AbC123/unlock", PaymentAssertionRequest{SkipPaymentCheck: true}, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})
}
