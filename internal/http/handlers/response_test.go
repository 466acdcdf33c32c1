package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFail_EnvelopeCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Writer.Header().Set("X-Request-ID", "req-42")

	fail(c, http.StatusNotFound, ErrCodeNotFound, "moment not found")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	e := decodeError(t, w)
	if e.RequestID != "req-42" || e.Code != ErrCodeNotFound || e.Message != "moment not found" {
		t.Fatalf("envelope: %+v", e)
	}
	if !c.IsAborted() {
		t.Fatal("fail must abort the chain")
	}
}

func TestFail_WithoutRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bad input")

	if e := decodeError(t, w); e.RequestID != "" {
		t.Fatalf("request id should be empty, got %q", e.RequestID)
	}
}

func TestFail_ServerErrorStillRenders(t *testing.T) {
	// 5xx takes the logging branch; the envelope must come out regardless.
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	fail(c, http.StatusInternalServerError, ErrCodeInternal, "boom")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != ErrCodeInternal {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestNoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	noContent(c)
	// CreateTestContext has no engine to finalize the response, so flush the
	// deferred status the way gin does at the end of a real request.
	c.Writer.WriteHeaderNow()

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("204 must carry no body: %s", w.Body.String())
	}
}
