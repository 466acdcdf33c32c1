// Paid analysis HTTP handlers.
//
// Deep truth is a generated emotional read of the full exchange; truth level 2
// records a purchased follow-up question on a specific reply. Both are gated
// on the caller's payment assertion; denial leaves no persistent writes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeepTruthResponse returns the generated deep-truth analysis text.
type DeepTruthResponse struct {
	AnalysisText string `json:"analysis_text"`
}

// FollowupRequest is the JSON payload for a truth level 2 follow-up. Exactly
// one of followup_snippet_id or custom_followup_text must be provided.
type FollowupRequest struct {
	FollowupSnippetID  string `json:"followup_snippet_id,omitempty" example:"why_now"`
	CustomFollowupText string `json:"custom_followup_text,omitempty"`

	PaymentReference *string `json:"payment_reference,omitempty"`
	SkipPaymentCheck bool    `json:"skip_payment_check"`
}

// FollowupResponse returns the recorded follow-up question.
type FollowupResponse struct {
	FollowupID   string `json:"followup_id"`
	QuestionText string `json:"question_text"`
}

// RunDeepTruth godoc
// @ID          runDeepTruth
// @Summary     Generate the paid deep-truth analysis
// @Description Charges the DEEP_TRUTH option, builds the prompt from the full exchange, and returns the generated analysis.
// @Tags        Truth
// @Accept      json
// @Produce     json
//
// @Param       code  path  string  true  "Short code"
// @Param       body  body  handlers.PaymentAssertionRequest  true  "Payment assertion"
//
// @Success     200  {object}  handlers.DeepTruthResponse
// @Failure     402  {object}  handlers.ErrorResponse  "Entitlement denied"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Generation failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code}/deep-truth [post]
func (h *Handlers) RunDeepTruth(c *gin.Context) {
	var req PaymentAssertionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	text, err := h.truthSvc.RunDeepTruth(c.Request.Context(), identityOf(c), c.Param("code"), req.PaymentReference, req.SkipPaymentCheck)
	if err != nil {
		failFromErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, DeepTruthResponse{AnalysisText: text})
}

// RunTruthLevel2 godoc
// @ID          runTruthLevel2
// @Summary     Purchase a follow-up question on a reply
// @Description Charges the TRUTH_L2 option and records a follow-up (catalog snippet or custom text) on the given reply.
// @Tags        Truth
// @Accept      json
// @Produce     json
//
// @Param       code     path  string  true  "Short code"
// @Param       replyId  path  string  true  "Reply id"
// @Param       body     body  handlers.FollowupRequest  true  "Follow-up payload"
//
// @Success     201  {object}  handlers.FollowupResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse  "Entitlement denied"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code}/replies/{replyId}/followups [post]
func (h *Handlers) RunTruthLevel2(c *gin.Context) {
	var req FollowupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	f, err := h.truthSvc.RunTruthLevel2(
		c.Request.Context(), identityOf(c),
		c.Param("code"), c.Param("replyId"),
		req.FollowupSnippetID, req.CustomFollowupText,
		req.PaymentReference, req.SkipPaymentCheck,
	)
	if err != nil {
		failFromErr(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, FollowupResponse{FollowupID: f.ID, QuestionText: f.Text})
}
