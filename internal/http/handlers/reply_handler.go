// Reply HTTP handlers.
//
// Replying is the unlock: a successful reply returns the hidden text to the
// receiver and completes the moment. Reactions and sender responses are
// post-unlock annotations layered on top of a reply.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateReplyRequest is the JSON payload for submitting a reply.
type CreateReplyRequest struct {
	ReplyText string `json:"reply_text" binding:"required,min=1" example:"Same tbh"`
	VibeScore *int   `json:"vibe_score,omitempty" example:"4"`
}

// ReplyResponse returns the created reply, the resulting moment status, and
// the hidden text unlocked by the reply.
type ReplyResponse struct {
	ReplyID      string `json:"reply_id"`
	MomentStatus string `json:"moment_status" example:"completed"`
	HiddenText   string `json:"hidden_text"`
}

// ReactionRequest is the JSON payload for reacting to a reply.
type ReactionRequest struct {
	ReactionText string `json:"reaction_text" binding:"required,min=1" example:"🥹"`
}

// SenderResponseRequest is the JSON payload for the sender's response to a
// reply.
type SenderResponseRequest struct {
	ResponseText string `json:"response_text" binding:"required,min=1"`
}

// CreateReply godoc
// @ID          createReply
// @Summary     Reply to a moment (unlocks the hidden text)
// @Description Records the receiver's reply, returns the hidden text, and transitions the moment to completed.
// @Tags        Replies
// @Accept      json
// @Produce     json
//
// @Param       code  path  string  true  "Short code"
// @Param       body  body  handlers.CreateReplyRequest  true  "Reply payload"
//
// @Success     201  {object}  handlers.ReplyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code}/replies [post]
func (h *Handlers) CreateReply(c *gin.Context) {
	var req CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := h.replySvc.Create(c.Request.Context(), identityOf(c), c.Param("code"), req.ReplyText, req.VibeScore)
	if err != nil {
		failFromErr(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, ReplyResponse{
		ReplyID:      res.ReplyID,
		MomentStatus: res.MomentStatus,
		HiddenText:   res.HiddenText,
	})
}

// CreateReaction godoc
// @ID          createReaction
// @Summary     React to a reply
// @Description Attaches reaction text to an existing reply of the moment.
// @Tags        Replies
// @Accept      json
// @Produce     json
//
// @Param       code     path  string  true  "Short code"
// @Param       replyId  path  string  true  "Reply id"
// @Param       body     body  handlers.ReactionRequest  true  "Reaction payload"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code}/replies/{replyId}/reaction [post]
func (h *Handlers) CreateReaction(c *gin.Context) {
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	err := h.replySvc.CreateReaction(c.Request.Context(), identityOf(c), c.Param("code"), c.Param("replyId"), req.ReactionText)
	if err != nil {
		failFromErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// SetSenderResponse godoc
// @ID          setSenderResponse
// @Summary     Sender's response to a reply
// @Description Attaches the sender's free-form response text to an existing reply.
// @Tags        Replies
// @Accept      json
// @Produce     json
//
// @Param       code     path  string  true  "Short code"
// @Param       replyId  path  string  true  "Reply id"
// @Param       body     body  handlers.SenderResponseRequest  true  "Sender response payload"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /moments/{code}/replies/{replyId}/sender-response [put]
func (h *Handlers) SetSenderResponse(c *gin.Context) {
	var req SenderResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	err := h.replySvc.SetSenderResponse(c.Request.Context(), identityOf(c), c.Param("code"), c.Param("replyId"), req.ResponseText)
	if err != nil {
		failFromErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
