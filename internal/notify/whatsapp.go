// Package notify implements the best-effort WhatsApp-style push collaborator.
// Notifications are fire-and-forget from the core's perspective: failures are
// logged here and never propagate back to block the operation that triggered
// them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Notification event names understood by the gateway templates.
const (
	EventMomentCreated = "moment_created"
	EventReplyReceived = "reply_received"
)

// Notifier pushes a short event ping about a moment to a phone number.
type Notifier interface {
	Notify(ctx context.Context, phone, event, shortCode string) error
}

// WhatsAppClient posts template messages to a WhatsApp gateway. Outbound sends
// are paced with a token bucket so a burst of replies cannot hammer the
// gateway.
type WhatsAppClient struct {
	BaseURL string
	Token   string

	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewWhatsAppClient builds a client pacing sends at perSecond (minimum 1/s).
func NewWhatsAppClient(baseURL, token string, perSecond float64) *WhatsAppClient {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &WhatsAppClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type pushMessage struct {
	To        string `json:"to"`
	Event     string `json:"event"`
	ShortCode string `json:"short_code"`
}

// Notify sends one event ping. It blocks on the pacing limiter, honors ctx
// cancellation, and returns an error on transport failure or non-2xx status.
func (c *WhatsAppClient) Notify(ctx context.Context, phone, event, shortCode string) error {
	if c.BaseURL == "" {
		log.Debug().Msg("whatsapp gateway not configured, dropping notification")
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(pushMessage{To: phone, Event: event, ShortCode: shortCode})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// Dispatch fires a notification in the background and logs any failure. The
// caller's context is deliberately not reused: the request that triggered the
// ping may finish (and be canceled) before the send completes.
func Dispatch(n Notifier, phone, event, shortCode string) {
	if n == nil || phone == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := n.Notify(ctx, phone, event, shortCode); err != nil {
			log.Warn().
				Err(err).
				Str("event", event).
				Str("short_code", shortCode).
				Msg("notification failed")
		}
	}()
}
