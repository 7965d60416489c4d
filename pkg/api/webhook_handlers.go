package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/grump-ai/gateway/pkg/billing"
)

// SignatureHeader carries the payment provider's HMAC signature
const SignatureHeader = "X-Billing-Signature"

// maxWebhookBody bounds the raw body read for verification
const maxWebhookBody = 1 << 20 // 1MB

// HandleBillingWebhook verifies and applies a payment-provider event.
// The signature is computed over the raw body, so the body is read before
// any parsing. Responses are 200 on success (including replays) and 400 for
// anything the provider should fix and retry; no other status codes are used.
func (s *Server) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if err := s.sync.HandleWebhook(payload, signature); err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			s.logger.Warn("Rejected billing webhook with invalid signature")
			writeError(w, http.StatusBadRequest, "invalid signature")
		case errors.Is(err, billing.ErrInvalidPayload):
			s.logger.WithError(err).Warn("Rejected malformed billing webhook")
			writeError(w, http.StatusBadRequest, "invalid payload")
		default:
			writeError(w, http.StatusBadRequest, "webhook rejected")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}
