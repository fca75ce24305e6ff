package payment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/transport"
)

const (
	signatureHeader = "X-Gateway-Signature"
	maxWebhookBody  = 1 << 20
)

// SignatureVerifier checks a webhook signature against the raw body.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

type WebhookHandler struct {
	transport.BaseHandler
	Service  *Service
	Verifier SignatureVerifier
	Logger   *slog.Logger
}

func NewWebhookHandler(service *Service, verifier SignatureVerifier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		Service:  service,
		Verifier: verifier,
		Logger:   logger,
	}
}

// HandleGatewayWebhook handles POST /webhooks/gateway. The signature is
// checked against the raw body before anything touches the store; an invalid
// signature never reaches the payment lookup.
func (h *WebhookHandler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.HandleError(w, errors.NewValidationError("could not read request body", errors.ErrCodeValidationFailed))
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" || !h.Verifier.VerifySignature(body, signature) {
		h.Logger.Warn("HandleGatewayWebhook: invalid signature", "remote", r.RemoteAddr)
		h.HandleError(w, errors.NewUnauthorizedError("invalid webhook signature", errors.ErrCodeSignatureInvalid))
		return
	}

	var event GatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.Logger.Error("HandleGatewayWebhook: malformed payload", "error", err)
		h.HandleError(w, errors.NewValidationError("malformed event payload", errors.ErrCodeValidationFailed))
		return
	}

	if err := event.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.HandleGatewayEvent(r.Context(), &event); err != nil {
		h.Logger.Error("HandleGatewayWebhook: processing failed",
			"error", err,
			"event_type", event.Type,
			"payment_id", event.PaymentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "received",
	})
}
