package payment_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/payment"
	"github.com/frahmantamala/course-marketplace/internal/gateway"
	paymentsvc "github.com/frahmantamala/course-marketplace/internal/payment"
)

const webhookSecret = "test-webhook-secret"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("Gateway Webhook Handler", func() {
	var (
		store   *fakeStore
		handler *paymentsvc.WebhookHandler
		ctx     context.Context
	)

	const userID int64 = 42

	postWebhook := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set("X-Gateway-Signature", signature)
		}
		rec := httptest.NewRecorder()
		handler.HandleGatewayWebhook(rec, req)
		return rec
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newFakeStore()
		cat := &fakeCatalog{price: 1000}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service := paymentsvc.NewService(store, cat, &fakeCoupons{}, &fakeGateway{}, &fakeSlips{}, &fakeRevoker{}, &recordingBus{}, slogger, "THB")

		// Real signature verification, same scheme the provider uses.
		verifier := gateway.NewClient(gateway.Config{WebhookSecret: webhookSecret})
		handler = paymentsvc.NewWebhookHandler(service, verifier, slogger)

		Expect(store.CreatePayment(ctx, &payment.Payment{
			ID:       "pay-1",
			UserID:   userID,
			CourseID: ptrInt64(101),
			Amount:   1000,
			Currency: "THB",
			Method:   payment.MethodCard,
			Status:   payment.StatusPending,
		})).To(Succeed())
	})

	Context("with a valid signature", func() {
		It("should apply the event and ack", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
				"payment_id": "pay-1",
				"amount":     1000,
			})

			rec := postWebhook(body, sign(body))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]string
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("received"))

			p, err := store.Get(ctx, "pay-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
		})

		It("should ack duplicate deliveries", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
				"payment_id": "pay-1",
				"amount":     1000,
			})

			Expect(postWebhook(body, sign(body)).Code).To(Equal(http.StatusOK))
			Expect(postWebhook(body, sign(body)).Code).To(Equal(http.StatusOK))
		})

		It("should reject a payload with no payment reference", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
			})

			rec := postWebhook(body, sign(body))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return not found for an unknown payment", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
				"payment_id": "no-such-payment",
			})

			rec := postWebhook(body, sign(body))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("with an invalid signature", func() {
		It("should return 401 without touching the payment", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
				"payment_id": "pay-1",
				"amount":     1000,
			})

			rec := postWebhook(body, "deadbeef")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))

			p, err := store.Get(ctx, "pay-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusPending))
		})

		It("should return 401 when the header is missing", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
				"payment_id": "pay-1",
			})

			rec := postWebhook(body, "")
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should reject a signature computed over a tampered body", func() {
			body, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
				"payment_id": "pay-1",
				"amount":     1000,
			})
			signature := sign(body)

			tampered, _ := json.Marshal(map[string]interface{}{
				"event_type": paymentsvc.GatewayEventSucceeded,
				"payment_id": "pay-1",
				"amount":     1,
			})

			rec := postWebhook(tampered, signature)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
