package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/course-marketplace/internal/core/events"
)

// DirectoryAPI resolves recipient addresses.
type DirectoryAPI interface {
	UserEmail(ctx context.Context, userID int64) (string, error)
}

// TitlesAPI resolves course titles for email copy.
type TitlesAPI interface {
	CourseTitle(ctx context.Context, courseID int64) (string, error)
}

// EventHandler turns domain events into notification jobs. Every delivery
// goes through the dispatcher so a slow SMTP server never backs up into the
// payment path.
type EventHandler struct {
	dispatcher *Dispatcher
	emails     *EmailSender
	notifier   *WebhookNotifier
	users      DirectoryAPI
	titles     TitlesAPI
	logger     *slog.Logger
}

func NewEventHandler(
	dispatcher *Dispatcher,
	emails *EmailSender,
	notifier *WebhookNotifier,
	users DirectoryAPI,
	titles TitlesAPI,
	logger *slog.Logger,
) *EventHandler {
	return &EventHandler{
		dispatcher: dispatcher,
		emails:     emails,
		notifier:   notifier,
		users:      users,
		titles:     titles,
		logger:     logger,
	}
}

// Subscribe registers the handler on the event bus.
func (h *EventHandler) Subscribe(bus events.EventBus) {
	bus.Subscribe(events.PaymentCompletedEvent, h.onPaymentCompleted)
	bus.Subscribe(events.PaymentFailedEvent, h.onPaymentFailed)
	bus.Subscribe(events.PaymentRefundedEvent, h.onPaymentRefunded)
	bus.Subscribe(events.EnrollmentCreatedEvent, h.onEnrollmentCreated)
	bus.Subscribe(events.CertificateIssuedEvent, h.onCertificateIssued)
}

func (h *EventHandler) onPaymentCompleted(ctx context.Context, event events.Event) {
	e, ok := event.(events.PaymentCompleted)
	if !ok {
		return
	}
	h.dispatcher.Enqueue(Job{
		Name: fmt.Sprintf("payment_completed:%s", e.PaymentID),
		Run: func(ctx context.Context) {
			email, err := h.users.UserEmail(ctx, e.UserID)
			if err != nil {
				h.logger.Error("notification: email lookup failed", "user_id", e.UserID, "error", err)
				return
			}
			if e.Amount > 0 {
				if err := h.emails.SendPaymentConfirmation(email, e.PaymentID, e.Amount, e.Currency); err != nil {
					h.logger.Error("notification: payment confirmation email failed",
						"payment_id", e.PaymentID, "error", err)
				}
			}
			if err := h.notifier.Notify(ctx, e.UserID, "payment.completed", map[string]interface{}{
				"payment_id": e.PaymentID,
				"amount":     e.Amount,
			}); err != nil {
				h.logger.Error("notification: dispatch failed", "payment_id", e.PaymentID, "error", err)
			}
		},
	})
}

func (h *EventHandler) onPaymentFailed(ctx context.Context, event events.Event) {
	e, ok := event.(events.PaymentFailed)
	if !ok {
		return
	}
	h.dispatcher.Enqueue(Job{
		Name: fmt.Sprintf("payment_failed:%s", e.PaymentID),
		Run: func(ctx context.Context) {
			email, err := h.users.UserEmail(ctx, e.UserID)
			if err != nil {
				h.logger.Error("notification: email lookup failed", "user_id", e.UserID, "error", err)
				return
			}
			if err := h.emails.SendPaymentFailed(email, e.PaymentID, e.Reason); err != nil {
				h.logger.Error("notification: payment failed email failed",
					"payment_id", e.PaymentID, "error", err)
			}
		},
	})
}

func (h *EventHandler) onPaymentRefunded(ctx context.Context, event events.Event) {
	e, ok := event.(events.PaymentRefunded)
	if !ok {
		return
	}
	h.dispatcher.Enqueue(Job{
		Name: fmt.Sprintf("payment_refunded:%s", e.PaymentID),
		Run: func(ctx context.Context) {
			if err := h.notifier.Notify(ctx, e.UserID, "payment.refunded", map[string]interface{}{
				"payment_id": e.PaymentID,
				"amount":     e.Amount,
			}); err != nil {
				h.logger.Error("notification: dispatch failed", "payment_id", e.PaymentID, "error", err)
			}
		},
	})
}

func (h *EventHandler) onEnrollmentCreated(ctx context.Context, event events.Event) {
	e, ok := event.(events.EnrollmentCreated)
	if !ok {
		return
	}
	h.dispatcher.Enqueue(Job{
		Name: fmt.Sprintf("enrollment_created:%d:%d", e.UserID, e.CourseID),
		Run: func(ctx context.Context) {
			email, err := h.users.UserEmail(ctx, e.UserID)
			if err != nil {
				h.logger.Error("notification: email lookup failed", "user_id", e.UserID, "error", err)
				return
			}
			title, err := h.titles.CourseTitle(ctx, e.CourseID)
			if err != nil {
				h.logger.Error("notification: title lookup failed", "course_id", e.CourseID, "error", err)
				return
			}
			if err := h.emails.SendEnrollmentWelcome(email, title); err != nil {
				h.logger.Error("notification: enrollment email failed",
					"user_id", e.UserID, "course_id", e.CourseID, "error", err)
			}
		},
	})
}

func (h *EventHandler) onCertificateIssued(ctx context.Context, event events.Event) {
	e, ok := event.(events.CertificateIssued)
	if !ok {
		return
	}
	h.dispatcher.Enqueue(Job{
		Name: fmt.Sprintf("certificate_issued:%s", e.Code),
		Run: func(ctx context.Context) {
			email, err := h.users.UserEmail(ctx, e.UserID)
			if err != nil {
				h.logger.Error("notification: email lookup failed", "user_id", e.UserID, "error", err)
				return
			}
			title, err := h.titles.CourseTitle(ctx, e.CourseID)
			if err != nil {
				h.logger.Error("notification: title lookup failed", "course_id", e.CourseID, "error", err)
				return
			}
			if err := h.emails.SendCertificateIssued(email, title, e.Code); err != nil {
				h.logger.Error("notification: certificate email failed",
					"code", e.Code, "error", err)
			}
		},
	})
}
