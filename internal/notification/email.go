package notification

import (
	"fmt"
	"net/smtp"
	"strings"
)

type EmailConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// EmailSender sends plain text transactional mail over SMTP.
type EmailSender struct {
	cfg EmailConfig
}

func NewEmailSender(cfg EmailConfig) *EmailSender {
	return &EmailSender{cfg: cfg}
}

func (e *EmailSender) send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	auth := smtp.PlainAuth("", e.cfg.From, e.cfg.Password, e.cfg.Host)

	msg := strings.Join([]string{
		"From: " + e.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(addr, auth, e.cfg.From, []string{to}, []byte(msg))
}

func (e *EmailSender) SendPaymentConfirmation(to string, paymentID string, amount float64, currency string) error {
	subject := "Payment received"
	body := fmt.Sprintf(
		"We received your payment of %.2f %s.\n\nPayment reference: %s\n\nYour courses are ready in your library.",
		amount, currency, paymentID,
	)
	return e.send(to, subject, body)
}

func (e *EmailSender) SendPaymentFailed(to string, paymentID, reason string) error {
	subject := "Payment could not be completed"
	body := fmt.Sprintf(
		"Your payment %s could not be completed.\n\nReason: %s\n\nYou can retry from your orders page.",
		paymentID, reason,
	)
	return e.send(to, subject, body)
}

func (e *EmailSender) SendEnrollmentWelcome(to string, courseTitle string) error {
	subject := "You are enrolled"
	body := fmt.Sprintf(
		"Welcome aboard! You now have access to %q.\n\nHead to your library to start learning.",
		courseTitle,
	)
	return e.send(to, subject, body)
}

func (e *EmailSender) SendCertificateIssued(to string, courseTitle, code string) error {
	subject := "Your certificate is ready"
	body := fmt.Sprintf(
		"Congratulations on completing %q!\n\nYour certificate code is %s. Anyone can verify it on our site.",
		courseTitle, code,
	)
	return e.send(to, subject, body)
}
