package events

import (
	"time"
)

const (
	EnrollmentCreatedEvent  = "enrollment.created"
	EnrollmentRevokedEvent  = "enrollment.revoked"
	CertificateIssuedEvent  = "certificate.issued"
	CertificateRevokedEvent = "certificate.revoked"
)

type EnrollmentCreated struct {
	UserID     int64
	CourseID   int64
	PaymentID  string
	EnrolledAt time.Time
}

func (EnrollmentCreated) EventName() string { return EnrollmentCreatedEvent }

type EnrollmentRevoked struct {
	UserID    int64
	CourseID  int64
	PaymentID string
	RevokedAt time.Time
}

func (EnrollmentRevoked) EventName() string { return EnrollmentRevokedEvent }

type CertificateIssued struct {
	CertificateID int64
	Code          string
	UserID        int64
	CourseID      int64
	IssuedAt      time.Time
}

func (CertificateIssued) EventName() string { return CertificateIssuedEvent }

type CertificateRevoked struct {
	CertificateID int64
	Code          string
	UserID        int64
	CourseID      int64
	Reason        string
	RevokedAt     time.Time
}

func (CertificateRevoked) EventName() string { return CertificateRevokedEvent }
