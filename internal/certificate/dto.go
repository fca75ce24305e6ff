package certificate

import (
	"time"

	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/certificate"
)

type CertificateResponse struct {
	Code          string     `json:"code"`
	RecipientName string     `json:"recipient_name"`
	CourseTitle   string     `json:"course_title"`
	CompletedAt   time.Time  `json:"completed_at"`
	IssuedAt      time.Time  `json:"issued_at"`
	Revoked       bool       `json:"revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokeReason  *string    `json:"revoke_reason,omitempty"`
}

func ToCertificateResponse(c *certificate.Certificate) *CertificateResponse {
	return &CertificateResponse{
		Code:          c.Code,
		RecipientName: c.RecipientName,
		CourseTitle:   c.CourseTitle,
		CompletedAt:   c.CompletedAt,
		IssuedAt:      c.IssuedAt,
		Revoked:       c.IsRevoked(),
		RevokedAt:     c.RevokedAt,
		RevokeReason:  c.RevokeReason,
	}
}

func ToCertificateListResponse(list []certificate.Certificate) []*CertificateResponse {
	out := make([]*CertificateResponse, 0, len(list))
	for i := range list {
		out = append(out, ToCertificateResponse(&list[i]))
	}
	return out
}
