package enrollment

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/enrollment"
)

type RepositoryAPI interface {
	GetForUser(ctx context.Context, userID, courseID int64) (*enrollment.Enrollment, error)
	ListForUser(ctx context.Context, userID int64) ([]enrollment.Enrollment, error)
	UpdateProgress(ctx context.Context, userID, courseID int64, percent float64, completedAt *time.Time) error
}

// CertificateIssuer issues a completion certificate exactly once per
// (user, course) pair.
type CertificateIssuer interface {
	IssueForCompletion(ctx context.Context, userID, courseID int64, completedAt time.Time) error
}

type Service struct {
	repo   RepositoryAPI
	certs  CertificateIssuer
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, certs CertificateIssuer, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		certs:  certs,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]enrollment.Enrollment, error) {
	return s.repo.ListForUser(ctx, userID)
}

// UpdateProgress records course progress for an enrolled user. Crossing 100%
// stamps the completion time and issues the certificate. Progress never moves
// backwards and completion is recorded only once.
func (s *Service) UpdateProgress(ctx context.Context, userID, courseID int64, percent float64) error {
	if percent < 0 || percent > 100 {
		return errors.NewValidationFieldError("progress_percent", "must be between 0 and 100", errors.ErrCodeValidationFailed)
	}

	current, err := s.repo.GetForUser(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if percent <= current.ProgressPercent {
		return nil
	}

	var completedAt *time.Time
	if percent >= 100 && current.CompletedAt == nil {
		now := s.now()
		completedAt = &now
	}

	if err := s.repo.UpdateProgress(ctx, userID, courseID, percent, completedAt); err != nil {
		return err
	}

	if completedAt != nil {
		if err := s.certs.IssueForCompletion(ctx, userID, courseID, *completedAt); err != nil {
			s.logger.Error("UpdateProgress: certificate issuance failed",
				"user_id", userID,
				"course_id", courseID,
				"error", err)
			return err
		}
	}
	return nil
}
