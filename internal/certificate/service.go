package certificate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	errors "github.com/frahmantamala/course-marketplace/internal"
	"github.com/frahmantamala/course-marketplace/internal/core/common/database"
	"github.com/frahmantamala/course-marketplace/internal/core/datamodel/certificate"
	"github.com/frahmantamala/course-marketplace/internal/core/events"
)

const maxCodeAttempts = 5

type RepositoryAPI interface {
	Create(ctx context.Context, cert *certificate.Certificate) error
	GetByCode(ctx context.Context, code string) (*certificate.Certificate, error)
	GetForCourse(ctx context.Context, userID, courseID int64) (*certificate.Certificate, error)
	ListForUser(ctx context.Context, userID int64) ([]certificate.Certificate, error)
	Revoke(ctx context.Context, id int64, reason string, revokedAt time.Time) error
	CompletedWithoutCertificate(ctx context.Context, limit int) ([]certificate.CompletionGap, error)
}

// DirectoryAPI resolves recipient names for the issuance snapshot.
type DirectoryAPI interface {
	UserName(ctx context.Context, userID int64) (string, error)
}

// TitlesAPI resolves course titles for the issuance snapshot.
type TitlesAPI interface {
	CourseTitle(ctx context.Context, courseID int64) (string, error)
}

type Service struct {
	repo     RepositoryAPI
	users    DirectoryAPI
	titles   TitlesAPI
	eventBus events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo RepositoryAPI, users DirectoryAPI, titles TitlesAPI, eventBus events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		titles:   titles,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// IssueForCompletion creates the certificate for a finished course. The
// unique (user, course) index makes reissuing a no-op; the unique code index
// is handled by regenerating on collision, bounded so a broken random source
// cannot loop forever.
func (s *Service) IssueForCompletion(ctx context.Context, userID, courseID int64, completedAt time.Time) error {
	name, err := s.users.UserName(ctx, userID)
	if err != nil {
		return err
	}
	title, err := s.titles.CourseTitle(ctx, courseID)
	if err != nil {
		return err
	}

	var cert *certificate.Certificate
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		cert = &certificate.Certificate{
			Code:          newCode(),
			UserID:        userID,
			CourseID:      courseID,
			RecipientName: name,
			CourseTitle:   title,
			CompletedAt:   completedAt,
			IssuedAt:      s.now(),
		}
		err = s.repo.Create(ctx, cert)
		if err == nil {
			break
		}
		if !database.IsUniqueViolation(err) {
			return err
		}
		// A duplicate (user, course) means the certificate already exists.
		if existing, getErr := s.repo.GetForCourse(ctx, userID, courseID); getErr == nil && existing != nil {
			return nil
		}
	}
	if err != nil {
		return errors.NewInternalError("could not allocate certificate code", err)
	}

	s.logger.Info("certificate issued",
		"code", cert.Code,
		"user_id", userID,
		"course_id", courseID)
	s.eventBus.Publish(ctx, events.CertificateIssued{
		CertificateID: cert.ID,
		Code:          cert.Code,
		UserID:        userID,
		CourseID:      courseID,
		IssuedAt:      cert.IssuedAt,
	})
	return nil
}

// GetByCode serves public certificate verification. Revoked certificates are
// returned with their revocation visible, not hidden.
func (s *Service) GetByCode(ctx context.Context, code string) (*certificate.Certificate, error) {
	return s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]certificate.Certificate, error) {
	return s.repo.ListForUser(ctx, userID)
}

// RevokeForCourse soft-revokes the certificate tied to an enrollment, if one
// was issued. Missing certificates are not an error here.
func (s *Service) RevokeForCourse(ctx context.Context, userID, courseID int64, reason string) error {
	cert, err := s.repo.GetForCourse(ctx, userID, courseID)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeCertificateNotFound {
			return nil
		}
		return err
	}
	if cert.IsRevoked() {
		return nil
	}

	revokedAt := s.now()
	if err := s.repo.Revoke(ctx, cert.ID, reason, revokedAt); err != nil {
		return err
	}

	s.eventBus.Publish(ctx, events.CertificateRevoked{
		CertificateID: cert.ID,
		Code:          cert.Code,
		UserID:        userID,
		CourseID:      courseID,
		Reason:        reason,
		RevokedAt:     revokedAt,
	})
	return nil
}

// SweepMissing issues certificates for completed enrollments that have none.
// Run periodically so a crash between completion and issuance heals itself.
func (s *Service) SweepMissing(ctx context.Context, limit int) (int, error) {
	gaps, err := s.repo.CompletedWithoutCertificate(ctx, limit)
	if err != nil {
		return 0, err
	}
	issued := 0
	for _, gap := range gaps {
		if err := s.IssueForCompletion(ctx, gap.UserID, gap.CourseID, gap.CompletedAt); err != nil {
			s.logger.Error("SweepMissing: issuance failed",
				"user_id", gap.UserID,
				"course_id", gap.CourseID,
				"error", err)
			continue
		}
		issued++
	}
	return issued, nil
}

func newCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CERT-" + strings.ToUpper(raw[:12])
}
