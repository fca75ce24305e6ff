package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation. The
// fulfiller relies on this being distinguishable from other failures: an
// insert that hits the (user, course) unique index means "already granted",
// not an error. Covers postgres, gorm's translated error, and the sqlite
// driver used by the repository test suites.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
