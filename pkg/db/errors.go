package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const sqlStateUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure. When
// names are given only violations naming one of them match: postgres is
// checked against the constraint name, sqlite against its "table.column" text.
func IsUniqueViolation(err error, names ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation && matchesConstraint(pgErr.ConstraintName, names)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlStateUniqueViolation && matchesConstraint(pqErr.Constraint, names)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return anyName(names)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if anyName(names) {
		return true
	}
	for _, name := range names {
		if name != "" && strings.Contains(msg, name) {
			return true
		}
	}
	return false
}

// anyName is true when no specific constraint was requested.
func anyName(names []string) bool {
	for _, name := range names {
		if name != "" {
			return false
		}
	}
	return true
}

func matchesConstraint(actual string, names []string) bool {
	if anyName(names) {
		return true
	}
	for _, name := range names {
		if name != "" && actual == name {
			return true
		}
	}
	return false
}

// IsNotFound reports gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
