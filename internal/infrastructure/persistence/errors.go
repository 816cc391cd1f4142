package persistence

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// isUniqueViolation reports whether err is a storage-level uniqueness
// violation. The dialects in play surface this differently: gorm translates
// some drivers to ErrDuplicatedKey, lib/pq reports SQLSTATE 23505, and the
// sqlite driver used in tests only exposes a message. All three map to the
// same answer because callers treat a duplicate insert as "already exists",
// never as a fault.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
