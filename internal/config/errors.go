package config

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err comes from a unique constraint or
// index. GORM translates most driver errors when TranslateError is on; the
// pq code and message checks cover statements issued through database/sql.
func IsUniqueViolation(err error) bool {
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
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
