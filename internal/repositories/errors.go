package repositories

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"caffemacao/pkg/apperror"
)

// translate maps gorm errors onto the application error kinds.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound("%s not found", what)
	case isDuplicate(err):
		return apperror.Conflict("%s already exists", what)
	default:
		return apperror.Internal(err, fmt.Sprintf("failed to access %s", what))
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page    int
	PerPage int
}

// Offset is the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
