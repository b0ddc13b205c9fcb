package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
)

// MapError turns "no such row" conditions into errs.ErrNotFound, keeping the
// original error in the chain. Anything else is returned unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrNotFound, err)
	}
	if IsForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrNotFound, err)
	}
	return err
}

// IsForeignKeyViolation detects a missing parent row on insert.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "23503"
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}
