package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError("op", nil))
	assert.ErrorIs(t, MapError("find", gorm.ErrRecordNotFound), errs.ErrNotFound)
	assert.ErrorIs(t, MapError("insert", &pgconn.PgError{Code: "23503"}), errs.ErrNotFound)
	assert.ErrorIs(t, MapError("insert", errors.New("FOREIGN KEY constraint failed")), errs.ErrNotFound)

	other := errors.New("connection refused")
	assert.Same(t, other, MapError("op", other))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "x.db?_foreign_keys=on", SQLiteDSN("x.db"))
	assert.Equal(t, "file:a?mode=memory&_foreign_keys=on", SQLiteDSN("file:a?mode=memory"))
	assert.Equal(t, "file:a?_fk=1", SQLiteDSN("file:a?_fk=1"))
}
