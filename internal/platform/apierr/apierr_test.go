package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
)

func TestFromMapsSentinels(t *testing.T) {
	nf := From(fmt.Errorf("canvas %s: %w", "x", errs.ErrNotFound), "")
	assert.Equal(t, http.StatusNotFound, nf.Status)

	bad := From(fmt.Errorf("topic: %w", errs.ErrInvalidArgument), "")
	assert.Equal(t, http.StatusBadRequest, bad.Status)

	other := From(errors.New("disk full"), "storage_error")
	assert.Equal(t, http.StatusInternalServerError, other.Status)
	assert.Equal(t, "storage_error", other.Code)

	orig := BadRequest("invalid_topic", errors.New("topic required"))
	assert.Same(t, orig, From(fmt.Errorf("wrapped: %w", orig), ""))
}
