package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurocanvas-backend/internal/platform/apierr"
	"github.com/yungbote/neurocanvas-backend/internal/platform/errs"
)

func TestRespondAPIError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"api error", apierr.BadRequest("invalid_topic", errors.New("topic is required")), http.StatusBadRequest, "invalid_topic"},
		{"wrapped sentinel", fmt.Errorf("canvas x: %w", errs.ErrNotFound), http.StatusNotFound, "not_found"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			RespondAPIError(c, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var env ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tc.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}
