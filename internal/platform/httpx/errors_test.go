package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bagline-erp/bagline/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", shared.NotFound("batch x not found"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", shared.Validation("quantity must be positive"), http.StatusBadRequest, "VALIDATION"},
		{"insufficient", &shared.InsufficientQuantityError{Requested: 5, Available: 3}, http.StatusBadRequest, "INSUFFICIENT_QUANTITY"},
		{"hold", shared.Hold("batch x is on hold"), http.StatusBadRequest, "HOLD"},
		{"duplicate", shared.DuplicateKey("code exists"), http.StatusBadRequest, "DUPLICATE_KEY"},
		{"invariant", shared.Invariant("restore exceeds starting"), http.StatusBadRequest, "INVARIANT_VIOLATION"},
		{"conflict", shared.Conflict(nil, "lost the race"), http.StatusConflict, "CONFLICT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)

			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			require.False(t, env.Success)
			require.Equal(t, tc.kind, env.ErrorKind)
			require.Equal(t, tc.err.Error(), env.Message)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "internal error", env.Message)
}
