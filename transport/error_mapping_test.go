package transport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayorajesus182/vaultstream-banking/domain"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
)

func TestRespondError_StatusMapping(t *testing.T) {
	adapter := newTestAdapter(t)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "not found",
			err:      domain.ErrAccountNotFound,
			expected: http.StatusNotFound,
		},
		{
			name:     "rule violation",
			err:      domain.RuleViolation("account is not active"),
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "insufficient funds",
			err:      fmt.Errorf("withdraw: %w", domain.ErrInsufficientFunds),
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "status transition",
			err:      &domain.StatusTransitionError{From: domain.StatusClosed, To: domain.StatusActive},
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "concurrency conflict",
			err:      &eventsourcing.ConcurrencyError{AggregateID: "agg-1", Expected: 1, Actual: 2},
			expected: http.StatusConflict,
		},
		{
			name:     "storage failure",
			err:      &eventsourcing.StorageError{Op: "append events", Err: fmt.Errorf("connection refused")},
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			adapter.respondError(c, tt.err)
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestRespondError_InternalErrorHidesDetails(t *testing.T) {
	adapter := newTestAdapter(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	adapter.respondError(c, &eventsourcing.StorageError{Op: "query events", Err: fmt.Errorf("password=secret")})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}
