package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatusAndOperational(t *testing.T) {
	tests := []struct {
		kind        Kind
		status      int
		operational bool
	}{
		{KindNotFound, http.StatusNotFound, true},
		{KindConflict, http.StatusConflict, true},
		{KindValidation, http.StatusBadRequest, true},
		{KindUnauthorized, http.StatusUnauthorized, true},
		{KindExternalService, http.StatusServiceUnavailable, false},
		{KindDatabase, http.StatusInternalServerError, false},
		{KindInternal, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.StatusCode())
			assert.Equal(t, tt.operational, tt.kind.Operational())
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("store.CreateOrder: %w", Conflict(map[string]string{"client_order_id": "c1"}, "duplicate %s", "c1"))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))

	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "c1", appErr.Fields["client_order_id"])
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestDatabaseErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Database("failed to insert order", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to insert order: connection reset", err.Error())
	assert.False(t, err.Operational())
}
