package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad field"), http.StatusBadRequest},
		{BadRequest("bad payload"), http.StatusBadRequest},
		{PermissionDenied("nope"), http.StatusForbidden},
		{InvalidTransition("illegal edge"), http.StatusUnprocessableEntity},
		{Blocked("open issues"), http.StatusUnprocessableEntity},
		{Conflict("stale"), http.StatusConflict},
		{NotFound("gone"), http.StatusNotFound},
		{LimitExceeded("too many"), http.StatusTooManyRequests},
		{Configuration("diverged"), http.StatusInternalServerError},
		{Internal("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestGRPCCodes(t *testing.T) {
	assert.Equal(t, codes.FailedPrecondition, Blocked("open issues").GRPCCode())
	assert.Equal(t, codes.Aborted, Conflict("stale").GRPCCode())
	assert.Equal(t, codes.ResourceExhausted, LimitExceeded("plan").GRPCCode())
	assert.Equal(t, codes.Internal, Configuration("diverged").GRPCCode())
}

func TestDetailsAndCause(t *testing.T) {
	cause := errors.New("row locked")
	err := Conflict("stale write",
		WithCause(cause),
		WithDetail("expected", "qa"),
		WithDetails(map[string]any{"current": "packing"}),
	)

	assert.Equal(t, "qa", err.Details()["expected"])
	assert.Equal(t, "packing", err.Details()["current"])
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "row locked")
}

func TestFrom(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, From(nil))
	})

	t.Run("app errors survive wrapping", func(t *testing.T) {
		original := NotFound("missing")
		wrapped := fmt.Errorf("handler: %w", original)
		assert.Equal(t, KindNotFound, From(wrapped).Kind())
	})

	t.Run("foreign errors become internal", func(t *testing.T) {
		appErr := From(errors.New("disk full"))
		assert.Equal(t, KindInternal, appErr.Kind())
		assert.Contains(t, appErr.Error(), "disk full")
	})
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Blocked("held"))

	assert.True(t, IsKind(err, KindBlocked))
	assert.False(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(errors.New("plain"), KindInternal))
}
