package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("bad request")))

	assert.True(t, IsTransient(Transient(errors.New("service unavailable"), 503)))
	// Wrapping preserves the marker.
	assert.True(t, IsTransient(fmt.Errorf("fetch: %w", Transient(errors.New("x"), 429))))

	assert.True(t, IsTransient(syscall.ECONNRESET))
	assert.True(t, IsTransient(errors.New("dial tcp: i/o timeout")))
	assert.True(t, IsTransient(errors.New("lookup api.example.com: no such host")))
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := Transient(inner, 502)
	assert.Equal(t, "inner", te.Error())
	assert.True(t, errors.Is(te, inner))
	assert.Equal(t, 502, te.StatusCode)
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 404, 410, 422} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}
