package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"marked transient", Transient(errors.New("boom")), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", Transient(errors.New("boom"))), true},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"net timeout", timeoutErr{}, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"dns temporary", &net.DNSError{IsTemporary: true}, true},
		{"dns permanent", &net.DNSError{IsNotFound: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransient_NilPassthrough(t *testing.T) {
	assert.NoError(t, Transient(nil))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	assert.True(t, IsTransientHTTPStatus(http.StatusTooManyRequests))
	assert.True(t, IsTransientHTTPStatus(http.StatusBadGateway))
	assert.True(t, IsTransientHTTPStatus(http.StatusServiceUnavailable))
	assert.True(t, IsTransientHTTPStatus(http.StatusGatewayTimeout))
	assert.True(t, IsTransientHTTPStatus(http.StatusInternalServerError))

	assert.False(t, IsTransientHTTPStatus(http.StatusOK))
	assert.False(t, IsTransientHTTPStatus(http.StatusBadRequest))
	assert.False(t, IsTransientHTTPStatus(http.StatusUnauthorized))
	assert.False(t, IsTransientHTTPStatus(http.StatusNotFound))
}
