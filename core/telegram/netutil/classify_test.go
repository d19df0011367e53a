package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), "timeout"},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.invalid"}, "dns"},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, "dial"},
		{"url timeout", &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}, "timeout"},
		{"conflict", &tele.Error{Code: 409, Description: "Conflict: terminated by other getUpdates request"}, "conflict"},
		{"5xx text", errors.New("telegram: Bad Gateway (502)"), "http_5xx"},
		{"4xx text", errors.New("telegram: chat not found (400)"), "http_4xx"},
		{"other", errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(&tele.Error{Code: 409}))
	assert.True(t, IsConflict(errors.New("telegram: Conflict: terminated by other getUpdates request; make sure that only one bot instance is running (409)")))
	assert.True(t, IsConflict(fmt.Errorf("poll: %w", errors.New("Conflict: terminated by other getUpdates request"))))
	assert.False(t, IsConflict(errors.New("telegram: Bad Gateway (502)")))
	assert.False(t, IsConflict(nil))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(&url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.False(t, ShouldRetry(errors.New("telegram: chat not found (400)")))
	assert.False(t, ShouldRetry(nil))
	assert.True(t, ShouldRetry(fmt.Errorf("read: %w", syscall.ECONNRESET)))
	assert.False(t, ShouldRetry(&url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}))
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAbb-cc_DD/getUpdates": EOF`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/getUpdates": EOF`, Redact(err))
}
