package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDigits(t *testing.T) {
	for _, ok := range []string{"0", "12345678", "0012"} {
		assert.True(t, IsDigits(ok), ok)
	}
	for _, bad := range []string{"", "abc123", "12 34", "12.3", "-1", "١٢٣", "²"} {
		assert.False(t, IsDigits(bad), bad)
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("  12345678\n", "tx", "1")
	require.NoError(t, err)
	assert.Equal(t, "12345678", req.Document())

	form := req.Form()
	assert.Equal(t, "tx", form.Get("transactionID"))
	assert.Equal(t, "12345678", form.Get("documento"))
	assert.Equal(t, "1", form.Get("tipoDocumento"))

	_, err = NewRequest("abc123", "tx", "1")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestClientLookupPostsForm(t *testing.T) {
	var (
		mu   sync.Mutex
		seen *http.Request
		form map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		seen = r
		form = map[string]string{
			"transactionID": r.PostForm.Get("transactionID"),
			"documento":     r.PostForm.Get("documento"),
			"tipoDocumento": r.PostForm.Get("tipoDocumento"),
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"nombre":"Juan"}`))
	}))
	defer srv.Close()

	var outcomes []string
	c, err := NewClient(Options{
		URL:      srv.URL,
		Auth:     "secret-token",
		Observer: func(outcome string, _ time.Duration) { outcomes = append(outcomes, outcome) },
	})
	require.NoError(t, err)

	req, err := c.NewRequest("12345678")
	require.NoError(t, err)
	resp, err := c.Lookup(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"nombre":"Juan"}`, resp.Body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "application/x-www-form-urlencoded; charset=UTF-8", seen.Header.Get("Content-Type"))
	assert.Equal(t, "secret-token", seen.Header.Get("Authorization"))
	assert.Equal(t, map[string]string{
		"transactionID": "1759530011497",
		"documento":     "12345678",
		"tipoDocumento": "1",
	}, form)
	assert.Equal(t, []string{"ok"}, outcomes)
}

func TestClientLookupErrorStatusIsAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(Options{URL: srv.URL})
	require.NoError(t, err)
	req, _ := c.NewRequest("1")

	resp, err := c.Lookup(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Empty(t, resp.Body)
}

func TestClientLookupTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var outcome string
	c, err := NewClient(Options{
		URL:      srv.URL,
		Timeout:  50 * time.Millisecond,
		Observer: func(o string, _ time.Duration) { outcome = o },
	})
	require.NoError(t, err)
	req, _ := c.NewRequest("12345678")

	_, err = c.Lookup(context.Background(), req)
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.True(t, connErr.Timeout())
	assert.Equal(t, "timeout", outcome)
}

func TestClientLookupConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Options{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	req, _ := c.NewRequest("12345678")

	_, err = c.Lookup(context.Background(), req)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, strings.Contains(err.Error(), "connect") || strings.Contains(err.Error(), "refused"), err.Error())
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}
