package middleware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the parts of tele.Context the middleware touches.
type fakeContext struct {
	tele.Context
	store   map[string]interface{}
	sent    []interface{}
	sendErr error
}

func newFakeContext() *fakeContext {
	return &fakeContext{store: map[string]interface{}{}}
}

func (f *fakeContext) Get(key string) interface{}    { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }
func (f *fakeContext) Update() tele.Update           { return tele.Update{ID: 1} }
func (f *fakeContext) Sender() *tele.User            { return nil }
func (f *fakeContext) Chat() *tele.Chat              { return nil }
func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, what)
	return nil
}

func TestMessageMetricsMiddlewareCounts(t *testing.T) {
	fc := newFakeContext()

	var got Counters
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		require.NoError(t, c.Send("hola"))
		require.NoError(t, c.Send("elige", &tele.ReplyMarkup{}))
		require.NoError(t, c.Send(&tele.Document{FileName: "1.json"}))
		got = GetCounters(c)
		return nil
	})

	require.NoError(t, h(fc))
	assert.Equal(t, Counters{Messages: 2, Files: 1, Keyboard: true}, got)
	assert.Len(t, fc.sent, 3)
}

func TestMessageMetricsMiddlewareSkipsFailedSends(t *testing.T) {
	fc := newFakeContext()
	fc.sendErr = errors.New("telegram: chat not found (400)")

	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("hola")
		return nil
	})

	require.NoError(t, h(fc))
	assert.Equal(t, Counters{}, GetCounters(fc))
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	fc := newFakeContext()
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })

	err := h(fc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
