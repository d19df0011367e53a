package telegram

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type scriptedAPI struct {
	mu      sync.Mutex
	replies []func() ([]byte, error)
	offsets []any
}

func (s *scriptedAPI) Raw(method string, payload interface{}) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if params, ok := payload.(map[string]any); ok {
		s.offsets = append(s.offsets, params["offset"])
	}
	if len(s.replies) == 0 {
		return []byte(`{"ok":true,"result":[]}`), nil
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next()
}

func TestConflictPollerDeliversUpdatesAndAdvancesOffset(t *testing.T) {
	api := &scriptedAPI{replies: []func() ([]byte, error){
		func() ([]byte, error) {
			return []byte(`{"ok":true,"result":[{"update_id":5},{"update_id":6}]}`), nil
		},
	}}
	p := &ConflictPoller{Timeout: time.Second}
	dest := make(chan tele.Update, 4)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		p.poll(api, dest, stop)
		close(done)
	}()

	first := <-dest
	second := <-dest
	assert.Equal(t, 5, first.ID)
	assert.Equal(t, 6, second.ID)

	close(stop)
	<-done

	api.mu.Lock()
	defer api.mu.Unlock()
	require.GreaterOrEqual(t, len(api.offsets), 2)
	assert.Equal(t, 1, api.offsets[0])
	assert.Equal(t, 7, api.offsets[1])
}

func TestConflictPollerReportsConflictAndReturns(t *testing.T) {
	api := &scriptedAPI{replies: []func() ([]byte, error){
		func() ([]byte, error) {
			return nil, &tele.Error{Code: 409, Description: "Conflict: terminated by other getUpdates request"}
		},
	}}

	var reported error
	p := &ConflictPoller{Timeout: time.Second, OnConflict: func(err error) { reported = err }}

	done := make(chan struct{})
	go func() {
		p.poll(api, make(chan tele.Update), make(chan struct{}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not return after conflict")
	}
	require.Error(t, reported)
	assert.True(t, errors.Is(reported, ErrTransportConflict))
}

func TestConflictPollerRetriesOtherErrors(t *testing.T) {
	api := &scriptedAPI{replies: []func() ([]byte, error){
		func() ([]byte, error) { return nil, errors.New("telegram: Bad Gateway (502)") },
		func() ([]byte, error) {
			return []byte(`{"ok":true,"result":[{"update_id":1}]}`), nil
		},
	}}
	p := &ConflictPoller{Timeout: time.Second, Backoff: time.Millisecond}
	dest := make(chan tele.Update, 1)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		p.poll(api, dest, stop)
		close(done)
	}()

	select {
	case upd := <-dest:
		assert.Equal(t, 1, upd.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not recover from a transient error")
	}
	close(stop)
	<-done
}

func TestBuildPollerModes(t *testing.T) {
	wh := BuildPoller(PollerOptions{RunMode: "webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://example.org/hook"}})
	hook, ok := wh.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", hook.Listen)

	lp := BuildPoller(PollerOptions{RunMode: "longpoll"})
	cp, ok := lp.(*ConflictPoller)
	require.True(t, ok)
	assert.Equal(t, defaultLongPollTimeout, cp.Timeout)
}
