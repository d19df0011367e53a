package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/cedulabot/core/logger"
	"github.com/m3rciful/cedulabot/core/telegram/state"
	"github.com/m3rciful/cedulabot/internal/delivery"
	"github.com/m3rciful/cedulabot/internal/lookup"
)

// DefaultIdleTimeout is how long a session waits for the identification number.
const DefaultIdleTimeout = 60 * time.Second

// Options configures a Machine.
type Options struct {
	Lookup Lookuper
	Access Authorizer
	// Sessions defaults to an in-memory store.
	Sessions    state.Manager
	IdleTimeout time.Duration
	// Now defaults to time.Now; tests inject a fake clock.
	Now func() time.Time
	// OnResult observes every dispatched event, including janitor expiries.
	OnResult func(Result)
}

// Machine is the conversation state machine. It is safe for concurrent use;
// events for the same session are processed one at a time.
type Machine struct {
	lookup   Lookuper
	access   Authorizer
	sessions state.Manager
	idle     time.Duration
	now      func() time.Time
	onResult func(Result)
	locks    *state.KeyedMutex
	table    map[transitionKey]transition
}

// New builds a Machine. Lookup is required.
func New(opts Options) (*Machine, error) {
	if opts.Lookup == nil {
		return nil, errors.New("conversation: lookup is required")
	}
	if opts.Sessions == nil {
		opts.Sessions = state.NewMemoryManager()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Machine{
		lookup:   opts.Lookup,
		access:   opts.Access,
		sessions: opts.Sessions,
		idle:     opts.IdleTimeout,
		now:      opts.Now,
		onResult: opts.OnResult,
		locks:    state.NewKeyedMutex(),
	}
	m.table = m.transitions()
	return m, nil
}

// State returns the current state of the session at key, applying expiry.
func (m *Machine) State(key state.Key) state.State {
	sess, ok := m.sessions.Get(key)
	if !ok || sess.Expired(m.now()) {
		return StateIdle
	}
	return sess.State
}

// turn is the context a transition runs with.
type turn struct {
	in      Input
	replier Replier
	branch  delivery.Branch
	cause   error
}

// Dispatch feeds one event to the session at in.Key and returns what happened.
// A session whose deadline passed is first expired silently, and the event is
// then handled as if no session existed.
func (m *Machine) Dispatch(ctx context.Context, in Input, r Replier) Result {
	unlock := m.locks.Lock(in.Key)
	defer unlock()

	start := time.Now()
	now := m.now()
	sess, ok := m.sessions.Get(in.Key)
	if ok && sess.Expired(now) {
		m.expire(ctx, in.Key)
		sess = state.Session{State: StateIdle}
	}

	res := Result{From: sess.State, To: sess.State, Event: in.Event, Outcome: OutcomeIgnored}
	tr, found := m.table[transitionKey{from: sess.State, event: in.Event}]
	if found {
		t := &turn{in: in, replier: r}
		res.To, res.Outcome = tr(ctx, t)
		res.Branch, res.Cause = t.branch, t.cause
		m.store(in.Key, sess, res, now)
	}

	m.report(ctx, in.Key, res, logger.Took(start))
	return res
}

func (m *Machine) store(key state.Key, prev state.Session, res Result, now time.Time) {
	if res.To == StateIdle {
		m.sessions.Delete(key)
		return
	}
	startedAt := prev.StartedAt
	if res.From != res.To || res.Event == EventEntry {
		startedAt = now
	}
	m.sessions.Put(key, state.Session{
		State:     res.To,
		StartedAt: startedAt,
		Deadline:  now.Add(m.idle),
	})
}

// Sweep expires every session whose deadline has passed and returns how many
// were removed. A janitor calls it periodically so abandoned sessions do not
// linger until their user writes again.
func (m *Machine) Sweep(ctx context.Context) int {
	// A session whose event is being handled belongs to that handler; it
	// checks the deadline itself.
	keys := m.sessions.Sweep(m.now(), m.locks.Busy)
	for _, key := range keys {
		m.report(ctx, key, Result{
			From:    StateAwaitingInput,
			To:      StateIdle,
			Event:   EventTimeout,
			Outcome: OutcomeExpired,
		}, 0)
	}
	return len(keys)
}

func (m *Machine) expire(ctx context.Context, key state.Key) {
	tr := m.table[transitionKey{from: StateAwaitingInput, event: EventTimeout}]
	to, outcome := tr(ctx, &turn{in: Input{Key: key, Event: EventTimeout}})
	m.sessions.Delete(key)
	m.report(ctx, key, Result{From: StateAwaitingInput, To: to, Event: EventTimeout, Outcome: outcome}, 0)
}

func (m *Machine) report(ctx context.Context, key state.Key, res Result, took time.Duration) {
	if m.onResult != nil {
		m.onResult(res)
	}

	level := slog.LevelInfo
	status := "ok"
	switch res.Outcome {
	case OutcomeIgnored:
		level, status = slog.LevelDebug, "skip"
	case OutcomeConnectionError, OutcomeDeliveryFailed:
		level, status = slog.LevelWarn, "fail"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("from_state", string(res.From)),
		slog.String("to_state", string(res.To)),
		slog.String("trigger", string(res.Event)),
		slog.String("outcome", string(res.Outcome)),
		slog.Int64("chat_id", key.ChatID),
		slog.Int64("user_id", key.UserID),
	}
	if res.Branch != "" {
		attrs = append(attrs, slog.String("delivery", string(res.Branch)))
	}
	if res.Cause != nil {
		attrs = append(attrs, slog.String("err", res.Cause.Error()))
	}
	if took > 0 {
		attrs = append(attrs, slog.Duration("duration", took))
	}
	logger.LogEvent(ctx, logger.Conv, level, "conversation.transition", attrs...)
}

// runLookup performs the lookup and delivery for a validated document.
func (m *Machine) runLookup(ctx context.Context, t *turn, document string) Outcome {
	req, err := m.lookup.NewRequest(document)
	if err != nil {
		t.cause = fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		m.send(ctx, t, t.replier.SendText(ctx, MsgInvalidFormat, delivery.ModePlain))
		return OutcomeInvalidFormat
	}

	m.send(ctx, t, t.replier.SendText(ctx, fmt.Sprintf(msgProgress, req.Document()), delivery.ModePlain))

	resp, err := m.lookup.Lookup(ctx, req)
	if err != nil {
		t.cause = err
		m.send(ctx, t, t.replier.SendText(ctx, fmt.Sprintf(msgConnectionError, err.Error()), delivery.ModePlain))
		return OutcomeConnectionError
	}

	payload := delivery.Format(resp, req.Document())
	t.branch = payload.Branch
	if err := delivery.Deliver(ctx, payload, t.replier); err != nil {
		t.cause = err
		return OutcomeDeliveryFailed
	}
	return OutcomeDelivered
}

// send records a failed informational reply without changing the outcome.
func (m *Machine) send(ctx context.Context, t *turn, err error) {
	if err == nil {
		return
	}
	logger.LogEvent(ctx, logger.Conv, slog.LevelWarn, "conversation.reply",
		slog.String("status", "fail"),
		slog.String("trigger", string(t.in.Event)),
		slog.String("err", err.Error()),
	)
}

var _ Lookuper = (*lookup.Client)(nil)
