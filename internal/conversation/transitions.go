package conversation

import (
	"context"
	"strings"

	"github.com/m3rciful/cedulabot/core/telegram/state"
	"github.com/m3rciful/cedulabot/internal/delivery"
	"github.com/m3rciful/cedulabot/internal/lookup"
)

type transitionKey struct {
	from  state.State
	event Event
}

// transition runs the guard and action of one table row and returns the
// next state.
type transition func(ctx context.Context, t *turn) (state.State, Outcome)

// transitions is the complete table. Pairs that are absent, such as text or
// cancel without a session, are ignored by Dispatch.
func (m *Machine) transitions() map[transitionKey]transition {
	return map[transitionKey]transition{
		{StateIdle, EventEntry}: m.begin,
		// A new entry command restarts the dialogue with a fresh prompt.
		{StateAwaitingInput, EventEntry}:   m.begin,
		{StateAwaitingInput, EventText}:    m.receive,
		{StateAwaitingInput, EventCancel}:  m.cancel,
		{StateAwaitingInput, EventTimeout}: discard,
	}
}

func (m *Machine) authorized(t *turn) bool {
	return m.access == nil || m.access.IsAuthorized(t.in.Key.UserID)
}

func (m *Machine) deny(ctx context.Context, t *turn) (state.State, Outcome) {
	t.cause = ErrNotAuthorized
	m.send(ctx, t, t.replier.SendText(ctx, MsgNotAuthorized, delivery.ModePlain))
	return StateIdle, OutcomeDenied
}

func (m *Machine) begin(ctx context.Context, t *turn) (state.State, Outcome) {
	if !m.authorized(t) {
		return m.deny(ctx, t)
	}
	m.send(ctx, t, t.replier.Prompt(ctx, MsgPrompt))
	return StateAwaitingInput, OutcomePrompted
}

func (m *Machine) receive(ctx context.Context, t *turn) (state.State, Outcome) {
	if !m.authorized(t) {
		return m.deny(ctx, t)
	}
	document := strings.TrimSpace(t.in.Text)
	if !lookup.IsDigits(document) {
		t.cause = ErrInvalidFormat
		m.send(ctx, t, t.replier.SendText(ctx, MsgInvalidFormat, delivery.ModePlain))
		return StateAwaitingInput, OutcomeInvalidFormat
	}
	if outcome := m.runLookup(ctx, t, document); outcome != OutcomeInvalidFormat {
		return StateIdle, outcome
	}
	return StateAwaitingInput, OutcomeInvalidFormat
}

func (m *Machine) cancel(ctx context.Context, t *turn) (state.State, Outcome) {
	m.send(ctx, t, t.replier.SendText(ctx, MsgCancelled, delivery.ModePlain))
	return StateIdle, OutcomeCancelled
}

// discard ends an idle session without telling the user.
func discard(context.Context, *turn) (state.State, Outcome) {
	return StateIdle, OutcomeExpired
}
