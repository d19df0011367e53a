// Package conversation runs the lookup dialogue as an explicit state machine.
//
// A session starts with the entry command, waits for an identification
// number, and ends after delivering the result, on cancel, on denial, or
// when it sits idle past its deadline. Every (state, event) pair the
// dialogue reacts to is listed in one transition table; any other pair is
// ignored without a reply.
package conversation

import (
	"context"
	"errors"

	"github.com/m3rciful/cedulabot/core/telegram/state"
	"github.com/m3rciful/cedulabot/internal/delivery"
	"github.com/m3rciful/cedulabot/internal/lookup"
)

// States of a session. Idle means there is no session at all.
const (
	StateIdle          = state.StateIdle
	StateAwaitingInput state.State = "awaiting_input"
)

// Event is an input to the machine.
type Event string

const (
	EventEntry   Event = "entry_command"
	EventText    Event = "text"
	EventCancel  Event = "cancel_command"
	EventTimeout Event = "timeout"
)

// Outcome describes what a dispatched event did.
type Outcome string

const (
	OutcomePrompted        Outcome = "prompted"
	OutcomeDenied          Outcome = "denied"
	OutcomeInvalidFormat   Outcome = "invalid_format"
	OutcomeDelivered       Outcome = "delivered"
	OutcomeConnectionError Outcome = "connection_error"
	OutcomeDeliveryFailed  Outcome = "delivery_failed"
	OutcomeCancelled       Outcome = "cancelled"
	OutcomeExpired         Outcome = "expired"
	OutcomeIgnored         Outcome = "ignored"
)

var (
	// ErrNotAuthorized marks a denial by the access policy.
	ErrNotAuthorized = errors.New("conversation: user not authorized")
	// ErrInvalidFormat marks input that is not a digit-only identification number.
	ErrInvalidFormat = errors.New("conversation: invalid identification number")
)

// Input is one event for one session.
type Input struct {
	Key   state.Key
	Event Event
	// Text is the message body for EventText.
	Text string
}

// Result reports a dispatched event. Cause is set for denials, invalid
// input, and failures; it is informational, the user has already been told.
type Result struct {
	From    state.State
	To      state.State
	Event   Event
	Outcome Outcome
	Branch  delivery.Branch
	Cause   error
}

// Replier sends messages to the chat the session belongs to.
type Replier interface {
	delivery.Replier
	// Prompt sends text with an inline cancel button.
	Prompt(ctx context.Context, text string) error
}

// Lookuper performs the identification lookup.
type Lookuper interface {
	NewRequest(document string) (lookup.Request, error)
	Lookup(ctx context.Context, req lookup.Request) (*lookup.Response, error)
}

// Authorizer is the access policy.
type Authorizer interface {
	IsAuthorized(userID int64) bool
}
