// Package state keeps short-lived conversation sessions for Telegram bots.
//
// Sessions are keyed by chat and user, carry an idle deadline, and live only
// in memory. Callers own the state machine; this package only stores where
// each conversation currently is and serializes work per key.
package state
