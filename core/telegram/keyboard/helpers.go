// Package keyboard builds reply markups used by conversations.
package keyboard

import tele "gopkg.in/telebot.v4"

// CancelPayload is the callback payload carried by cancel buttons.
const CancelPayload = "cancel"

const defaultCancelButtonText = "❌ Cancelar"

// CancelButton returns an inline cancel button routed to unique.
// An empty label selects the default text.
func CancelButton(markup *tele.ReplyMarkup, unique, label string) tele.Btn {
	if label == "" {
		label = defaultCancelButtonText
	}
	return markup.Data(label, unique, CancelPayload)
}

// SingleCancelMarkup creates an inline keyboard with a single cancel button.
func SingleCancelMarkup(unique, label string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btn := CancelButton(markup, unique, label)
	markup.Inline(markup.Row(btn))
	return markup
}
