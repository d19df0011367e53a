package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	keyMessages = "messages"
	keyFiles    = "files"
	keyKeyboard = "kb"
)

// metricsContext wraps tele.Context to count replies, attachments, and keyboard usage.
type metricsContext struct{ tele.Context }

func (m metricsContext) count(what interface{}, opts []interface{}) {
	key := keyMessages
	if _, ok := what.(*tele.Document); ok {
		key = keyFiles
	}
	n, _ := m.Get(key).(int)
	m.Set(key, n+1)
	if hasKeyboard(opts) {
		m.Set(keyKeyboard, true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.count(what, opts)
	}
	return err
}

// Reply proxies tele.Context.Reply while updating counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.count(what, opts)
	}
	return err
}

// MessageMetricsMiddleware instruments the context so handler summaries can
// report how many messages and files a handler sent.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(keyMessages, 0)
		c.Set(keyFiles, 0)
		c.Set(keyKeyboard, false)
		return next(metricsContext{Context: c})
	}
}

// Counters is what a handler sent while processing one update.
type Counters struct {
	Messages int
	Files    int
	Keyboard bool
}

// GetCounters reads the counters recorded by MessageMetricsMiddleware.
func GetCounters(c tele.Context) Counters {
	msgs, _ := c.Get(keyMessages).(int)
	files, _ := c.Get(keyFiles).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return Counters{Messages: msgs, Files: files, Keyboard: kb}
}
