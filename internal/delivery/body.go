// Package delivery turns a lookup response into what the user receives:
// an inline message, a file attachment, or both.
package delivery

import (
	"bytes"
	"encoding/json"
)

// Body is the shape of a response body: Structured or PlainText.
type Body interface {
	isBody()
}

// Structured is a body that parsed as JSON. Pretty keeps the original key
// order and literal values, re-indented with two spaces.
type Structured struct {
	Pretty string
}

// PlainText is any body that is not valid JSON, including the empty body.
type PlainText struct {
	Text string
}

func (Structured) isBody() {}
func (PlainText) isBody()  {}

// Classify parses raw once and picks the variant. Values are never decoded,
// so numbers, escapes, and duplicate keys survive exactly as sent.
func Classify(raw string) Body {
	if !json.Valid([]byte(raw)) {
		return PlainText{Text: raw}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(raw)); err != nil {
		return PlainText{Text: raw}
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact.Bytes(), "", "  "); err != nil {
		return PlainText{Text: raw}
	}
	return Structured{Pretty: pretty.String()}
}
