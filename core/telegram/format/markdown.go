// Package format escapes text for Telegram parse modes.
package format

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile("([_*\\[\\]()~`>#+\\-=|{}.!\\\\])")

	preEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2 outside of entities.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// CodeBlock wraps text in a MarkdownV2 pre block. Inside pre entities only
// backslash and backtick need escaping.
func CodeBlock(text string) string {
	return "```\n" + preEscaper.Replace(text) + "\n```"
}
