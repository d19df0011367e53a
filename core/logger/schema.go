package logger

import "strings"

// vocabulary is a closed set of lowercase terms a log field may take.
type vocabulary map[string]struct{}

func terms(words ...string) vocabulary {
	v := make(vocabulary, len(words))
	for _, w := range words {
		v[w] = struct{}{}
	}
	return v
}

// lookup lowercases and trims raw and reports whether it is a known term.
func (v vocabulary) lookup(raw string) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	_, ok := v[raw]
	return raw, ok && raw != ""
}

var (
	statusTerms   = terms("ok", "fail", "skip", "retry", "rate_limited", "cancelled")
	deliveryTerms = terms("inline", "file", "text_inline", "text_file", "empty")
	// Conversation outcomes plus the generic ok and fail.
	outcomeTerms = terms("ok", "fail", "prompted", "denied", "invalid_format", "delivered",
		"connection_error", "delivery_failed", "cancelled", "expired", "ignored")
)

// levelName maps slog level names and common aliases to the upper-case
// names written in logs. Anything else is upper-cased as is.
func levelName(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "":
		return "INFO"
	case "warning":
		return "WARN"
	default:
		return strings.ToUpper(l)
	}
}

// defaultKeyOrder places the correlation and outcome fields first. Keys not
// listed follow in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"from_state", "to_state", "state", "trigger", "outcome", "delivery",
	"duration_ms", "messages", "files", "kb",
	"doc", "doc_len", "http_code", "body_len", "file_name", "payload",
	"lang", "username",
	"mode", "listen", "public_url", "db", "host", "port", "recipient",
	"err", "err_code", "error_kind", "cause", "attempts", "backoff_ms",
}
