package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture runs emit against a handler writing format into memory and
// returns the rendered lines.
func capture(t *testing.T, format logFormat, emit func(log *slog.Logger)) []string {
	t.Helper()
	var buf bytes.Buffer
	w := newAsyncWriter([]io.Writer{&buf}, 1024)
	emit(slog.New(newStructuredHandler(handlerConfig{level: slog.LevelInfo, writer: w, format: format})))
	require.NoError(t, w.Close())

	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// assertInOrder checks that every part occurs in line after the previous one.
func assertInOrder(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := 0
	for _, p := range parts {
		idx := strings.Index(line[pos:], p)
		require.GreaterOrEqual(t, idx, 0, "%q missing or out of order in %s", p, line)
		pos += idx + len(p)
	}
}

func TestHandlerKeyOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	emit := func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "conversation"), slog.LevelWarn, "conversation.transition",
			slog.String("cause", "unit"),
			slog.String("status", "OK"),
		)
	}

	kv := capture(t, formatKV, emit)
	require.Len(t, kv, 1)
	assert.True(t, strings.HasPrefix(kv[0], "ts="))
	assertInOrder(t, kv[0], " level=WARN", " component=conversation", " event=conversation.transition",
		" status=ok", " rid=rid-123", " update_id=42", " user_id=7", " chat_id=9", " cause=unit")

	js := capture(t, formatJSON, emit)
	require.Len(t, js, 1)
	assertInOrder(t, js[0], `{"ts":`, `"level":"WARN"`, `"component":"conversation"`,
		`"event":"conversation.transition"`, `"status":"ok"`, `"rid":"rid-123"`)
}

func TestHandlerCompactsRID(t *testing.T) {
	const raw = "123:456:789"
	ctx := WithRID(context.Background(), raw)
	emit := func(log *slog.Logger) { LogEvent(ctx, log, slog.LevelInfo, "rid.test") }

	kv := capture(t, formatKV, emit)
	require.Len(t, kv, 1)
	assert.Contains(t, kv[0], "rid="+CompactRID(raw))
	assert.NotContains(t, kv[0], "rid_full=")

	js := capture(t, formatJSON, emit)
	require.Len(t, js, 1)
	assert.Contains(t, js[0], `"rid":"`+CompactRID(raw)+`"`)
	assert.Contains(t, js[0], `"rid_full":"`+raw+`"`)
	assert.Contains(t, js[0], `"ts_unix_nano"`)
}

func TestHandlerVocabulary(t *testing.T) {
	lines := capture(t, formatKV, func(log *slog.Logger) {
		log = log.With("component", "conversation")
		LogEvent(context.Background(), log, slog.LevelInfo, "conversation.done",
			slog.String("delivery", "TEXT_FILE"),
			slog.String("outcome", "Delivered"),
			slog.Duration("duration", 1500*time.Microsecond),
		)
		LogEvent(context.Background(), log, slog.LevelInfo, "conversation.done",
			slog.String("delivery", "carrier"),
			slog.String("outcome", "rate_limited"),
		)
	})
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "delivery=text_file")
	assert.Contains(t, lines[0], "outcome=delivered")
	assert.Contains(t, lines[0], "duration_ms=2")
	assert.NotContains(t, lines[1], "delivery=")
	assert.NotContains(t, lines[1], "outcome=")
}

func TestHandlerLevelFilter(t *testing.T) {
	lines := capture(t, formatKV, func(log *slog.Logger) {
		log.Debug("hidden")
		log.Info("shown")
	})
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "event=shown")
}

func TestHandlerGuardsSecrets(t *testing.T) {
	lines := capture(t, formatKV, func(log *slog.Logger) {
		LogEvent(context.Background(), log.With("component", "lookup"), slog.LevelWarn, "lookup.fail",
			slog.String("doc", "12345678"),
			slog.String("err", `Post "https://api.telegram.org/bot123:AAbb-cc/sendMessage": EOF`),
		)
	})
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "doc=*****678")
	assert.Contains(t, lines[0], "bot<redacted>")
	assert.NotContains(t, lines[0], "AAbb-cc")
}

func TestHandlerGroups(t *testing.T) {
	lines := capture(t, formatKV, func(log *slog.Logger) {
		log.WithGroup("http").With("code", 409).Info("poll", slog.Group("retry", slog.Int("n", 2)))
	})
	require.Len(t, lines, 1)
	for _, want := range []string{"http.code=409", "http.retry.n=2", "event=poll"} {
		assert.Contains(t, lines[0], want)
	}
}

func TestMaskDigits(t *testing.T) {
	for in, want := range map[string]string{
		"":          "",
		"12":        "**",
		"123":       "***",
		"12345678":  "*****678",
		" 1023456 ": "****456",
	} {
		assert.Equal(t, want, MaskDigits(in), "MaskDigits(%q)", in)
	}
}
