package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/cedulabot/internal/lookup"
)

func resp(status int, body string) *lookup.Response {
	return &lookup.Response{StatusCode: status, Body: body}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Structured{Pretty: "{\n  \"nombre\": \"Juan\"\n}"}, Classify(`{"nombre":"Juan"}`))
	assert.Equal(t, Structured{Pretty: "{}"}, Classify(` {} `))
	assert.Equal(t, Structured{Pretty: "[]"}, Classify(`[]`))
	assert.Equal(t, PlainText{Text: "<html>oops</html>"}, Classify("<html>oops</html>"))
	assert.Equal(t, PlainText{Text: ""}, Classify(""))
	assert.Equal(t, PlainText{Text: `{"a":`}, Classify(`{"a":`))
}

func TestClassifyPreservesOrderAndLiterals(t *testing.T) {
	raw := `{"z":1,"a":{"y":"é","b":1.50},"m":[true,null,10000000000000000001]}`
	got, ok := Classify(raw).(Structured)
	require.True(t, ok)

	want := `{
  "z": 1,
  "a": {
    "y": "é",
    "b": 1.50
  },
  "m": [
    true,
    null,
    10000000000000000001
  ]
}`
	assert.Equal(t, want, got.Pretty)

	// Re-parsing the pretty output yields the same value as the original.
	var before, after any
	require.NoError(t, json.Unmarshal([]byte(raw), &before))
	require.NoError(t, json.Unmarshal([]byte(got.Pretty), &after))
	assert.Empty(t, cmp.Diff(before, after))
}

func TestFormatStructuredInline(t *testing.T) {
	p := Format(resp(200, `{"nombre":"Juan"}`), "12345678")
	want := Payload{
		Kind:   KindInline,
		Branch: BranchStructuredInline,
		Text:   "```\n{\n  \"nombre\": \"Juan\"\n}\n```",
		Mode:   ModeMarkdownV2,
	}
	assert.Empty(t, cmp.Diff(want, p))
}

func TestFormatThresholdBoundary(t *testing.T) {
	// A JSON string literal pretty-prints to itself: quotes plus content.
	exact := `"` + strings.Repeat("x", Threshold-2) + `"`
	over := `"` + strings.Repeat("x", Threshold-1) + `"`

	inline := Format(resp(200, exact), "1")
	assert.Equal(t, KindInline, inline.Kind)
	assert.Nil(t, inline.File)

	file := Format(resp(200, over), "1")
	assert.Equal(t, KindAttachment, file.Kind)
	require.NotNil(t, file.File)
	assert.Equal(t, "1.json", file.File.Name)
	assert.Equal(t, over, string(file.File.Data))
	assert.Empty(t, file.Text)
}

func TestFormatCountsCharactersNotBytes(t *testing.T) {
	// Threshold-2 two-byte runes: over the limit in bytes, at the limit in characters.
	body := `"` + strings.Repeat("é", Threshold-2) + `"`
	assert.Equal(t, KindInline, Format(resp(200, body), "1").Kind)
}

func TestFormatPlainText(t *testing.T) {
	empty := Format(resp(204, ""), "9")
	assert.Equal(t, BranchEmpty, empty.Branch)
	assert.Equal(t, "La API respondió con código 204 y sin contenido.", empty.Text)

	// Status code is informational only.
	emptyOK := Format(resp(200, ""), "9")
	assert.Equal(t, BranchEmpty, emptyOK.Branch)

	short := Format(resp(500, "Internal error"), "9")
	assert.Equal(t, KindInline, short.Kind)
	assert.Equal(t, ModePlain, short.Mode)
	assert.Contains(t, short.Text, "500")
	assert.Contains(t, short.Text, "Internal error")

	body := strings.Repeat("a", 5000)
	long := Format(resp(200, body), "12345678")
	assert.Equal(t, KindAttachment, long.Kind)
	assert.Equal(t, BranchTextFile, long.Branch)
	assert.Contains(t, long.Text, "no es JSON")
	require.NotNil(t, long.File)
	assert.Equal(t, "12345678_response.txt", long.File.Name)
	assert.Equal(t, body, string(long.File.Data))
}

func TestFormatPlainTextThresholdBoundary(t *testing.T) {
	exact := strings.Repeat("x", Threshold)
	over := strings.Repeat("x", Threshold+1)

	inline := Format(resp(200, exact), "7")
	assert.Equal(t, KindInline, inline.Kind)
	assert.Equal(t, BranchTextInline, inline.Branch)
	assert.Contains(t, inline.Text, exact)
	assert.Nil(t, inline.File)

	file := Format(resp(200, over), "7")
	assert.Equal(t, KindAttachment, file.Kind)
	assert.Equal(t, BranchTextFile, file.Branch)
	require.NotNil(t, file.File)
	assert.Equal(t, "7_response.txt", file.File.Name)
	assert.Equal(t, over, string(file.File.Data))
	assert.NotContains(t, file.Text, over)
}

func TestFormatIsIdempotent(t *testing.T) {
	for _, body := range []string{`{"a":[1,2]}`, "", "plain", strings.Repeat("b", 4000)} {
		r := resp(200, body)
		assert.Empty(t, cmp.Diff(Format(r, "77"), Format(r, "77")), body)
	}
}

type recordingReplier struct {
	ops     []string
	failOn  string
	lastTxt string
}

func (r *recordingReplier) SendText(_ context.Context, text string, mode Mode) error {
	if r.failOn == "text" {
		return errors.New("send failed")
	}
	r.ops = append(r.ops, "text:"+string(mode))
	r.lastTxt = text
	return nil
}

func (r *recordingReplier) SendFile(_ context.Context, name string, _ []byte) error {
	if r.failOn == "file" {
		return errors.New("upload failed")
	}
	r.ops = append(r.ops, "file:"+name)
	return nil
}

func TestDeliverOrder(t *testing.T) {
	rr := &recordingReplier{}
	p := Format(resp(200, strings.Repeat("a", 5000)), "5")
	require.NoError(t, Deliver(context.Background(), p, rr))
	assert.Equal(t, []string{"text:plain", "file:5_response.txt"}, rr.ops)

	rr = &recordingReplier{}
	p = Format(resp(200, `"`+strings.Repeat("x", Threshold)+`"`), "5")
	require.NoError(t, Deliver(context.Background(), p, rr))
	assert.Equal(t, []string{"file:5.json"}, rr.ops)
}

func TestDeliverStopsOnTextFailure(t *testing.T) {
	rr := &recordingReplier{failOn: "text"}
	p := Format(resp(200, strings.Repeat("a", 5000)), "5")
	err := Deliver(context.Background(), p, rr)
	require.Error(t, err)
	assert.Empty(t, rr.ops)
}
