package delivery

import (
	"fmt"
	"unicode/utf8"

	"github.com/m3rciful/cedulabot/core/telegram/format"
	"github.com/m3rciful/cedulabot/internal/lookup"
)

// Threshold is the largest content, in characters, delivered inline.
const Threshold = 3500

// Kind tells whether a payload fits in a message or needs an attachment.
type Kind string

const (
	KindInline     Kind = "inline"
	KindAttachment Kind = "attachment"
)

// Mode is the markup of a text message.
type Mode string

const (
	ModePlain      Mode = "plain"
	ModeMarkdownV2 Mode = "markdown_v2"
)

// Branch names the delivery rule that produced a payload, for logs and metrics.
type Branch string

const (
	BranchStructuredInline Branch = "inline"
	BranchStructuredFile   Branch = "file"
	BranchEmpty            Branch = "empty"
	BranchTextInline       Branch = "text_inline"
	BranchTextFile         Branch = "text_file"
)

// File is a named in-memory attachment.
type File struct {
	Name string
	Data []byte
}

// Payload is what gets sent back for one lookup. Text is sent first when
// set, then File when set.
type Payload struct {
	Kind   Kind
	Branch Branch
	Text   string
	Mode   Mode
	File   *File
}

// Format picks the delivery for resp. It is a pure function: the same
// response and document always yield the same payload.
func Format(resp *lookup.Response, document string) Payload {
	switch body := Classify(resp.Body).(type) {
	case Structured:
		if utf8.RuneCountInString(body.Pretty) <= Threshold {
			return Payload{
				Kind:   KindInline,
				Branch: BranchStructuredInline,
				Text:   format.CodeBlock(body.Pretty),
				Mode:   ModeMarkdownV2,
			}
		}
		return Payload{
			Kind:   KindAttachment,
			Branch: BranchStructuredFile,
			File:   &File{Name: document + ".json", Data: []byte(body.Pretty)},
		}

	case PlainText:
		n := utf8.RuneCountInString(body.Text)
		switch {
		case n == 0:
			return Payload{
				Kind:   KindInline,
				Branch: BranchEmpty,
				Text:   fmt.Sprintf(msgEmpty, resp.StatusCode),
				Mode:   ModePlain,
			}
		case n <= Threshold:
			return Payload{
				Kind:   KindInline,
				Branch: BranchTextInline,
				Text:   fmt.Sprintf(msgTextInline, resp.StatusCode, body.Text),
				Mode:   ModePlain,
			}
		default:
			return Payload{
				Kind:   KindAttachment,
				Branch: BranchTextFile,
				Text:   fmt.Sprintf(msgTextFile, resp.StatusCode),
				Mode:   ModePlain,
				File:   &File{Name: document + "_response.txt", Data: []byte(body.Text)},
			}
		}
	}
	panic("delivery: unknown body variant")
}

const (
	msgEmpty      = "La API respondió con código %d y sin contenido."
	msgTextInline = "Respuesta (status %d):\n%s"
	msgTextFile   = "La respuesta no es JSON. Envío archivo con el contenido completo (status %d)."
)
