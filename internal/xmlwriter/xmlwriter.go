// Package xmlwriter produces the optional diagnostic parse tree described
// in spec.md §6: element names mirror grammar nonterminals, token leaves
// carry the raw token text XML-escaped. This is a diagnostic artifact, not
// required for correctness of the emitted VM program, so it hand-rolls a
// small element-stack writer rather than reaching for encoding/xml: the
// tree here is a fixed, incrementally-built leaf/element grammar driven by
// a single top-down parse, not a struct to marshal (see SPEC_FULL.md).
package xmlwriter

import (
	"fmt"
	"io"
	"strings"

	"github.com/jcorbin/jackc/internal/token"
)

// Writer is an append-only element-stack sink, analogous in shape to
// vmwriter.Writer but for the nested diagnostic tree instead of a flat
// instruction list.
type Writer struct {
	out   io.Writer
	stack []string
	err   error
}

// New wraps dst for XML tree output.
func New(dst io.Writer) *Writer {
	return &Writer{out: dst}
}

// Open writes an opening `<tag>` for a grammar nonterminal and pushes it
// onto the element stack.
func (w *Writer) Open(tag string) {
	w.indentf("<%s>\n", tag)
	w.stack = append(w.stack, tag)
}

// Close pops the most recently opened tag and writes its closing form.
// Calling Close with an empty stack is an internal error: it means the
// compiler's tree-building calls are mismatched.
func (w *Writer) Close() {
	if len(w.stack) == 0 {
		panic("xmlwriter: Close with no open element")
	}
	tag := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	w.indentf("</%s>\n", tag)
}

// Leaf writes a single token as `<category> text </category>`, escaping
// `<`, `>`, and `&` in the displayed text and stripping quotes from string
// constants (token.Token.Display already has quotes stripped).
func (w *Writer) Leaf(t token.Token) {
	w.indentf("<%s> %s </%s>\n", t.Category, escape(t.Display), t.Category)
}

func (w *Writer) indentf(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	if _, err := io.WriteString(w.out, strings.Repeat("  ", len(w.stack))); err != nil {
		w.err = err
		return
	}
	if _, err := fmt.Fprintf(w.out, format, args...); err != nil {
		w.err = err
	}
}

// Err returns the first write error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
