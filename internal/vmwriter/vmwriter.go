// Package vmwriter is the append-only textual sink for Hack VM instructions.
// It encapsulates segment-name translation and arithmetic-opcode mapping so
// the compilation engine never writes a raw VM instruction string itself.
package vmwriter

import (
	"fmt"
	"io"

	"github.com/jcorbin/jackc/internal/flushio"
	"github.com/jcorbin/jackc/internal/symtab"
)

// Segment names a Hack VM memory segment.
type Segment string

const (
	Constant Segment = "constant"
	Argument Segment = "argument"
	Local    Segment = "local"
	Static   Segment = "static"
	This     Segment = "this"
	That     Segment = "that"
	Pointer  Segment = "pointer"
	Temp     Segment = "temp"
)

// segmentOf translates from the compiler's storage-kind vocabulary to the
// VM's segment vocabulary, per spec.md §4.3.
func segmentOf(kind symtab.Kind) Segment {
	switch kind {
	case symtab.Static:
		return Static
	case symtab.Field:
		return This
	case symtab.Arg:
		return Argument
	case symtab.Local:
		return Local
	default:
		panic(fmt.Sprintf("vmwriter: malformed kind %d has no VM segment", kind))
	}
}

// Arithmetic names a zero-operand arithmetic/logic opcode.
type Arithmetic string

const (
	Add Arithmetic = "add"
	Sub Arithmetic = "sub"
	Neg Arithmetic = "neg"
	Eq  Arithmetic = "eq"
	Gt  Arithmetic = "gt"
	Lt  Arithmetic = "lt"
	And Arithmetic = "and"
	Or  Arithmetic = "or"
	Not Arithmetic = "not"
)

// BinaryOp maps a Jack binary operator symbol to the VM form that compiles
// it: either a plain arithmetic opcode, or a call to a Math routine for the
// two operators the Hack VM has no primitive for.
func BinaryOp(symbol string) (op Arithmetic, call string, argc int) {
	switch symbol {
	case "+":
		return Add, "", 0
	case "-":
		return Sub, "", 0
	case "&":
		return And, "", 0
	case "|":
		return Or, "", 0
	case "<":
		return Lt, "", 0
	case ">":
		return Gt, "", 0
	case "=":
		return Eq, "", 0
	case "*":
		return "", "Math.multiply", 2
	case "/":
		return "", "Math.divide", 2
	default:
		panic(fmt.Sprintf("vmwriter: %q is not a binary operator", symbol))
	}
}

// UnaryOp maps a Jack unary operator symbol to its arithmetic opcode.
func UnaryOp(symbol string) Arithmetic {
	switch symbol {
	case "-":
		return Neg
	case "~":
		return Not
	default:
		panic(fmt.Sprintf("vmwriter: %q is not a unary operator", symbol))
	}
}

// Writer accumulates VM instruction text, one instruction per line, Unix
// newlines, no trailing whitespace. It is append-only: nothing written is
// ever revisited or rewritten.
type Writer struct {
	out flushio.WriteFlusher
	err error
}

// New wraps dst in a buffered, flush-on-demand sink the way the teacher's
// VM output option does (internal/flushio.NewWriteFlusher picks a no-op
// flusher for in-memory buffers and a bufio.Writer for real files).
func New(dst io.Writer) *Writer {
	return &Writer{out: flushio.NewWriteFlusher(dst)}
}

func (w *Writer) line(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	_, err := fmt.Fprintf(w.out, format+"\n", args...)
	if err != nil {
		w.err = err
	}
}

// Push emits `push <seg> <i>`.
func (w *Writer) Push(seg Segment, index int) { w.line("push %s %d", seg, index) }

// Pop emits `pop <seg> <i>`.
func (w *Writer) Pop(seg Segment, index int) { w.line("pop %s %d", seg, index) }

// PushKind pushes a storage-kind-addressed variable, translating kind to
// its VM segment first.
func (w *Writer) PushKind(kind symtab.Kind, index int) { w.Push(segmentOf(kind), index) }

// PopKind pops into a storage-kind-addressed variable.
func (w *Writer) PopKind(kind symtab.Kind, index int) { w.Pop(segmentOf(kind), index) }

// Arith emits a zero-operand opcode on a line by itself.
func (w *Writer) Arith(op Arithmetic) { w.line("%s", op) }

// Label emits `label L`.
func (w *Writer) Label(name string) { w.line("label %s", name) }

// Goto emits `goto L`.
func (w *Writer) Goto(name string) { w.line("goto %s", name) }

// IfGoto emits `if-goto L`.
func (w *Writer) IfGoto(name string) { w.line("if-goto %s", name) }

// Call emits `call F n`.
func (w *Writer) Call(name string, argCount int) { w.line("call %s %d", name, argCount) }

// Function emits `function F k`.
func (w *Writer) Function(name string, localCount int) { w.line("function %s %d", name, localCount) }

// Return emits `return`.
func (w *Writer) Return() { w.line("return") }

// Flush flushes any buffered output and returns the first write error
// encountered, if any.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.out.Flush()
}
