// Package symtab implements the two-level identifier scope described in
// spec.md §3/§4.2: a class scope that lives for the whole compilation unit,
// and a subroutine scope that is discarded at the start of every
// subroutine. Both are Go maps from name to Row and keep no insertion
// order; lookups check the subroutine scope first, then fall back to the
// class scope.
package symtab

import "fmt"

// Kind classifies how a declared identifier is stored.
type Kind int

const (
	None Kind = iota
	Static
	Field
	Arg
	Local
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "static"
	case Field:
		return "field"
	case Arg:
		return "arg"
	case Local:
		return "local"
	default:
		return "none"
	}
}

// Row is an immutable symbol-table entry.
type Row struct {
	Name  string
	Type  string
	Kind  Kind
	Index int
}

// Table tracks the class scope and the current subroutine scope, with four
// independent, monotonically increasing slot counters: static and field
// live with the class scope, arg and local with the subroutine scope.
type Table struct {
	class      map[string]Row
	subroutine map[string]Row

	staticIdx int
	fieldIdx  int
	argIdx    int
	localIdx  int
}

// New returns an empty table ready to accept class-variable declarations.
func New() *Table {
	t := &Table{}
	t.class = make(map[string]Row)
	t.subroutine = make(map[string]Row)
	return t
}

// StartSubroutine discards the subroutine scope and resets its two
// counters. The class scope, and its counters, are untouched.
func (t *Table) StartSubroutine() {
	t.subroutine = make(map[string]Row)
	t.argIdx = 0
	t.localIdx = 0
}

// Define inserts name into the scope owned by kind, assigning the next free
// slot index for that kind. Redefining a name already present in the
// target scope is an error.
func (t *Table) Define(name, typ string, kind Kind) error {
	scope, counter := t.scopeFor(kind)
	if _, dup := scope[name]; dup {
		return fmt.Errorf("duplicate declaration of %q in %s scope", name, scopeName(kind))
	}
	row := Row{Name: name, Type: typ, Kind: kind, Index: *counter}
	scope[name] = row
	*counter++
	return nil
}

func (t *Table) scopeFor(kind Kind) (map[string]Row, *int) {
	switch kind {
	case Static:
		return t.class, &t.staticIdx
	case Field:
		return t.class, &t.fieldIdx
	case Arg:
		return t.subroutine, &t.argIdx
	case Local:
		return t.subroutine, &t.localIdx
	default:
		panic(fmt.Sprintf("symtab: malformed kind %d passed to Define", kind))
	}
}

func scopeName(kind Kind) string {
	switch kind {
	case Static, Field:
		return "class"
	case Arg, Local:
		return "subroutine"
	default:
		return "unknown"
	}
}

// Lookup returns the Row for name, checking the subroutine scope first and
// falling back to the class scope, and whether it was found.
func (t *Table) Lookup(name string) (Row, bool) {
	if row, ok := t.subroutine[name]; ok {
		return row, true
	}
	row, ok := t.class[name]
	return row, ok
}

// KindOf, TypeOf, and IndexOf are convenience getters over Lookup; each
// returns an error for an undeclared name.
func (t *Table) KindOf(name string) (Kind, error) {
	row, ok := t.Lookup(name)
	if !ok {
		return None, fmt.Errorf("undeclared identifier %q", name)
	}
	return row.Kind, nil
}

func (t *Table) TypeOf(name string) (string, error) {
	row, ok := t.Lookup(name)
	if !ok {
		return "", fmt.Errorf("undeclared identifier %q", name)
	}
	return row.Type, nil
}

func (t *Table) IndexOf(name string) (int, error) {
	row, ok := t.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("undeclared identifier %q", name)
	}
	return row.Index, nil
}

// FieldCount returns the number of field-kind entries in the class scope,
// used as the Memory.alloc argument for constructors.
func (t *Table) FieldCount() int {
	return t.fieldIdx
}

// VarCount returns the number of entries of kind currently defined, useful
// for callers that need a count without risking the undeclared-name error
// path of the Of getters (e.g. local-variable counting before `function`
// is emitted).
func (t *Table) VarCount(kind Kind) int {
	switch kind {
	case Static:
		return t.staticIdx
	case Field:
		return t.fieldIdx
	case Arg:
		return t.argIdx
	case Local:
		return t.localIdx
	default:
		return 0
	}
}
