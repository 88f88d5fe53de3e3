// Package compiler implements the single-pass recursive-descent
// compilation engine described in spec.md §4.4: it consumes the token
// stream produced by internal/lexer, threads identifier scope through
// internal/symtab, and drives internal/vmwriter (and, optionally,
// internal/xmlwriter) to emit a Hack VM program. The engine never
// backtracks and never re-visits a token once consumed.
package compiler

import (
	"io"
	"strconv"

	"github.com/jcorbin/jackc/internal/lexer"
	"github.com/jcorbin/jackc/internal/panicerr"
	"github.com/jcorbin/jackc/internal/symtab"
	"github.com/jcorbin/jackc/internal/token"
	"github.com/jcorbin/jackc/internal/vmwriter"
	"github.com/jcorbin/jackc/internal/xmlwriter"
)

// subroutineKind distinguishes the three subroutine flavors, each with a
// different prologue (spec.md §4.4 "Subroutine declaration").
type subroutineKind int

const (
	kindNone subroutineKind = iota
	kindConstructor
	kindFunction
	kindMethod
)

// Option configures an Engine at construction time, following the
// functional-options shape the teacher uses for its own VM
// (github.com/jcorbin/gothird's VMOption/api.go).
type Option interface{ apply(*Engine) }

type xmlOption struct{ w io.Writer }

func (o xmlOption) apply(e *Engine) { e.xml = xmlwriter.New(o.w) }

// WithXML additionally emits the optional diagnostic parse tree (spec.md
// §6) to w as the class is compiled.
func WithXML(w io.Writer) Option { return xmlOption{w} }

// Engine holds all per-compilation-unit state: the token cursor, the
// symbol table, the VM sink, and the subroutine-local label counters. A
// fresh Engine is built for each Jack class source string; nothing is
// shared across units (spec.md §5).
type Engine struct {
	lx  *lexer.Lexer
	cur token.Token

	sym *symtab.Table
	vm  *vmwriter.Writer
	xml *xmlwriter.Writer

	className string

	subName      string
	subKind      subroutineKind
	returnType   string
	ifCounter    int
	whileCounter int
}

// New builds an Engine over src, positioned at the first token. src must
// already be comment-free (internal/preprocess is the external
// collaborator responsible for that).
func New(src string, vmOut io.Writer, opts ...Option) (*Engine, error) {
	lx, err := lexer.New(src)
	if err != nil {
		return nil, err
	}
	e := &Engine{lx: lx, sym: symtab.New(), vm: vmwriter.New(vmOut)}
	for _, opt := range opts {
		opt.apply(e)
	}
	e.cur = lx.Advance()
	return e, nil
}

// Compile lexes, parses, and translates one Jack class source string,
// writing the resulting VM program to vmOut. Internal/unreachable parser
// states are recovered as errors via internal/panicerr rather than
// crashing the process (spec.md §7d).
func Compile(src string, vmOut io.Writer, opts ...Option) error {
	return panicerr.Recover("compiler", func() error {
		e, err := New(src, vmOut, opts...)
		if err != nil {
			return err
		}
		if err := e.compileClass(); err != nil {
			return err
		}
		if e.xml != nil {
			if err := e.xml.Err(); err != nil {
				return err
			}
		}
		return e.vm.Flush()
	})
}

func (e *Engine) advance() {
	if e.lx.HasMore() {
		e.cur = e.lx.Advance()
	} else {
		e.cur = token.Token{}
	}
}

func (e *Engine) isKeyword(kw string) bool {
	return e.cur.Category == token.Keyword && e.cur.Lexeme == kw
}

func (e *Engine) isSymbol(sym string) bool {
	return e.cur.Category == token.Symbol && e.cur.Lexeme == sym
}

func (e *Engine) expectKeyword(kw string) error {
	if !e.isKeyword(kw) {
		return &SyntaxError{Pos: e.lx.Pos(), Expected: "keyword " + strconv.Quote(kw), Got: e.cur}
	}
	e.advance()
	return nil
}

func (e *Engine) expectSymbol(sym string) error {
	if !e.isSymbol(sym) {
		return &SyntaxError{Pos: e.lx.Pos(), Expected: "symbol " + strconv.Quote(sym), Got: e.cur}
	}
	e.advance()
	return nil
}

func (e *Engine) expectIdentifier() (string, error) {
	if e.cur.Category != token.Identifier {
		return "", &SyntaxError{Pos: e.lx.Pos(), Expected: "identifier", Got: e.cur}
	}
	name := e.cur.Lexeme
	e.advance()
	return name, nil
}

// expectType consumes a primitive type keyword or a class-name identifier.
func (e *Engine) expectType() (string, error) {
	if e.cur.Category == token.Keyword && token.Types[e.cur.Lexeme] {
		typ := e.cur.Lexeme
		e.advance()
		return typ, nil
	}
	if e.cur.Category == token.Identifier {
		typ := e.cur.Lexeme
		e.advance()
		return typ, nil
	}
	return "", &SyntaxError{Pos: e.lx.Pos(), Expected: "type", Got: e.cur}
}

func (e *Engine) lookup(name string) (symtab.Kind, string, int, error) {
	row, ok := e.sym.Lookup(name)
	if !ok {
		return symtab.None, "", 0, &SemanticError{Pos: e.lx.Pos(), Message: "undeclared identifier " + strconv.Quote(name)}
	}
	return row.Kind, row.Type, row.Index, nil
}

func (e *Engine) openXML(tag string) {
	if e.xml != nil {
		e.xml.Open(tag)
	}
}

func (e *Engine) closeXML() {
	if e.xml != nil {
		e.xml.Close()
	}
}

func (e *Engine) leafXML() {
	if e.xml != nil {
		e.xml.Leaf(e.cur)
	}
}

// compileClass implements: `class Name { classVarDec* subroutineDec* }`.
func (e *Engine) compileClass() error {
	e.openXML("class")
	defer e.closeXML()

	e.leafXML()
	if err := e.expectKeyword("class"); err != nil {
		return err
	}
	e.leafXML()
	name, err := e.expectIdentifier()
	if err != nil {
		return err
	}
	e.className = name

	e.leafXML()
	if err := e.expectSymbol("{"); err != nil {
		return err
	}

	for e.cur.Category == token.Keyword && token.ClassVarModifiers[e.cur.Lexeme] {
		if err := e.compileClassVarDec(); err != nil {
			return err
		}
	}
	for e.cur.Category == token.Keyword && token.SubroutineModifiers[e.cur.Lexeme] {
		if err := e.compileSubroutine(); err != nil {
			return err
		}
	}

	e.leafXML()
	return e.expectSymbol("}")
}

// compileClassVarDec implements: `(static|field) type name (, name)* ;`.
func (e *Engine) compileClassVarDec() error {
	e.openXML("classVarDec")
	defer e.closeXML()

	var kind symtab.Kind
	switch e.cur.Lexeme {
	case "static":
		kind = symtab.Static
	case "field":
		kind = symtab.Field
	default:
		return &SyntaxError{Pos: e.lx.Pos(), Expected: "'static' or 'field'", Got: e.cur}
	}
	e.leafXML()
	e.advance()

	typ, err := e.compileTypeXML()
	if err != nil {
		return err
	}

	if err := e.compileVarName(typ, kind); err != nil {
		return err
	}
	for e.isSymbol(",") {
		e.leafXML()
		e.advance()
		if err := e.compileVarName(typ, kind); err != nil {
			return err
		}
	}

	e.leafXML()
	return e.expectSymbol(";")
}

func (e *Engine) compileVarName(typ string, kind symtab.Kind) error {
	if e.cur.Category != token.Identifier {
		return &SyntaxError{Pos: e.lx.Pos(), Expected: "identifier", Got: e.cur}
	}
	name := e.cur.Lexeme
	e.leafXML()
	e.advance()
	if err := e.sym.Define(name, typ, kind); err != nil {
		return &SemanticError{Pos: e.lx.Pos(), Message: err.Error()}
	}
	return nil
}

// compileTypeXML wraps expectType with the matching leaf emission, since
// both classVarDec/varDec and parameterList need a type token.
func (e *Engine) compileTypeXML() (string, error) {
	e.leafXML()
	return e.expectType()
}

// compileSubroutine implements subroutine declarations end to end,
// including the §4.4 prologue rules.
func (e *Engine) compileSubroutine() error {
	e.openXML("subroutineDec")
	defer e.closeXML()

	e.sym.StartSubroutine()
	e.ifCounter = 0
	e.whileCounter = 0

	switch e.cur.Lexeme {
	case "constructor":
		e.subKind = kindConstructor
	case "function":
		e.subKind = kindFunction
	case "method":
		e.subKind = kindMethod
	default:
		return &SyntaxError{Pos: e.lx.Pos(), Expected: "'constructor', 'function', or 'method'", Got: e.cur}
	}
	e.leafXML()
	e.advance()

	if e.subKind == kindMethod {
		if err := e.sym.Define("this", e.className, symtab.Arg); err != nil {
			return &internalError{Message: err.Error()}
		}
	}

	if e.isKeyword("void") {
		e.returnType = "void"
		e.leafXML()
		e.advance()
	} else {
		typ, err := e.compileTypeXML()
		if err != nil {
			return err
		}
		e.returnType = typ
	}

	name, err := e.expectIdentifierXML()
	if err != nil {
		return err
	}
	e.subName = name

	e.leafXML()
	if err := e.expectSymbol("("); err != nil {
		return err
	}
	if err := e.compileParameterList(); err != nil {
		return err
	}
	e.leafXML()
	if err := e.expectSymbol(")"); err != nil {
		return err
	}

	return e.compileSubroutineBody()
}

func (e *Engine) expectIdentifierXML() (string, error) {
	e.leafXML()
	return e.expectIdentifier()
}

// compileParameterList implements: `((type name) (, type name)*)?`.
func (e *Engine) compileParameterList() error {
	e.openXML("parameterList")
	defer e.closeXML()

	if e.isSymbol(")") {
		return nil
	}
	if err := e.compileParameter(); err != nil {
		return err
	}
	for e.isSymbol(",") {
		e.leafXML()
		e.advance()
		if err := e.compileParameter(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) compileParameter() error {
	typ, err := e.compileTypeXML()
	if err != nil {
		return err
	}
	name, err := e.expectIdentifierXML()
	if err != nil {
		return err
	}
	if err := e.sym.Define(name, typ, symtab.Arg); err != nil {
		return &SemanticError{Pos: e.lx.Pos(), Message: err.Error()}
	}
	return nil
}

// compileSubroutineBody implements: `{ varDec* statements }`, emitting the
// `function` instruction once the local count is known, then the
// kind-specific prologue, per spec.md §4.4.
func (e *Engine) compileSubroutineBody() error {
	e.openXML("subroutineBody")
	defer e.closeXML()

	e.leafXML()
	if err := e.expectSymbol("{"); err != nil {
		return err
	}

	for e.isKeyword("var") {
		if err := e.compileVarDec(); err != nil {
			return err
		}
	}

	e.vm.Function(e.className+"."+e.subName, e.sym.VarCount(symtab.Local))

	switch e.subKind {
	case kindMethod:
		e.vm.Push(vmwriter.Argument, 0)
		e.vm.Pop(vmwriter.Pointer, 0)
	case kindConstructor:
		e.vm.Push(vmwriter.Constant, e.sym.FieldCount())
		e.vm.Call("Memory.alloc", 1)
		e.vm.Pop(vmwriter.Pointer, 0)
	case kindFunction:
		// no receiver to anchor
	default:
		return &internalError{Message: "malformed subroutine kind"}
	}

	if err := e.compileStatements(); err != nil {
		return err
	}

	e.leafXML()
	return e.expectSymbol("}")
}

// compileVarDec implements: `var type name (, name)* ;`.
func (e *Engine) compileVarDec() error {
	e.openXML("varDec")
	defer e.closeXML()

	e.leafXML()
	e.advance() // 'var'

	typ, err := e.compileTypeXML()
	if err != nil {
		return err
	}
	if err := e.compileVarName(typ, symtab.Local); err != nil {
		return err
	}
	for e.isSymbol(",") {
		e.leafXML()
		e.advance()
		if err := e.compileVarName(typ, symtab.Local); err != nil {
			return err
		}
	}
	e.leafXML()
	return e.expectSymbol(";")
}

// compileStatements implements `statement*`, dispatching on the keyword
// that starts each statement.
func (e *Engine) compileStatements() error {
	e.openXML("statements")
	defer e.closeXML()

	for e.cur.Category == token.Keyword && token.StatementStarters[e.cur.Lexeme] {
		var err error
		switch e.cur.Lexeme {
		case "let":
			err = e.compileLet()
		case "if":
			err = e.compileIf()
		case "while":
			err = e.compileWhile()
		case "do":
			err = e.compileDo()
		case "return":
			err = e.compileReturn()
		default:
			err = &internalError{Message: "unreachable statement starter " + e.cur.Lexeme}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// compileLet implements `let name ([expr])? = expr ;`, per spec.md §4.4.
func (e *Engine) compileLet() error {
	e.openXML("letStatement")
	defer e.closeXML()

	e.leafXML()
	e.advance() // 'let'

	name, err := e.expectIdentifierXML()
	if err != nil {
		return err
	}

	isArray := false
	if e.isSymbol("[") {
		isArray = true
		e.leafXML()
		e.advance()
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.leafXML()
		if err := e.expectSymbol("]"); err != nil {
			return err
		}
	}

	e.leafXML()
	if err := e.expectSymbol("="); err != nil {
		return err
	}

	kind, _, index, err := e.lookup(name)
	if err != nil {
		return err
	}

	if isArray {
		e.vm.PushKind(kind, index)
		e.vm.Arith(vmwriter.Add)
		e.vm.Pop(vmwriter.Temp, 1)
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.vm.Push(vmwriter.Temp, 1)
		e.vm.Pop(vmwriter.Pointer, 1)
		e.vm.Pop(vmwriter.That, 0)
	} else {
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.vm.PopKind(kind, index)
	}

	e.leafXML()
	return e.expectSymbol(";")
}

// compileIf implements the two-label if/else translation of spec.md §4.4.
func (e *Engine) compileIf() error {
	e.openXML("ifStatement")
	defer e.closeXML()

	e.leafXML()
	e.advance() // 'if'

	e.leafXML()
	if err := e.expectSymbol("("); err != nil {
		return err
	}
	if err := e.compileExpression(); err != nil {
		return err
	}
	e.leafXML()
	if err := e.expectSymbol(")"); err != nil {
		return err
	}

	l1 := e.nextLabel("If")
	l2 := e.nextLabel("If")

	e.vm.Arith(vmwriter.Not)
	e.vm.IfGoto(l1)

	e.leafXML()
	if err := e.expectSymbol("{"); err != nil {
		return err
	}
	if err := e.compileStatements(); err != nil {
		return err
	}
	e.leafXML()
	if err := e.expectSymbol("}"); err != nil {
		return err
	}

	e.vm.Goto(l2)
	e.vm.Label(l1)

	if e.isKeyword("else") {
		e.leafXML()
		e.advance()
		e.leafXML()
		if err := e.expectSymbol("{"); err != nil {
			return err
		}
		if err := e.compileStatements(); err != nil {
			return err
		}
		e.leafXML()
		if err := e.expectSymbol("}"); err != nil {
			return err
		}
	}

	e.vm.Label(l2)
	return nil
}

// compileWhile implements the two-label loop translation of spec.md §4.4.
func (e *Engine) compileWhile() error {
	e.openXML("whileStatement")
	defer e.closeXML()

	e.leafXML()
	e.advance() // 'while'

	l1 := e.nextLabel("While")
	l2 := e.nextLabel("While")

	e.vm.Label(l1)

	e.leafXML()
	if err := e.expectSymbol("("); err != nil {
		return err
	}
	if err := e.compileExpression(); err != nil {
		return err
	}
	e.leafXML()
	if err := e.expectSymbol(")"); err != nil {
		return err
	}

	e.vm.Arith(vmwriter.Not)
	e.vm.IfGoto(l2)

	e.leafXML()
	if err := e.expectSymbol("{"); err != nil {
		return err
	}
	if err := e.compileStatements(); err != nil {
		return err
	}
	e.leafXML()
	if err := e.expectSymbol("}"); err != nil {
		return err
	}

	e.vm.Goto(l1)
	e.vm.Label(l2)
	return nil
}

// nextLabel mints a label unique within {class, subroutine}, per spec.md
// §4.4's "if-label index"/"while-label index" subroutine-local counters.
func (e *Engine) nextLabel(kind string) string {
	var n int
	switch kind {
	case "If":
		n = e.ifCounter
		e.ifCounter++
	case "While":
		n = e.whileCounter
		e.whileCounter++
	default:
		panic(&internalError{Message: "unknown label kind " + kind})
	}
	return e.className + "." + e.subName + kind + strconv.Itoa(n)
}

// compileDo implements `do subroutineCall ;`, discarding the unused
// return value with `pop temp 0`.
func (e *Engine) compileDo() error {
	e.openXML("doStatement")
	defer e.closeXML()

	e.leafXML()
	e.advance() // 'do'

	name, err := e.expectIdentifierXML()
	if err != nil {
		return err
	}
	if err := e.compileCallOn(name); err != nil {
		return err
	}
	e.vm.Pop(vmwriter.Temp, 0)

	e.leafXML()
	return e.expectSymbol(";")
}

// compileReturn implements `return expr? ;`.
func (e *Engine) compileReturn() error {
	e.openXML("returnStatement")
	defer e.closeXML()

	e.leafXML()
	e.advance() // 'return'

	if !e.isSymbol(";") {
		if err := e.compileExpression(); err != nil {
			return err
		}
	} else if e.returnType == "void" {
		e.vm.Push(vmwriter.Constant, 0)
	}

	e.vm.Return()

	e.leafXML()
	return e.expectSymbol(";")
}

// compileExpression implements `term (op term)*` with strictly
// left-to-right, no-precedence evaluation (spec.md §4.4).
func (e *Engine) compileExpression() error {
	e.openXML("expression")
	defer e.closeXML()

	if err := e.compileTerm(); err != nil {
		return err
	}
	for e.cur.Category == token.Symbol && token.BinaryOperators[e.cur.Lexeme] {
		op := e.cur.Lexeme
		e.leafXML()
		e.advance()
		if err := e.compileTerm(); err != nil {
			return err
		}
		arith, call, argc := vmwriter.BinaryOp(op)
		if call != "" {
			e.vm.Call(call, argc)
		} else {
			e.vm.Arith(arith)
		}
	}
	return nil
}

// compileTerm dispatches on the current token, per spec.md §4.4 "Terms".
func (e *Engine) compileTerm() error {
	e.openXML("term")
	defer e.closeXML()

	switch {
	case e.cur.Category == token.IntConst:
		n, convErr := strconv.Atoi(e.cur.Lexeme)
		if convErr != nil {
			return &internalError{Message: "lexer admitted non-numeric integerConstant " + e.cur.Lexeme}
		}
		e.vm.Push(vmwriter.Constant, n)
		e.leafXML()
		e.advance()
		return nil

	case e.cur.Category == token.StringConst:
		e.compileStringConstant(e.cur.Lexeme)
		e.leafXML()
		e.advance()
		return nil

	case e.cur.Category == token.Keyword && token.KeywordConstants[e.cur.Lexeme]:
		if err := e.compileKeywordConstant(e.cur.Lexeme); err != nil {
			return err
		}
		e.leafXML()
		e.advance()
		return nil

	case e.isSymbol("("):
		e.leafXML()
		e.advance()
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.leafXML()
		return e.expectSymbol(")")

	case e.cur.Category == token.Symbol && token.UnaryOperators[e.cur.Lexeme]:
		op := e.cur.Lexeme
		e.leafXML()
		e.advance()
		if err := e.compileTerm(); err != nil {
			return err
		}
		e.vm.Arith(vmwriter.UnaryOp(op))
		return nil

	case e.cur.Category == token.Identifier:
		return e.compileIdentifierTerm()

	default:
		return &SyntaxError{Pos: e.lx.Pos(), Expected: "term", Got: e.cur}
	}
}

func (e *Engine) compileIdentifierTerm() error {
	name := e.cur.Lexeme
	e.leafXML()
	e.advance()

	switch {
	case e.isSymbol("(") || e.isSymbol("."):
		return e.compileCallOn(name)

	case e.isSymbol("["):
		kind, _, index, err := e.lookup(name)
		if err != nil {
			return err
		}
		e.leafXML()
		e.advance()
		if err := e.compileExpression(); err != nil {
			return err
		}
		e.leafXML()
		if err := e.expectSymbol("]"); err != nil {
			return err
		}
		e.vm.PushKind(kind, index)
		e.vm.Arith(vmwriter.Add)
		e.vm.Pop(vmwriter.Pointer, 1)
		e.vm.Push(vmwriter.That, 0)
		return nil

	default:
		kind, _, index, err := e.lookup(name)
		if err != nil {
			return err
		}
		e.vm.PushKind(kind, index)
		return nil
	}
}

// compileCallOn implements the subroutine-call grammar and the three-way
// dispatch rule of spec.md §4.4 "Subroutine call": the cursor is
// immediately after name1, sitting on either '(' or '.'.
func (e *Engine) compileCallOn(name1 string) error {
	var target string
	argBase := 0

	if e.isSymbol(".") {
		e.leafXML()
		e.advance()
		name2, err := e.expectIdentifierXML()
		if err != nil {
			return err
		}
		if kind, typ, index, err := e.lookup(name1); err == nil {
			e.vm.PushKind(kind, index)
			target = typ + "." + name2
			argBase = 1
		} else {
			target = name1 + "." + name2
			argBase = 0
		}
	} else {
		e.vm.Push(vmwriter.Pointer, 0)
		target = e.className + "." + name1
		argBase = 1
	}

	e.leafXML()
	if err := e.expectSymbol("("); err != nil {
		return err
	}
	argCount, err := e.compileExpressionList()
	if err != nil {
		return err
	}
	e.leafXML()
	if err := e.expectSymbol(")"); err != nil {
		return err
	}

	e.vm.Call(target, argBase+argCount)
	return nil
}

// compileExpressionList implements `(expression (, expression)*)?`,
// returning the argument count.
func (e *Engine) compileExpressionList() (int, error) {
	e.openXML("expressionList")
	defer e.closeXML()

	if e.isSymbol(")") {
		return 0, nil
	}
	if err := e.compileExpression(); err != nil {
		return 0, err
	}
	count := 1
	for e.isSymbol(",") {
		e.leafXML()
		e.advance()
		if err := e.compileExpression(); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) compileStringConstant(s string) {
	runes := []rune(s)
	e.vm.Push(vmwriter.Constant, len(runes))
	e.vm.Call("String.new", 1)
	for _, c := range runes {
		e.vm.Push(vmwriter.Constant, int(c))
		e.vm.Call("String.appendChar", 2)
	}
}

func (e *Engine) compileKeywordConstant(kw string) error {
	switch kw {
	case "true":
		e.vm.Push(vmwriter.Constant, 1)
		e.vm.Arith(vmwriter.Neg)
	case "false", "null":
		e.vm.Push(vmwriter.Constant, 0)
	case "this":
		e.vm.Push(vmwriter.Pointer, 0)
	default:
		return &internalError{Message: "malformed keyword constant " + kw}
	}
	return nil
}
