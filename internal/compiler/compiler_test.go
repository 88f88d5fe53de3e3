package compiler_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/jackc/internal/compiler"
)

type compilerTestCase struct {
	name string
	src  string
	want string
}

type compilerTestCases []compilerTestCase

func (cases compilerTestCases) run(t *testing.T) {
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := compiler.Compile(c.src, &buf)
			require.NoError(t, err)
			assert.Equal(t, strings.TrimLeft(c.want, "\n"), buf.String())
		})
	}
}

// TestLiteralScenarios reproduces spec.md §8's S1-S4 and S6 end-to-end
// scenarios verbatim; S5 is TestMethodCallOnField.
func TestLiteralScenarios(t *testing.T) {
	compilerTestCases{
		{
			name: "S1 empty class",
			src:  `class Empty { }`,
			want: ``,
		},
		{
			name: "S2 constant return",
			src:  `class A { function int seven() { return 7; } }`,
			want: `
function A.seven 0
push constant 7
return
`,
		},
		{
			name: "S3 constructor with one field",
			src: `class P { field int x;
  constructor P new(int v) { let x = v; return this; } }`,
			want: `
function P.new 0
push constant 1
call Memory.alloc 1
pop pointer 0
push argument 0
pop this 0
push pointer 0
return
`,
		},
		{
			name: "S4 while loop with decrement",
			src:  `class L { function void f() { var int i; let i = 3; while (i > 0) { let i = i - 1; } return; } }`,
			want: `
function L.f 1
push constant 3
pop local 0
label L.fWhile0
push local 0
push constant 0
gt
not
if-goto L.fWhile1
push local 0
push constant 1
sub
pop local 0
goto L.fWhile0
label L.fWhile1
push constant 0
return
`,
		},
		{
			name: "S6 boolean constant",
			src:  `class S { function boolean t() { return true; } }`,
			want: `
function S.t 0
push constant 1
neg
return
`,
		},
		{
			name: "S6 string constant",
			src:  `class S { function String s() { return "Hi"; } }`,
			want: `
function S.s 0
push constant 2
call String.new 1
push constant 72
call String.appendChar 2
push constant 105
call String.appendChar 2
return
`,
		},
	}.run(t)
}

// TestMethodCallOnField reproduces S5: a method call through a field,
// where the field's declared class (Q) need not itself be compiled in
// this unit for the call-site translation to be correct.
func TestMethodCallOnField(t *testing.T) {
	src := `class C { field Q q; method void run() { do q.step(5); return; } }`
	var buf bytes.Buffer
	require.NoError(t, compiler.Compile(src, &buf))
	want := `function C.run 0
push argument 0
pop pointer 0
push this 0
push constant 5
call Q.step 2
pop temp 0
push constant 0
return
`
	assert.Equal(t, want, buf.String())
}

func TestIfElseLabelsUniquePerSubroutine(t *testing.T) {
	src := `class C {
		static int dummy;
		function void both() {
			if (true) { let dummy = 1; } else { let dummy = 2; }
			if (false) { let dummy = 3; }
			return;
		}
	}`
	var buf bytes.Buffer
	require.NoError(t, compiler.Compile(src, &buf))
	out := buf.String()
	assert.Contains(t, out, "label C.bothIf0")
	assert.Contains(t, out, "label C.bothIf1")
	assert.Contains(t, out, "label C.bothIf2")
	assert.Contains(t, out, "label C.bothIf3")
}

func TestArrayAssignmentParksAddressInTemp1(t *testing.T) {
	src := `class C {
		function void set(Array a, int i, int v) {
			let a[i] = v;
			return;
		}
	}`
	var buf bytes.Buffer
	require.NoError(t, compiler.Compile(src, &buf))
	want := `function C.set 0
push argument 1
push argument 0
add
pop temp 1
push argument 2
push temp 1
pop pointer 1
pop that 0
push constant 0
return
`
	assert.Equal(t, want, buf.String())
}

func TestArrayReadPushesThat0(t *testing.T) {
	src := `class C {
		function int get(Array a, int i) {
			return a[i];
		}
	}`
	var buf bytes.Buffer
	require.NoError(t, compiler.Compile(src, &buf))
	want := `function C.get 0
push argument 1
push argument 0
add
pop pointer 1
push that 0
return
`
	assert.Equal(t, want, buf.String())
}

func TestStaticCallVsMethodCallDispatch(t *testing.T) {
	src := `class C {
		field C other;
		method void run() {
			do Output.printInt(1);
			do other.run();
			return;
		}
	}`
	var buf bytes.Buffer
	require.NoError(t, compiler.Compile(src, &buf))
	out := buf.String()
	assert.Contains(t, out, "call Output.printInt 1")
	assert.Contains(t, out, "call C.run 1")
}

func TestNoOperatorPrecedence(t *testing.T) {
	// 2 + 3 * 4 must compile strictly left-to-right: (2 + 3) then * 4,
	// NOT 2 + (3 * 4). Jack has no operator precedence (spec.md §4.4,
	// §9 "Operator precedence").
	src := `class C { function int f() { return 2 + 3 * 4; } }`
	var buf bytes.Buffer
	require.NoError(t, compiler.Compile(src, &buf))
	want := `function C.f 0
push constant 2
push constant 3
add
push constant 4
call Math.multiply 2
return
`
	assert.Equal(t, want, buf.String())
}

func TestUndeclaredIdentifierIsSemanticError(t *testing.T) {
	src := `class C { function void f() { let x = 1; return; } }`
	var buf bytes.Buffer
	err := compiler.Compile(src, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared identifier")
}

func TestDuplicateDeclarationIsSemanticError(t *testing.T) {
	src := `class C { field int x; field int x; }`
	var buf bytes.Buffer
	err := compiler.Compile(src, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate declaration")
}

func TestUnexpectedTokenIsSyntaxError(t *testing.T) {
	src := `class C { function void f( { return; } }`
	var buf bytes.Buffer
	err := compiler.Compile(src, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestMethodArgCountAlwaysAtLeastOne(t *testing.T) {
	src := `class C {
		field C other;
		method void run() {
			do other.run();
			return;
		}
	}`
	var buf bytes.Buffer
	require.NoError(t, compiler.Compile(src, &buf))
	assert.Contains(t, buf.String(), "call C.run 1")
}
