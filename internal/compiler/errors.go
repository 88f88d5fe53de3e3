package compiler

import (
	"fmt"

	"github.com/jcorbin/jackc/internal/token"
)

// SyntaxError reports an unexpected token: the current production's
// first/follow set did not include the token actually found.
type SyntaxError struct {
	Pos      int
	Expected string
	Got      token.Token
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at token %d: expected %s, got %v %q",
		e.Pos, e.Expected, e.Got.Category, e.Got.Lexeme)
}

// SemanticError reports an undeclared identifier, a duplicate declaration,
// or any other scope-level violation of spec.md §7(c).
type SemanticError struct {
	Pos     int
	Message string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at token %d: %s", e.Pos, e.Message)
}

// internalError marks an unreachable parser state (a malformed subroutine
// kind or keyword constant, an unknown label kind), per spec.md §7(d). Most
// sites return it as an ordinary error; nextLabel raises it via panic, which
// Compile recovers through internal/panicerr.
type internalError struct {
	Message string
}

func (e internalError) Error() string { return "internal error: " + e.Message }
