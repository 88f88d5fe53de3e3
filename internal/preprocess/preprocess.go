// Package preprocess implements the external comment-stripping
// pre-processor spec.md §6 assumes has already run before the lexer ever
// sees source text. It is deliberately outside THE CORE: the lexer only
// ever sees comment-free source.
package preprocess

import (
	"fmt"
	"io"
	"strings"

	"github.com/jcorbin/jackc/internal/fileinput"
)

// Error reports a failure while stripping comments, tagged with the
// source location (file name and line) at which it occurred.
type Error struct {
	Loc     fileinput.Location
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Loc, e.Message)
}

// Strip removes `// … EOL`, `/* … */`, and `/** … */` comments from r,
// preserving all other whitespace and the contents of string literals
// (a `//` or `/*` inside a quoted string is not a comment). name is used
// only to tag error locations.
func Strip(r io.Reader, name string) (string, error) {
	var in fileinput.Input
	in.Queue = []io.Reader{namedReader{r, name}}

	var out strings.Builder
	var pending rune
	havePending := false

	next := func() (rune, error) {
		if havePending {
			havePending = false
			return pending, nil
		}
		r, _, err := in.ReadRune()
		return r, err
	}
	unread := func(r rune) {
		pending = r
		havePending = true
	}

	for {
		r, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		if r != '/' {
			if r == '"' {
				out.WriteRune(r)
				if err := copyStringLiteral(&out, next); err != nil {
					return "", &Error{Loc: in.Scan.Location, Message: err.Error()}
				}
				continue
			}
			out.WriteRune(r)
			continue
		}

		r2, err := next()
		if err == io.EOF {
			out.WriteRune(r)
			break
		}
		if err != nil {
			return "", err
		}

		switch r2 {
		case '/':
			for {
				r3, err := next()
				if err == io.EOF || r3 == '\n' {
					if r3 == '\n' {
						out.WriteRune('\n')
					}
					break
				}
				if err != nil {
					return "", err
				}
			}
		case '*':
			closed := false
			for {
				r3, err := next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return "", err
				}
				if r3 == '*' {
					r4, err := next()
					if err == io.EOF {
						break
					}
					if err != nil {
						return "", err
					}
					if r4 == '/' {
						closed = true
						break
					}
					unread(r4)
				}
			}
			if !closed {
				return "", &Error{Loc: in.Scan.Location, Message: "unterminated block comment"}
			}
		default:
			out.WriteRune(r)
			unread(r2)
		}
	}
	return out.String(), nil
}

func copyStringLiteral(out *strings.Builder, next func() (rune, error)) error {
	for {
		r, err := next()
		if err == io.EOF {
			return fmt.Errorf("unterminated string literal")
		}
		if err != nil {
			return err
		}
		out.WriteRune(r)
		if r == '"' {
			return nil
		}
		if r == '\n' {
			return fmt.Errorf("unterminated string literal")
		}
	}
}

type namedReader struct {
	io.Reader
	name string
}

func (nr namedReader) Name() string { return nr.name }
