package eql

import (
	"errors"
	"fmt"
)

// ErrUnbalancedStack reports a statement handler that left residue on the
// parser state stack. It is a programming error and aborts compilation.
var ErrUnbalancedStack = errors.New("eql: unbalanced parser state stack")

// ParseError is a Query Parsing Error: malformed statement text.
type ParseError struct {
	Pos      int    // rune offset into the query text
	Fragment string // statement being parsed
	Msg      string
}

func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("parse error at %d in %q: %s", e.Pos, e.Fragment, e.Msg)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
