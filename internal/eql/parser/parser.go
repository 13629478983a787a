// Package parser implements the statement parser of the entity query
// language: a character driven pushdown automaton whose states are pushed and
// popped on an explicit stack, plus the handlers and dispatcher built on it.
package parser

import (
	"fmt"

	"github.com/atlekbai/entityql/internal/eql"
)

const (
	// NoChar is the trigger of a result whose final character was consumed.
	NoChar rune = -2
	// EOF is the trigger of a result completed by the end of input.
	EOF rune = -1
)

// StateKind enumerates the concrete parsing states.
type StateKind int

const (
	KindSkipSpace StateKind = iota
	KindAcceptLiteral
	KindReadVar
	KindReadAhead
	KindCapture
	KindSplit
	KindComparison
	KindRange
	KindTyped
)

func (k StateKind) String() string {
	switch k {
	case KindSkipSpace:
		return "skipSpace"
	case KindAcceptLiteral:
		return "acceptLiteral"
	case KindReadVar:
		return "readVar"
	case KindReadAhead:
		return "readAhead"
	case KindCapture:
		return "capture"
	case KindSplit:
		return "split"
	case KindComparison:
		return "comparison"
	case KindRange:
		return "range"
	case KindTyped:
		return "typed"
	}
	return fmt.Sprintf("StateKind(%d)", int(k))
}

// State is one entry of the parser stack. HandleChar consumes one rune and
// may push further states or pop itself. OnEnd is called at end of input
// and must pop the state or fail.
type State interface {
	Kind() StateKind
	HandleChar(p *Parser, ch rune) error
	OnEnd(p *Parser) error
}

// Receiver is implemented by states that accept results from a child.
type Receiver interface {
	Receive(p *Parser, r Result) error
}

// Result is what a completed child hands to the state beneath it.
type Result struct {
	Accepted bool
	Var      eql.ContextVariable
	Prefix   string
	StopWord string
	Expr     eql.Expression
	// Trigger is the rune that completed the child: a real rune the parent
	// should process, NoChar, or EOF.
	Trigger rune
}

// Parser feeds statement text to a stack of states. It binds `?` wildcards
// to the argument list in order of appearance. A Parser is not safe for
// concurrent use.
type Parser struct {
	args   []any
	cursor int

	stack []State

	text   string
	pos    int
	offset int
	next   eql.BoolOp
}

// New returns a parser over the positional arguments.
func New(args []any) *Parser {
	return &Parser{args: args}
}

func (p *Parser) Push(s State) { p.stack = append(p.stack, s) }

// Pop removes and returns the top state, or nil on an empty stack.
func (p *Parser) Pop() State {
	if len(p.stack) == 0 {
		return nil
	}
	top := p.stack[len(p.stack)-1]
	p.stack[len(p.stack)-1] = nil
	p.stack = p.stack[:len(p.stack)-1]
	return top
}

// Top returns the top state, or nil on an empty stack.
func (p *Parser) Top() State {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *Parser) Depth() int { return len(p.stack) }

// Cursor is the index of the next argument a wildcard will consume.
func (p *Parser) Cursor() int { return p.cursor }

func (p *Parser) SetCursor(c int) { p.cursor = c }

// Remaining is the number of arguments not yet consumed.
func (p *Parser) Remaining() int { return len(p.args) - p.cursor }

// Pos is the rune offset, within the whole query, of the rune being fed.
func (p *Parser) Pos() int { return p.offset + p.pos }

// Next is the chain operator following the statement being parsed.
func (p *Parser) Next() eql.BoolOp { return p.next }

// Text is the statement being parsed.
func (p *Parser) Text() string { return p.text }

// NextArg consumes the next positional argument.
func (p *Parser) NextArg() (eql.ContextVariable, error) {
	if p.cursor >= len(p.args) {
		return eql.ContextVariable{}, p.Errorf("no argument left for wildcard %d", p.cursor)
	}
	v := eql.Argument(p.cursor, p.args[p.cursor])
	p.cursor++
	return v, nil
}

// Errorf builds a ParseError at the current position.
func (p *Parser) Errorf(format string, args ...any) *eql.ParseError {
	return &eql.ParseError{Pos: p.Pos(), Fragment: p.text, Msg: fmt.Sprintf(format, args...)}
}

// Feed hands ch to the top state.
func (p *Parser) Feed(ch rune) error {
	top := p.Top()
	if top == nil {
		return p.Errorf("unexpected %q after end of statement", ch)
	}
	return top.HandleChar(p, ch)
}

// Complete pops the top state and delivers r to the state beneath it.
func (p *Parser) Complete(r Result) error {
	done := p.Pop()
	if done == nil {
		return fmt.Errorf("%w: complete on an empty stack", eql.ErrUnbalancedStack)
	}
	recv, ok := p.Top().(Receiver)
	if !ok {
		return fmt.Errorf("%w: %s completed with no receiver beneath it", eql.ErrUnbalancedStack, done.Kind())
	}
	return recv.Receive(p, r)
}

// Run pushes root and feeds it text. At end of input every state above the
// starting depth gets OnEnd until the stack is back at that depth. On failure
// the stack is truncated to the starting depth.
func (p *Parser) Run(text string, root State) (err error) {
	base := len(p.stack)
	p.text, p.pos = text, 0
	defer func() {
		if err != nil && len(p.stack) > base {
			clear(p.stack[base:])
			p.stack = p.stack[:base]
		}
	}()

	p.Push(root)
	for _, ch := range text {
		if len(p.stack) <= base {
			return p.Errorf("unexpected %q after end of statement", ch)
		}
		if err := p.Feed(ch); err != nil {
			return err
		}
		p.pos++
	}
	for len(p.stack) > base {
		depth := len(p.stack)
		top := p.Top()
		if err := top.OnEnd(p); err != nil {
			return err
		}
		if len(p.stack) >= depth && p.Top() == top {
			return p.Errorf("incomplete statement: %s did not finish", top.Kind())
		}
	}
	return nil
}

// setFragment positions the parser on a statement of a larger query.
func (p *Parser) setFragment(offset int, next eql.BoolOp) {
	p.offset, p.next = offset, next
}
