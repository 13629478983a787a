package parser

import (
	"github.com/atlekbai/entityql/internal/eql"
	"github.com/atlekbai/entityql/internal/schema"
)

const (
	KeywordInRange = "INRANGE"
	KeywordTyped   = "TYPED"
)

// Handler turns one statement into an expression. Start returns a fresh root
// state for a single attempt.
type Handler interface {
	Name() string
	Start() State
}

// ComparisonHandler parses `<operand> [!]<keyword> <operand>`.
type ComparisonHandler struct {
	keyword   string
	kind      eql.CompareKind
	negated   bool
	allowNull bool
}

func Equal() *ComparisonHandler {
	return &ComparisonHandler{keyword: "==", kind: eql.CompareEqual, allowNull: true}
}

// NotEqual is the negated form of Equal spelled with its own keyword.
func NotEqual() *ComparisonHandler {
	return &ComparisonHandler{keyword: "!=", kind: eql.CompareEqual, negated: true, allowNull: true}
}

func Greater() *ComparisonHandler {
	return &ComparisonHandler{keyword: ">", kind: eql.CompareGreater}
}

func Lower() *ComparisonHandler {
	return &ComparisonHandler{keyword: "<", kind: eql.CompareLower}
}

func GreaterEqual() *ComparisonHandler {
	return &ComparisonHandler{keyword: ">=", kind: eql.CompareGreaterEqual}
}

func LowerEqual() *ComparisonHandler {
	return &ComparisonHandler{keyword: "<=", kind: eql.CompareLowerEqual}
}

// WithAllowNull returns a copy of h that accepts or rejects nil arguments.
func (h ComparisonHandler) WithAllowNull(on bool) *ComparisonHandler {
	h.allowNull = on
	return &h
}

func (h *ComparisonHandler) Name() string { return h.keyword }

func (h *ComparisonHandler) Start() State {
	return &comparisonState{
		head: head{keyword: h.keyword, negatable: true, marker: !h.negated},
		h:    h,
	}
}

// RangeHandler parses `<attr> [!]INRANGE <arg>,<arg>`.
type RangeHandler struct{}

func InRange() RangeHandler { return RangeHandler{} }

func (RangeHandler) Name() string { return KeywordInRange }

func (RangeHandler) Start() State {
	return &rangeState{head: head{keyword: KeywordInRange, negatable: true, marker: true}}
}

// TypedHandler parses `<attr> TYPED <arg>`.
type TypedHandler struct{}

func TypedTest() TypedHandler { return TypedHandler{} }

func (TypedHandler) Name() string { return KeywordTyped }

func (TypedHandler) Start() State {
	return &typedState{head: head{keyword: KeywordTyped, marker: true}}
}

// DefaultHandlers returns the standard handler set. Equality tolerates null
// arguments, ordering comparisons do not.
func DefaultHandlers() []Handler {
	return []Handler{
		Equal(),
		NotEqual(),
		GreaterEqual(),
		LowerEqual(),
		Greater(),
		Lower(),
		InRange(),
		TypedTest(),
	}
}

type phase int

const (
	phaseStart phase = iota
	phaseLeft
	phaseOperator
	phaseKeyword
	phaseOperands
)

// head parses the part shared by every statement: an optional leading `!`,
// the left operand, an optional `!` marker and the keyword. After the keyword
// it pushes a reader for the first operand.
type head struct {
	keyword   string
	negatable bool
	marker    bool

	phase   phase
	leadNeg bool
	markNeg bool
	left    eql.ContextVariable
}

func (h *head) negated() bool { return h.leadNeg || h.markNeg }

func (h *head) negatedTwice() bool { return h.leadNeg && h.markNeg }

func (h *head) handleChar(p *Parser, ch rune) error {
	switch h.phase {
	case phaseStart:
		if isSpace(ch) {
			return nil
		}
		if ch == '!' && !h.leadNeg {
			h.leadNeg = true
			return nil
		}
		h.phase = phaseLeft
		p.Push(&readVar{})
		return p.Feed(ch)

	case phaseOperator:
		if ch == '!' && h.marker && !h.markNeg {
			h.markNeg = true
			return nil
		}
		h.phase = phaseKeyword
		p.Push(newLiteral(h.keyword))
		return p.Feed(ch)
	}
	return p.Errorf("unexpected %q", ch)
}

func (h *head) receive(p *Parser, r Result) error {
	switch h.phase {
	case phaseLeft:
		h.left = r.Var
		h.phase = phaseOperator
		if r.Trigger < 0 {
			return nil
		}
		p.Push(skipSpace{})
		return p.Feed(r.Trigger)

	case phaseKeyword:
		if !r.Accepted {
			return p.Errorf("expected %q", h.keyword)
		}
		if !h.negatable && h.negated() {
			return p.Errorf("%s cannot be negated", h.keyword)
		}
		h.phase = phaseOperands
		p.Push(&readVar{})
		p.Push(skipSpace{})
		if r.Trigger < 0 {
			return nil
		}
		return p.Feed(r.Trigger)
	}
	return p.Errorf("unexpected result in %v", h.phase)
}

func (h *head) onEnd(p *Parser) error {
	switch h.phase {
	case phaseStart:
		return p.Errorf("empty statement")
	case phaseOperator:
		return p.Errorf("missing operator %q after %s", h.keyword, h.left)
	}
	return p.Errorf("incomplete statement, expected %q", h.keyword)
}

// trailing accepts whitespace after the last operand.
func trailing(p *Parser, ch rune) error {
	if isSpace(ch) {
		return nil
	}
	return p.Errorf("unexpected %q after statement", ch)
}

func (*head) link(p *Parser) eql.Link {
	return eql.Link{Next: p.Next(), Source: p.Text()}
}

type comparisonState struct {
	head
	h     *ComparisonHandler
	right eql.ContextVariable
	done  bool
}

func (*comparisonState) Kind() StateKind { return KindComparison }

func (s *comparisonState) HandleChar(p *Parser, ch rune) error {
	if s.phase < phaseOperands {
		return s.handleChar(p, ch)
	}
	return trailing(p, ch)
}

func (s *comparisonState) Receive(p *Parser, r Result) error {
	if s.phase < phaseOperands {
		return s.receive(p, r)
	}
	s.right, s.done = r.Var, true
	if r.Trigger >= 0 {
		return trailing(p, r.Trigger)
	}
	return nil
}

func (s *comparisonState) OnEnd(p *Parser) error {
	if !s.done {
		return s.onEnd(p)
	}
	if s.left.IsArgument() && s.right.IsArgument() {
		return p.Errorf("%s needs an attribute operand", s.keyword)
	}
	if !s.h.allowNull {
		for _, v := range []eql.ContextVariable{s.left, s.right} {
			if v.IsArgument() && v.Value == nil {
				return p.Errorf("null argument %s not allowed for %s", v, s.keyword)
			}
		}
	}
	if s.negatedTwice() || s.h.negated && s.negated() {
		return p.Errorf("statement negated twice")
	}
	return p.Complete(Result{Trigger: EOF, Expr: &eql.Comparison{
		Link:    s.link(p),
		Left:    s.left,
		Right:   s.right,
		Kind:    s.h.kind,
		Negated: s.h.negated || s.negated(),
	}})
}

type rangeStep int

const (
	stepLower rangeStep = iota
	stepComma
	stepUpper
	stepDone
)

type rangeState struct {
	head
	step  rangeStep
	lower eql.ContextVariable
	upper eql.ContextVariable
}

func (*rangeState) Kind() StateKind { return KindRange }

func (s *rangeState) HandleChar(p *Parser, ch rune) error {
	if s.phase < phaseOperands {
		return s.handleChar(p, ch)
	}
	switch {
	case s.step == stepComma && ch == ',':
		return s.readUpper(p)
	case s.step == stepComma && isSpace(ch):
		return nil
	case s.step == stepComma:
		return p.Errorf("expected ',' between %s bounds, got %q", KeywordInRange, ch)
	case ch == ',':
		return s.arity(p)
	}
	return trailing(p, ch)
}

func (s *rangeState) Receive(p *Parser, r Result) error {
	if s.phase < phaseOperands {
		return s.receive(p, r)
	}
	switch s.step {
	case stepLower:
		s.lower, s.step = r.Var, stepComma
		switch {
		case r.Trigger == ',':
			return s.readUpper(p)
		case r.Trigger < 0 || isSpace(r.Trigger):
			return nil
		}
		return p.Errorf("expected ',' between %s bounds, got %q", KeywordInRange, r.Trigger)
	case stepUpper:
		s.upper, s.step = r.Var, stepDone
		if r.Trigger == ',' {
			return s.arity(p)
		}
		if r.Trigger >= 0 {
			return trailing(p, r.Trigger)
		}
		return nil
	}
	return p.Errorf("unexpected operand %s", r.Var)
}

func (s *rangeState) readUpper(p *Parser) error {
	s.step = stepUpper
	p.Push(&readVar{})
	p.Push(skipSpace{})
	return nil
}

func (s *rangeState) arity(p *Parser) error {
	return p.Errorf("%s takes exactly 2 operands", KeywordInRange)
}

func (s *rangeState) OnEnd(p *Parser) error {
	if s.phase < phaseOperands {
		return s.onEnd(p)
	}
	if s.step != stepDone {
		return s.arity(p)
	}
	if s.negatedTwice() {
		return p.Errorf("statement negated twice")
	}
	if !s.left.IsAttribute() {
		return p.Errorf("%s field must be an attribute path, got %s", KeywordInRange, s.left)
	}
	lower, err := s.bound(p, s.lower)
	if err != nil {
		return err
	}
	upper, err := s.bound(p, s.upper)
	if err != nil {
		return err
	}
	if lower == nil && upper == nil {
		return p.Errorf("%s needs at least one non-null bound", KeywordInRange)
	}
	return p.Complete(Result{Trigger: EOF, Expr: &eql.InRange{
		Link:    s.link(p),
		Field:   s.left,
		Lower:   lower,
		Upper:   upper,
		Negated: s.negated(),
	}})
}

func (s *rangeState) bound(p *Parser, v eql.ContextVariable) (*eql.ContextVariable, error) {
	if !v.IsArgument() {
		return nil, p.Errorf("%s bound must be an argument, got %s", KeywordInRange, v)
	}
	if v.Value == nil {
		return nil, nil
	}
	return &v, nil
}

type typedState struct {
	head
	typeName string
	done     bool
}

func (*typedState) Kind() StateKind { return KindTyped }

func (s *typedState) HandleChar(p *Parser, ch rune) error {
	if s.phase < phaseOperands {
		return s.handleChar(p, ch)
	}
	return trailing(p, ch)
}

func (s *typedState) Receive(p *Parser, r Result) error {
	if s.phase < phaseOperands {
		return s.receive(p, r)
	}
	if !r.Var.IsArgument() {
		return p.Errorf("%s expects an argument naming a type, got %s", KeywordTyped, r.Var)
	}
	name, ok := r.Var.Value.(string)
	if !ok || name == "" {
		return p.Errorf("%s expects a non-empty string argument, got %T", KeywordTyped, r.Var.Value)
	}
	s.typeName, s.done = name, true
	if r.Trigger >= 0 {
		return trailing(p, r.Trigger)
	}
	return nil
}

func (s *typedState) OnEnd(p *Parser) error {
	if !s.done {
		return s.onEnd(p)
	}
	if !s.left.IsAttribute() {
		return p.Errorf("%s field must be an attribute path, got %s", KeywordTyped, s.left)
	}
	return p.Complete(Result{Trigger: EOF, Expr: &eql.Typed{
		Link:     s.link(p),
		Field:    eql.AttributeRef(s.left.Path + "." + schema.IdentityAttribute),
		TypeName: s.typeName,
	}})
}
