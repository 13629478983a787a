package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/atlekbai/entityql/internal/eql"
)

type segment struct {
	text  string
	start int
	next  eql.BoolOp
}

// splitState partitions a query into statements using readAhead on the
// boolean operators.
type splitState struct {
	segs  []segment
	start int
}

func (*splitState) Kind() StateKind { return KindSplit }

func (s *splitState) HandleChar(p *Parser, ch rune) error {
	p.Push(newReadAhead("AND", "OR"))
	return p.Feed(ch)
}

func (s *splitState) Receive(p *Parser, r Result) error {
	op, _ := eql.ParseBoolOp(r.StopWord)
	s.segs = append(s.segs, segment{text: r.Prefix, start: s.start, next: op})
	s.start += utf8.RuneCountInString(r.Prefix) + utf8.RuneCountInString(r.StopWord)
	if r.Trigger >= 0 {
		s.start++
	}
	return nil
}

func (s *splitState) OnEnd(p *Parser) error {
	p.Pop()
	return nil
}

// ParseQuery parses a whole query into a chain. Statements are separated by
// whole-word AND / OR, matched case-insensitively. Every `?` must consume
// exactly one argument.
func ParseQuery(text string, args []any, d *Dispatcher) (eql.Chain, error) {
	p := New(args)
	if strings.TrimSpace(text) == "" {
		if len(args) > 0 {
			return nil, &eql.ParseError{Msg: "arguments given for an empty query"}
		}
		return eql.Chain{}, nil
	}

	split := &splitState{}
	if err := p.Run(text, split); err != nil {
		return nil, err
	}
	if last := split.segs[len(split.segs)-1]; last.next != eql.OpNone {
		split.segs = append(split.segs, segment{start: split.start})
	}

	chain := make(eql.Chain, 0, len(split.segs))
	for i, seg := range split.segs {
		lead := len(seg.text) - len(strings.TrimLeftFunc(seg.text, unicode.IsSpace))
		frag := strings.TrimSpace(seg.text)
		start := seg.start + utf8.RuneCountInString(seg.text[:lead])
		if frag == "" {
			msg := "empty statement"
			if i > 0 {
				msg = "empty statement after " + split.segs[i-1].next.String()
			}
			return nil, &eql.ParseError{Pos: start, Msg: msg}
		}
		p.setFragment(start, seg.next)
		e, err := d.Dispatch(p, frag)
		if err != nil {
			return nil, err
		}
		chain = append(chain, e)
	}

	if n := p.Remaining(); n > 0 {
		return nil, &eql.ParseError{Pos: utf8.RuneCountInString(text), Msg: strconv.Itoa(n) + " unused arguments"}
	}
	return chain, nil
}
