package parser

import (
	"strings"
	"unicode"

	"github.com/atlekbai/entityql/internal/eql"
)

// stopChars end an operand without surrounding whitespace.
const stopChars = "=<>!,"

func isStop(ch rune) bool { return ch >= 0 && strings.ContainsRune(stopChars, ch) }

func isSpace(ch rune) bool { return ch >= 0 && unicode.IsSpace(ch) }

func isIdentStart(ch rune) bool { return ch == '_' || unicode.IsLetter(ch) }

func isIdent(ch rune) bool { return isIdentStart(ch) || unicode.IsDigit(ch) }

// skipSpace swallows whitespace and re-feeds the first other rune to the
// state beneath it.
type skipSpace struct{}

func (skipSpace) Kind() StateKind { return KindSkipSpace }

func (skipSpace) HandleChar(p *Parser, ch rune) error {
	if isSpace(ch) {
		return nil
	}
	p.Pop()
	return p.Feed(ch)
}

func (skipSpace) OnEnd(p *Parser) error {
	p.Pop()
	return nil
}

// acceptLiteral matches a keyword. Word keywords match case-insensitively and
// must be followed by whitespace or end of input; the boundary rune is the
// trigger. Symbol keywords complete on their last rune.
type acceptLiteral struct {
	lit  []rune
	word bool
	n    int
}

func newLiteral(lit string) *acceptLiteral {
	word := true
	for _, r := range lit {
		if !unicode.IsLetter(r) {
			word = false
		}
	}
	return &acceptLiteral{lit: []rune(lit), word: word}
}

func (*acceptLiteral) Kind() StateKind { return KindAcceptLiteral }

func (a *acceptLiteral) HandleChar(p *Parser, ch rune) error {
	if a.n == len(a.lit) {
		return p.Complete(Result{Accepted: isSpace(ch), Trigger: ch})
	}
	want := a.lit[a.n]
	if ch != want && !(a.word && unicode.ToUpper(ch) == unicode.ToUpper(want)) {
		return p.Complete(Result{Accepted: false, Trigger: ch})
	}
	a.n++
	if a.n == len(a.lit) && !a.word {
		return p.Complete(Result{Accepted: true, Trigger: NoChar})
	}
	return nil
}

func (a *acceptLiteral) OnEnd(p *Parser) error {
	return p.Complete(Result{Accepted: a.n == len(a.lit), Trigger: EOF})
}

// readVar reads one operand: the `?` wildcard or an attribute path. It stops
// at whitespace, a stop character or end of input.
type readVar struct {
	buf      []rune
	wildcard bool
}

func (*readVar) Kind() StateKind { return KindReadVar }

func (r *readVar) HandleChar(p *Parser, ch rune) error {
	switch {
	case isSpace(ch) || isStop(ch):
		if r.empty() {
			return p.Errorf("expected attribute path or ?, got %q", ch)
		}
		return r.finish(p, ch)
	case r.wildcard:
		return p.Errorf("unexpected %q after ?", ch)
	case ch == '?' && r.empty():
		r.wildcard = true
		return nil
	case isIdent(ch) || ch == '.':
		if r.empty() && !isIdentStart(ch) {
			return p.Errorf("attribute path cannot start with %q", ch)
		}
		r.buf = append(r.buf, ch)
		return nil
	}
	return p.Errorf("unexpected %q in operand", ch)
}

func (r *readVar) OnEnd(p *Parser) error {
	if r.empty() {
		return p.Errorf("expected attribute path or ?")
	}
	return r.finish(p, EOF)
}

func (r *readVar) empty() bool { return !r.wildcard && len(r.buf) == 0 }

func (r *readVar) finish(p *Parser, trigger rune) error {
	var v eql.ContextVariable
	if r.wildcard {
		arg, err := p.NextArg()
		if err != nil {
			return err
		}
		v = arg
	} else {
		path := string(r.buf)
		for _, seg := range strings.Split(path, ".") {
			if seg == "" {
				return p.Errorf("empty segment in attribute path %q", path)
			}
			if unicode.IsDigit([]rune(seg)[0]) {
				return p.Errorf("segment %q of %q starts with a digit", seg, path)
			}
		}
		v = eql.AttributeRef(path)
	}
	return p.Complete(Result{Var: v, Trigger: trigger})
}

// readAhead buffers runes until one of the stop words appears as a whole
// whitespace-delimited token. It hands up the text before the token, the
// token and the rune that ended it. The ending rune is consumed.
type readAhead struct {
	words []string
	buf   []rune
	tok   int // start of the current token in buf
}

func newReadAhead(words ...string) *readAhead {
	return &readAhead{words: words}
}

func (*readAhead) Kind() StateKind { return KindReadAhead }

func (r *readAhead) HandleChar(p *Parser, ch rune) error {
	if isSpace(ch) {
		if w, ok := r.stopWord(); ok {
			return r.finish(p, w, ch)
		}
		r.buf = append(r.buf, ch)
		r.tok = len(r.buf)
		return nil
	}
	r.buf = append(r.buf, ch)
	return nil
}

func (r *readAhead) OnEnd(p *Parser) error {
	if w, ok := r.stopWord(); ok {
		return r.finish(p, w, EOF)
	}
	return p.Complete(Result{Prefix: string(r.buf), Trigger: EOF})
}

func (r *readAhead) stopWord() (string, bool) {
	tok := string(r.buf[r.tok:])
	for _, w := range r.words {
		if strings.EqualFold(tok, w) {
			return w, true
		}
	}
	return "", false
}

func (r *readAhead) finish(p *Parser, word string, trigger rune) error {
	return p.Complete(Result{Prefix: string(r.buf[:r.tok]), StopWord: word, Trigger: trigger})
}

// capture sits beneath a handler and keeps the expression it produces.
type capture struct {
	expr eql.Expression
}

func (*capture) Kind() StateKind { return KindCapture }

func (c *capture) HandleChar(p *Parser, ch rune) error {
	return p.Errorf("unexpected %q after end of statement", ch)
}

func (c *capture) OnEnd(*Parser) error { return nil }

func (c *capture) Receive(_ *Parser, r Result) error {
	c.expr = r.Expr
	return nil
}
