package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/atlekbai/entityql/internal/eql"
)

// --- Helpers ---

func mustParse(t *testing.T, text string, args ...any) eql.Chain {
	t.Helper()
	chain, err := ParseQuery(text, args, NewDispatcher(DefaultRegistry()))
	if err != nil {
		t.Fatalf("ParseQuery(%q) failed: %v", text, err)
	}
	return chain
}

func expectParseError(t *testing.T, text string, args []any, wantSubstr string) *eql.ParseError {
	t.Helper()
	_, err := ParseQuery(text, args, NewDispatcher(DefaultRegistry()))
	if err == nil {
		t.Fatalf("ParseQuery(%q): expected error containing %q, got nil", text, wantSubstr)
	}
	var pe *eql.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("ParseQuery(%q): expected *eql.ParseError, got %T: %v", text, err, err)
	}
	if !strings.Contains(err.Error(), wantSubstr) {
		t.Fatalf("ParseQuery(%q): expected error containing %q, got %q", text, wantSubstr, err.Error())
	}
	return pe
}

func attr(path string) eql.ContextVariable { return eql.AttributeRef(path) }

func arg(pos int, v any) *eql.ContextVariable {
	a := eql.Argument(pos, v)
	return &a
}

func single(t *testing.T, chain eql.Chain) eql.Expression {
	t.Helper()
	if len(chain) != 1 {
		t.Fatalf("expected 1 expression, got %d", len(chain))
	}
	return chain[0]
}

// --- Scenarios ---

func TestParseScenarios(t *testing.T) {
	tests := []struct {
		name string
		text string
		args []any
		want eql.Expression
	}{
		{
			name: "greater equal",
			text: "age >= ?",
			args: []any{18},
			want: &eql.Comparison{
				Link: eql.Link{Source: "age >= ?"},
				Left: attr("age"), Right: *arg(0, 18), Kind: eql.CompareGreaterEqual,
			},
		},
		{
			name: "negated greater equal",
			text: "!age >= ?",
			args: []any{18},
			want: &eql.Comparison{
				Link: eql.Link{Source: "!age >= ?"},
				Left: attr("age"), Right: *arg(0, 18), Kind: eql.CompareGreaterEqual, Negated: true,
			},
		},
		{
			name: "range",
			text: "age INRANGE ?,?",
			args: []any{18, 65},
			want: &eql.InRange{
				Link:  eql.Link{Source: "age INRANGE ?,?"},
				Field: attr("age"), Lower: arg(0, 18), Upper: arg(1, 65),
			},
		},
		{
			name: "negated range",
			text: "!age INRANGE ?,?",
			args: []any{18, 65},
			want: &eql.InRange{
				Link:  eql.Link{Source: "!age INRANGE ?,?"},
				Field: attr("age"), Lower: arg(0, 18), Upper: arg(1, 65), Negated: true,
			},
		},
		{
			name: "typed",
			text: "customer TYPED ?",
			args: []any{"PremiumCustomer"},
			want: &eql.Typed{
				Link:     eql.Link{Source: "customer TYPED ?"},
				Field:    attr("customer.id"),
				TypeName: "PremiumCustomer",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := single(t, mustParse(t, tt.text, tt.args...))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNullRejectedWhenDisallowed(t *testing.T) {
	reg := DefaultRegistry()
	reg.Register(Equal().WithAllowNull(false))

	_, err := ParseQuery("name == ?", []any{nil}, NewDispatcher(reg))
	if !eql.IsParseError(err) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !strings.Contains(err.Error(), "null argument") {
		t.Fatalf("expected null argument error, got %q", err.Error())
	}
}

func TestNullAllowedForEquality(t *testing.T) {
	c := single(t, mustParse(t, "name == ?", nil)).(*eql.Comparison)
	if c.Right.Value != nil || !c.Right.IsArgument() {
		t.Fatalf("expected nil argument, got %+v", c.Right)
	}
	expectParseError(t, "age > ?", []any{nil}, "null argument")
}

// --- Comparisons ---

func TestComparisonForms(t *testing.T) {
	tests := []struct {
		text    string
		kind    eql.CompareKind
		negated bool
	}{
		{"a == ?", eql.CompareEqual, false},
		{"a != ?", eql.CompareEqual, true},
		{"a !== ?", eql.CompareEqual, true},
		{"!a == ?", eql.CompareEqual, true},
		{"a > ?", eql.CompareGreater, false},
		{"a < ?", eql.CompareLower, false},
		{"a >= ?", eql.CompareGreaterEqual, false},
		{"a <= ?", eql.CompareLowerEqual, false},
		{"a !<= ?", eql.CompareLowerEqual, true},
		{"a>=?", eql.CompareGreaterEqual, false},
		{"a<?", eql.CompareLower, false},
		{"  a   ==   ?  ", eql.CompareEqual, false},
	}
	for _, tt := range tests {
		c, ok := single(t, mustParse(t, tt.text, 1)).(*eql.Comparison)
		if !ok {
			t.Fatalf("%q: expected *eql.Comparison", tt.text)
		}
		if c.Kind != tt.kind || c.Negated != tt.negated {
			t.Errorf("%q: got kind=%v negated=%v", tt.text, c.Kind, c.Negated)
		}
		if c.Left != attr("a") {
			t.Errorf("%q: unexpected left %+v", tt.text, c.Left)
		}
	}
}

func TestComparisonOperands(t *testing.T) {
	c := single(t, mustParse(t, "? < order.total", 5)).(*eql.Comparison)
	if !c.Left.IsArgument() || c.Right != attr("order.total") {
		t.Fatalf("expected argument on the left, got %+v", c)
	}

	c = single(t, mustParse(t, "placed >= customer.born")).(*eql.Comparison)
	if c.Left != attr("placed") || c.Right != attr("customer.born") {
		t.Fatalf("expected two attributes, got %+v", c)
	}
}

func TestComparisonErrors(t *testing.T) {
	tests := []struct {
		text string
		args []any
		want string
	}{
		{"a", nil, "missing operator"},
		{"a ?", []any{1}, "expected"},
		{"a ==", nil, "expected attribute path"},
		{"1a == ?", []any{1}, "cannot start with"},
		{"a..b == ?", []any{1}, "empty segment"},
		{"? == ?", []any{1, 2}, "needs an attribute operand"},
		{"!a !== ?", []any{1}, "negated twice"},
		{"!a != ?", []any{1}, "negated twice"},
		{"a == ? b", []any{1}, "after statement"},
		{"a == ?", nil, "no argument left"},
		{"a == ?", []any{1, 2}, "unused arguments"},
	}
	for _, tt := range tests {
		expectParseError(t, tt.text, tt.args, tt.want)
	}
}

// --- Range and type tests ---

func TestRangeBounds(t *testing.T) {
	r := single(t, mustParse(t, "age INRANGE ?,?", nil, 65)).(*eql.InRange)
	if r.Lower != nil || r.Upper == nil || r.Upper.Value != 65 {
		t.Fatalf("expected upper bound only, got %+v", r)
	}
	r = single(t, mustParse(t, "age inrange ? , ?", 18, nil)).(*eql.InRange)
	if r.Upper != nil || r.Lower == nil || r.Lower.Value != 18 {
		t.Fatalf("expected lower bound only, got %+v", r)
	}
	r = single(t, mustParse(t, "age !INRANGE ?,?", 1, 2)).(*eql.InRange)
	if !r.Negated {
		t.Fatal("expected marker negation")
	}
}

func TestRangeErrors(t *testing.T) {
	tests := []struct {
		text string
		args []any
		want string
	}{
		{"age INRANGE ?", []any{1}, "exactly 2 operands"},
		{"age INRANGE ?,?,?", []any{1, 2, 3}, "exactly 2 operands"},
		{"age INRANGE ?,?", []any{nil, nil}, "at least one"},
		{"age INRANGE ?,other", []any{1}, "must be an argument"},
		{"? INRANGE ?,?", []any{1, 2, 3}, "field must be an attribute"},
		{"age INRANGE ? ?", []any{1, 2}, "expected ','"},
		{"!age !INRANGE ?,?", []any{1, 2}, "negated twice"},
	}
	for _, tt := range tests {
		expectParseError(t, tt.text, tt.args, tt.want)
	}
}

func TestTypedErrors(t *testing.T) {
	tests := []struct {
		text string
		args []any
		want string
	}{
		{"customer TYPED ?", []any{5}, "non-empty string"},
		{"customer TYPED ?", []any{""}, "non-empty string"},
		{"customer TYPED other", nil, "expects an argument"},
		{"!customer TYPED ?", []any{"Customer"}, "cannot be negated"},
		{"customer !TYPED ?", []any{"Customer"}, "cannot be negated"},
	}
	for _, tt := range tests {
		expectParseError(t, tt.text, tt.args, tt.want)
	}
}

// --- Chains ---

func TestChainOperators(t *testing.T) {
	chain := mustParse(t, "a == ? AND b > ? or c INRANGE ?,? and d TYPED ?", 1, 2, 3, 4, "X")
	if len(chain) != 4 {
		t.Fatalf("expected 4 expressions, got %d", len(chain))
	}
	wantOps := []eql.BoolOp{eql.OpAnd, eql.OpOr, eql.OpAnd, eql.OpNone}
	wantSrc := []string{"a == ?", "b > ?", "c INRANGE ?,?", "d TYPED ?"}
	for i, e := range chain {
		if e.NextOp() != wantOps[i] {
			t.Errorf("expr %d: expected %v, got %v", i, wantOps[i], e.NextOp())
		}
		if e.Fragment() != wantSrc[i] {
			t.Errorf("expr %d: expected source %q, got %q", i, wantSrc[i], e.Fragment())
		}
	}

	groups := chain.Groups()
	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 2 {
		t.Fatalf("expected two AND groups of two, got %v", groups)
	}
}

func TestChainKeepsOperatorLikePaths(t *testing.T) {
	chain := mustParse(t, "android == ? AND brand.order == ?", 1, 2)
	if len(chain) != 2 {
		t.Fatalf("expected 2 expressions, got %d", len(chain))
	}
}

func TestEmptyQuery(t *testing.T) {
	if chain := mustParse(t, "   "); len(chain) != 0 {
		t.Fatalf("expected empty chain, got %v", chain)
	}
	expectParseError(t, "", []any{1}, "empty query")
}

func TestChainErrors(t *testing.T) {
	expectParseError(t, "a == ? AND", []any{1}, "empty statement after AND")
	expectParseError(t, "a == ? OR  ", []any{1}, "empty statement after OR")
	expectParseError(t, "AND a == ?", []any{1}, "empty statement")
	expectParseError(t, "a == ? AND AND b == ?", []any{1, 2}, "empty statement")
}

func TestErrorPositionIsAbsolute(t *testing.T) {
	pe := expectParseError(t, "a == ? AND 1b == ?", []any{1, 2}, "cannot start with")
	if pe.Pos != 11 {
		t.Fatalf("expected position 11, got %d", pe.Pos)
	}
	if pe.Fragment != "1b == ?" {
		t.Fatalf("expected fragment %q, got %q", "1b == ?", pe.Fragment)
	}
}

func TestFurthestErrorWins(t *testing.T) {
	// Comparison handlers fail at the keyword; INRANGE fails at the end.
	pe := expectParseError(t, "age INRANGE ?", []any{1}, "exactly 2 operands")
	if pe.Pos != 13 {
		t.Fatalf("expected position 13, got %d", pe.Pos)
	}
}
