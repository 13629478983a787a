// Package compiler turns query text against a deployed schema into SQL for
// one database dialect.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atlekbai/entityql/internal/binding"
	"github.com/atlekbai/entityql/internal/eql"
	"github.com/atlekbai/entityql/internal/eql/parser"
	"github.com/atlekbai/entityql/internal/eql/sqlcond"
	"github.com/atlekbai/entityql/internal/mediator"
	"github.com/atlekbai/entityql/internal/query"
	"github.com/atlekbai/entityql/internal/schema"
	"github.com/atlekbai/entityql/internal/vendor"
)

var ErrUnknownSchema = errors.New("unknown schema")

// SchemaSource looks up deployed schemas. *schema.Cache satisfies it.
type SchemaSource interface {
	Get(name string) *schema.Schema
}

type Option func(*Compiler)

func WithDialect(d *vendor.Dialect) Option {
	return func(c *Compiler) { c.dialect = d }
}

func WithMediators(r *mediator.Registry) Option {
	return func(c *Compiler) { c.mediators = r }
}

// WithHandlers replaces the default statement handlers.
func WithHandlers(r *parser.Registry) Option {
	return func(c *Compiler) { c.handlers = r }
}

// Compiler is safe for concurrent use.
type Compiler struct {
	schemas    SchemaSource
	dialect    *vendor.Dialect
	mediators  *mediator.Registry
	handlers   *parser.Registry
	dispatcher *parser.Dispatcher
}

func New(schemas SchemaSource, opts ...Option) *Compiler {
	c := &Compiler{schemas: schemas}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialect == nil {
		c.dialect = vendor.Postgres()
	}
	if c.mediators == nil {
		c.mediators = mediator.NewRegistry()
	}
	if c.handlers == nil {
		c.handlers = parser.DefaultRegistry()
	}
	c.dispatcher = parser.NewDispatcher(c.handlers)
	c.dispatcher.Observe = func(a parser.Attempt) {
		dispatchCount.WithLabelValues(a.Handler, strconv.FormatBool(a.OK)).Inc()
	}
	return c
}

// Dialect returns the dialect SQL is rendered for.
func (c *Compiler) Dialect() *vendor.Dialect { return c.dialect }

// Request names the root entity and the query over it.
type Request struct {
	Schema string
	Entity string
	Query  string
	Args   []any
	// Prefix roots attribute paths below the entity, e.g. "customer" for a
	// query written against an order but planned from the customer.
	Prefix string
	// Count renders SELECT count(*) instead of the entity identities.
	Count bool
}

// Result is a compiled query.
type Result struct {
	SQL      string
	Args     []any
	Required map[string][]string
	Chain    eql.Chain
	Plan     *query.Plan
}

func (c *Compiler) Compile(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() {
		compileDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if IsUserError(err) {
				outcome = "rejected"
			}
		}
		compileCount.WithLabelValues(outcome).Inc()
	}()

	s := c.schemas.Get(req.Schema)
	if s == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownSchema, req.Schema)
	}
	root := s.Type(req.Entity)
	if root == nil {
		return nil, fmt.Errorf("entity %q: %w", req.Entity, schema.ErrUnknownHolder)
	}

	chain, err := parser.ParseQuery(req.Query, req.Args, c.dispatcher)
	if err != nil {
		return nil, err
	}
	required := eql.Collect(chain, req.Prefix)

	plan, err := query.Build(s, root, required, c.dialect.Idents)
	if err != nil {
		return nil, err
	}
	mapper := sqlcond.New(sqlcond.WithPrefix(req.Prefix), sqlcond.WithMediators(c.mediators))
	cond, err := mapper.Map(chain, plan.Root)
	if err != nil {
		return nil, err
	}

	qb := plan.Select(cond)
	if req.Count {
		qb = plan.Count(cond)
	}
	sql, args, err := qb.PlaceholderFormat(c.dialect.Placeholder).ToSql()
	if err != nil {
		return nil, fmt.Errorf("render sql: %w", err)
	}

	log.Ctx(ctx).Debug().
		Str("schema", req.Schema).
		Str("entity", req.Entity).
		Str("sql", sql).
		Int("joins", len(plan.Joins)).
		Msg("compiled query")

	return &Result{SQL: sql, Args: args, Required: required, Chain: chain, Plan: plan}, nil
}

// Count compiles req as a count and runs it inside tx. Driver failures are
// classified by the dialect's error mapper.
func (c *Compiler) Count(ctx context.Context, tx vendor.TxTemplate, req Request) (int64, error) {
	req.Count = true
	res, err := c.Compile(ctx, req)
	if err != nil {
		return 0, err
	}
	n, err := vendor.InTx(ctx, tx, func(ctx context.Context, q vendor.Querier) (int64, error) {
		var n int64
		err := q.QueryRow(ctx, res.SQL, res.Args...).Scan(&n)
		return n, err
	})
	if err != nil {
		return 0, c.dialect.Errors.Map(err, c.constraints(req.Schema))
	}
	return n, nil
}

func (c *Compiler) constraints(name string) []string {
	s := c.schemas.Get(name)
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Constraints()))
	for _, u := range s.Constraints() {
		out = append(out, c.dialect.Idents.Normalize(u.Name))
	}
	return out
}

// IsUserError reports whether err stems from the query or its arguments
// rather than from the process or the database.
func IsUserError(err error) bool {
	return eql.IsParseError(err) ||
		errors.Is(err, ErrUnknownSchema) ||
		errors.Is(err, schema.ErrUnknownHolder) ||
		errors.Is(err, schema.ErrAmbiguousAttribute) ||
		errors.Is(err, binding.ErrUnresolved) ||
		errors.Is(err, sqlcond.ErrTypeMismatch) ||
		errors.Is(err, sqlcond.ErrNullOrdering) ||
		errors.Is(err, mediator.ErrInvalidValue)
}
