package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/atlekbai/entityql/internal/compiler"
	"github.com/atlekbai/entityql/internal/vendor"
)

const (
	QueryServiceName = "entityql.v1.QueryService"

	CompileProcedure = "/" + QueryServiceName + "/Compile"
	CountProcedure   = "/" + QueryServiceName + "/Count"
	SchemasProcedure = "/" + QueryServiceName + "/ListSchemas"
	ReloadProcedure  = "/" + QueryServiceName + "/Reload"
)

// Catalog lists deployed schemas. *schema.Cache satisfies it.
type Catalog interface {
	Names() []string
}

// Reloader refreshes the deployed schemas from their source.
type Reloader func(ctx context.Context) error

// QueryService exposes the compiler over connect. Messages are
// google.protobuf.Struct so any connect, gRPC or JSON client can call it
// without generated stubs.
type QueryService struct {
	compiler *compiler.Compiler
	catalog  Catalog
	tx       vendor.TxTemplate
	reload   Reloader
}

type Option func(*QueryService)

// WithTx enables Count, which runs compiled queries inside tx.
func WithTx(tx vendor.TxTemplate) Option {
	return func(s *QueryService) { s.tx = tx }
}

// WithReloader enables Reload.
func WithReloader(r Reloader) Option {
	return func(s *QueryService) { s.reload = r }
}

func NewQueryService(c *compiler.Compiler, catalog Catalog, opts ...Option) *QueryService {
	s := &QueryService{compiler: c, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QueryService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	opts := connect.WithInterceptors(interceptors...)
	mux := http.NewServeMux()
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.Compile, opts))
	mux.Handle(CountProcedure, connect.NewUnaryHandler(CountProcedure, s.Count, opts))
	mux.Handle(SchemasProcedure, connect.NewUnaryHandler(SchemasProcedure, s.ListSchemas, opts))
	mux.Handle(ReloadProcedure, connect.NewUnaryHandler(ReloadProcedure, s.Reload, opts))
	return "/" + QueryServiceName + "/", mux
}

// Compile takes {schema, entity, query, args, prefix, count} and answers
// {sql, args, required, dialect}.
func (s *QueryService) Compile(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	creq, err := compileRequest(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	res, err := s.compiler.Compile(ctx, creq)
	if err != nil {
		return nil, compileError(err)
	}

	args, err := wireArgs(res.Args)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	required := make(map[string]any, len(res.Required))
	for prefix, names := range res.Required {
		list := make([]any, len(names))
		for i, n := range names {
			list[i] = n
		}
		required[prefix] = list
	}

	out, err := structpb.NewStruct(map[string]any{
		"sql":      res.SQL,
		"args":     args,
		"required": required,
		"dialect":  s.compiler.Dialect().Name,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode response: %w", err))
	}
	return connect.NewResponse(out), nil
}

// Count runs the compiled query and answers {count}.
func (s *QueryService) Count(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if s.tx == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("no database configured"))
	}
	creq, err := compileRequest(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	n, err := s.compiler.Count(ctx, s.tx, creq)
	if err != nil {
		return nil, compileError(err)
	}
	out, err := structpb.NewStruct(map[string]any{"count": n})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func (s *QueryService) ListSchemas(_ context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	names := s.catalog.Names()
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	out, err := structpb.NewStruct(map[string]any{"schemas": list})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func (s *QueryService) Reload(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if s.reload == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("schemas are not reloadable"))
	}
	if err := s.reload(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("schema reload failed")
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("reload schemas: %w", err))
	}
	return s.ListSchemas(ctx, nil)
}

func compileRequest(msg *structpb.Struct) (compiler.Request, error) {
	f := msg.GetFields()
	req := compiler.Request{
		Schema: f["schema"].GetStringValue(),
		Entity: f["entity"].GetStringValue(),
		Query:  f["query"].GetStringValue(),
		Prefix: f["prefix"].GetStringValue(),
		Count:  f["count"].GetBoolValue(),
	}
	var missing []string
	if req.Schema == "" {
		missing = append(missing, "schema")
	}
	if req.Entity == "" {
		missing = append(missing, "entity")
	}
	if len(missing) > 0 {
		return req, fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	if v, ok := f["args"]; ok {
		list := v.GetListValue()
		if list == nil {
			return req, errors.New("args must be a list")
		}
		req.Args = list.AsSlice()
	}
	return req, nil
}

func compileError(err error) error {
	var se *vendor.SchemaError
	switch {
	case errors.Is(err, compiler.ErrUnknownSchema):
		return connect.NewError(connect.CodeNotFound, err)
	case compiler.IsUserError(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &se):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// wireArgs renders bound values as JSON-compatible values.
func wireArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		if v, ok := a.(driver.Valuer); ok {
			dv, err := v.Value()
			if err != nil {
				return nil, fmt.Errorf("arg %d: %w", i+1, err)
			}
			a = dv
		}
		switch v := a.(type) {
		case time.Time:
			a = v.Format(time.RFC3339Nano)
		case fmt.Stringer:
			a = v.String()
		}
		out[i] = a
	}
	return out, nil
}
