package server

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingInterceptor attaches a request-scoped logger carrying the procedure
// and a request id to the context, and logs each call's outcome. Client
// errors log at info, server errors at error.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			l := log.Ctx(ctx).With().
				Str("procedure", req.Spec().Procedure).
				Str("request_id", uuid.NewString()).
				Logger()
			ctx = l.WithContext(ctx)

			start := time.Now()
			res, err := next(ctx, req)

			ev := l.Debug()
			if err != nil {
				switch connect.CodeOf(err) {
				case connect.CodeInternal, connect.CodeUnknown, connect.CodeDataLoss:
					ev = l.Error()
				default:
					ev = l.Info()
				}
				ev = ev.Err(err).Stringer("code", connect.CodeOf(err))
			}
			ev.Dur("elapsed", time.Since(start)).Msg("rpc")
			return res, err
		}
	}
}

// RecoverInterceptor turns a panicking handler into CodeInternal.
func RecoverInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (res connect.AnyResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Ctx(ctx).WithLevel(zerolog.PanicLevel).
						Str("procedure", req.Spec().Procedure).
						Interface("panic", r).
						Msg("handler panicked")
					res, err = nil, connect.NewError(connect.CodeInternal, fmt.Errorf("panic: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}
