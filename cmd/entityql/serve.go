package main

import (
	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/atlekbai/entityql/internal/compiler"
	"github.com/atlekbai/entityql/internal/server"
	"github.com/atlekbai/entityql/internal/service"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query compiler over connect, gRPC and JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)

			e, err := setup(ctx, cfg, cfg.Database.URL != "")
			if err != nil {
				return err
			}
			defer e.Close()

			opts := []service.Option{service.WithReloader(e.reload)}
			if e.tx != nil {
				opts = append(opts, service.WithTx(e.tx))
			}
			svc := service.NewQueryService(compiler.New(e.cache, compiler.WithDialect(e.dialect)), e.cache, opts...)

			interceptors := []connect.Interceptor{
				server.LoggingInterceptor(),
				server.RecoverInterceptor(),
			}
			return server.Run(ctx, cfg.ListenAddr(), server.NewMux([]server.ConnectService{svc}, interceptors...))
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}
