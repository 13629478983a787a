package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atlekbai/entityql/internal/config"
	"github.com/atlekbai/entityql/internal/logging"
	"github.com/atlekbai/entityql/internal/schema"
	"github.com/atlekbai/entityql/internal/service"
	"github.com/atlekbai/entityql/internal/vendor"
)

type configKey struct{}

func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "entityql",
		Short: "Compile entity queries into SQL",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./entityql.yaml)")
	pf.String("dialect", "", "SQL dialect (postgres, mysql, sqlite)")
	pf.String("database-url", "", "database connection string")
	pf.String("db-schema", "", "database schema scoping catalog lookups")
	pf.String("log-level", "", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "", "log format (json, console)")
	pf.String("log-sql", "", "pgx statement tracing level (none, debug, info, ...)")
	pf.StringSlice("schema", nil, "schema YAML document(s) to deploy")
	pf.Bool("catalog", false, "load deployed schemas from the entityql.schemas table")

	root.AddCommand(newServeCmd(), newCompileCmd(), newProbeCmd())
	return root
}

func configFrom(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{}
}

// env is what a command needs at run time. Close releases the connections.
type env struct {
	cfg     *config.Config
	dialect *vendor.Dialect
	cache   *schema.Cache
	tx      vendor.TxTemplate
	reload  service.Reloader
	closers []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// setup resolves the dialect, opens the database when needDB or the catalog
// is the schema source, and deploys the schemas.
func setup(ctx context.Context, cfg *config.Config, needDB bool) (*env, error) {
	d, err := vendor.DefaultRegistry().Lookup(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, dialect: d, cache: schema.NewCache()}

	fromCatalog := len(cfg.Schemas.Files) == 0 && cfg.Schemas.Catalog
	if fromCatalog && d.Name != "postgres" {
		return nil, fmt.Errorf("schema catalog requires the postgres dialect, got %s", d.Name)
	}

	var pool *pgxpool.Pool
	if needDB || fromCatalog {
		if cfg.Database.URL == "" {
			return nil, errors.New("database url is required")
		}
		if d.Name == "postgres" {
			pool, err = openPool(ctx, cfg)
			if err != nil {
				return nil, err
			}
			e.closers = append(e.closers, pool.Close)
			e.tx = vendor.NewPgxTemplate(pool)
		} else {
			db, err := d.Open(ctx, cfg.Database.URL)
			if err != nil {
				return nil, err
			}
			e.closers = append(e.closers, func() { db.Close() })
			e.tx = vendor.NewSQLTemplate(db)
		}
	}

	switch {
	case len(cfg.Schemas.Files) > 0:
		files := cfg.Schemas.Files
		e.reload = func(context.Context) error { return e.cache.LoadFiles(files...) }
	case fromCatalog:
		e.reload = func(ctx context.Context) error { return e.cache.LoadCatalog(ctx, pool) }
	default:
		e.Close()
		return nil, errors.New("no schemas: pass --schema or --catalog")
	}
	if err := e.reload(ctx); err != nil {
		e.Close()
		return nil, err
	}
	log.Ctx(ctx).Info().Strs("schemas", e.cache.Names()).Str("dialect", d.Name).Msg("schemas deployed")
	return e, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	tracer, err := logging.QueryTracer(cfg.Log.SQL)
	if err != nil {
		return nil, err
	}
	if tracer != nil {
		pcfg.ConnConfig.Tracer = tracer
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// pickSchema returns name, or the only deployed schema when name is empty.
func pickSchema(c *schema.Cache, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	names := c.Names()
	if len(names) != 1 {
		return "", fmt.Errorf("%d schemas deployed, choose one with --name", len(names))
	}
	return names[0], nil
}
