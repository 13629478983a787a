package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlekbai/entityql/internal/vendor"
)

func newProbeCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that every table, column, index and constraint of a schema exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			e, err := setup(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer e.Close()

			schemaName, err := pickSchema(e.cache, name)
			if err != nil {
				return err
			}
			s := e.cache.Get(schemaName)
			if s == nil {
				return fmt.Errorf("schema %q is not deployed", schemaName)
			}

			p := &vendor.Prober{
				Dialect:  e.dialect,
				Tx:       e.tx,
				Scope:    vendor.Scope{Schema: cfg.Database.Schema},
				Parallel: cfg.Probe.Parallel,
			}
			results, err := p.CheckSchema(ctx, s)
			if err != nil {
				return err
			}

			missing := vendor.Missing(results)
			out := cmd.OutOrStdout()
			for _, m := range missing {
				fmt.Fprintf(out, "missing %s\n", m)
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d catalog object(s) missing in %s", len(missing), schemaName)
			}
			fmt.Fprintf(out, "%s: %d table(s) ok\n", schemaName, len(results))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "schema name (default: the only deployed schema)")
	cmd.Flags().Int("parallel", 0, "concurrent probe transactions (default 4)")
	return cmd
}
