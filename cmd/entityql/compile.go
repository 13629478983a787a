package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atlekbai/entityql/internal/compiler"
)

func newCompileCmd() *cobra.Command {
	var (
		name    string
		prefix  string
		count   bool
		rawArgs []string
	)
	cmd := &cobra.Command{
		Use:   "compile ENTITY QUERY",
		Short: "Print the SQL a query compiles to",
		Example: `  entityql compile --schema shop.yaml Customer 'age >= ? AND name != ?' --arg 18 --arg '"Ann"'
  entityql compile --schema shop.yaml --dialect mysql --count Order 'customer TYPED ?' --arg PremiumCustomer`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, configFrom(ctx), false)
			if err != nil {
				return err
			}
			defer e.Close()

			schemaName, err := pickSchema(e.cache, name)
			if err != nil {
				return err
			}
			res, err := compiler.New(e.cache, compiler.WithDialect(e.dialect)).Compile(ctx, compiler.Request{
				Schema: schemaName,
				Entity: args[0],
				Query:  args[1],
				Args:   parseArgs(rawArgs),
				Prefix: prefix,
				Count:  count,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.SQL)
			for i, a := range res.Args {
				fmt.Fprintf(out, "  %d: %v\n", i+1, a)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "schema name (default: the only deployed schema)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "attribute path prefix to strip")
	cmd.Flags().BoolVar(&count, "count", false, "render SELECT count(*)")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil, "positional argument; JSON literals are decoded, anything else is a string")
	return cmd
}

// parseArgs decodes each argument as JSON, falling back to the raw string.
func parseArgs(raw []string) []any {
	out := make([]any, len(raw))
	for i, r := range raw {
		dec := json.NewDecoder(strings.NewReader(r))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil || dec.More() {
			out[i] = r
			continue
		}
		out[i] = v
	}
	return out
}
