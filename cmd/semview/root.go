package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/semview"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "semview",
		Short:         "Manage and query semantic views",
		Long:          "Define named semantic views over a DuckDB or PostgreSQL database and expand requests into aggregation SQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the YAML configuration file")

	// withDB opens the catalog around a command.
	withDB := func(run func(ctx context.Context, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := a.open(ctx); err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(); err == nil {
					err = cerr
				}
			}()
			return run(ctx, cmd.OutOrStdout(), args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "define <name> <json|@file>",
			Short: "Register a semantic view",
			Args:  cobra.ExactArgs(2),
			RunE: withDB(func(ctx context.Context, out io.Writer, args []string) error {
				definition, err := readDefinition(args[1])
				if err != nil {
					return err
				}
				msg, err := a.db.Define(ctx, args[0], definition)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, msg)
				return err
			}),
		},
		&cobra.Command{
			Use:   "drop <name>",
			Short: "Remove a semantic view",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(ctx context.Context, out io.Writer, args []string) error {
				msg, err := a.db.Drop(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, msg)
				return err
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List semantic views",
			Args:  cobra.NoArgs,
			RunE: withDB(func(_ context.Context, out io.Writer, _ []string) error {
				views, err := a.db.List()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tBASE TABLE")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%s\n", v.Name, v.BaseTable)
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "describe <name>",
			Short: "Show the fields of a semantic view",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(_ context.Context, out io.Writer, args []string) error {
				d, err := a.db.Describe(args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "name\t%s\n", d.Name)
				fmt.Fprintf(tw, "base_table\t%s\n", d.BaseTable)
				fmt.Fprintf(tw, "dimensions\t%s\n", d.Dimensions)
				fmt.Fprintf(tw, "metrics\t%s\n", d.Metrics)
				fmt.Fprintf(tw, "filters\t%s\n", d.Filters)
				fmt.Fprintf(tw, "joins\t%s\n", d.Joins)
				return tw.Flush()
			}),
		},
		requestCmd("expand", "Print the SQL for a request", withDB, func(ctx context.Context, out io.Writer, view string, req semview.QueryRequest) error {
			sqlText, err := a.db.Expand(ctx, view, req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, sqlText)
			return err
		}),
		requestCmd("query", "Run a request and print the rows as TSV", withDB, func(ctx context.Context, out io.Writer, view string, req semview.QueryRequest) error {
			rows, err := a.db.Query(ctx, view, req)
			if err != nil {
				return err
			}
			defer func() { _ = rows.Close() }()
			return writeTSV(out, rows)
		}),
		requestCmd("explain", "Show the expanded SQL and the database plan", withDB, func(ctx context.Context, out io.Writer, view string, req semview.QueryRequest) error {
			lines, err := a.db.Explain(ctx, view, req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, strings.Join(lines, "\n"))
			return err
		}),
		&cobra.Command{
			Use:   "backup <name>",
			Short: "Write a snapshot of the catalog to every backup target",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(ctx context.Context, out io.Writer, args []string) error {
				stores, err := a.targets(ctx)
				if err != nil {
					return err
				}
				if err := a.db.Backup(ctx, args[0], stores...); err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "Backup '%s' written to %d target(s)\n", args[0], len(stores))
				return err
			}),
		},
		&cobra.Command{
			Use:   "restore <name>",
			Short: "Define the views of a snapshot that are not registered yet",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(ctx context.Context, out io.Writer, args []string) error {
				stores, err := a.targets(ctx)
				if err != nil {
					return err
				}
				res, err := a.db.Restore(ctx, args[0], stores[0])
				if res != nil {
					fmt.Fprintf(out, "restored: %s\n", strings.Join(res.Restored, ", "))
					fmt.Fprintf(out, "skipped: %s\n", strings.Join(res.Skipped, ", "))
				}
				return err
			}),
		},
	)
	return root
}

type requestFunc func(ctx context.Context, out io.Writer, view string, req semview.QueryRequest) error

func requestCmd(
	use, short string,
	withDB func(func(context.Context, io.Writer, []string) error) func(*cobra.Command, []string) error,
	run requestFunc,
) *cobra.Command {
	var req semview.QueryRequest
	cmd := &cobra.Command{
		Use:   use + " <view>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withDB(func(ctx context.Context, out io.Writer, args []string) error {
			return run(ctx, out, args[0], req)
		}),
	}
	cmd.Flags().StringSliceVar(&req.Dimensions, "dim", nil, "dimension names, in output order")
	cmd.Flags().StringSliceVar(&req.Metrics, "metric", nil, "metric names, in output order")
	return cmd
}

// readDefinition returns arg, or the contents of the file it names when it
// starts with '@'.
func readDefinition(arg string) (string, error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read definition: %w", err)
	}
	return string(data), nil
}

func writeTSV(out io.Writer, rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, strings.Join(cols, "\t")); err != nil {
		return err
	}

	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	fields := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, v := range values {
			if v == nil {
				fields[i] = "NULL"
			} else {
				fields[i] = fmt.Sprint(v)
			}
		}
		if _, err := fmt.Fprintln(out, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return rows.Err()
}
