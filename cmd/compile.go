package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kubev2v/contentmap-filter/internal/config"
	"github.com/kubev2v/contentmap-filter/internal/store"
	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

var sqlKeywords = map[string]bool{
	"SELECT": true, "DISTINCT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"NOT": true, "EXISTS": true, "IN": true, "LEFT": true, "JOIN": true, "ON": true,
	"ORDER": true, "BY": true, "ASC": true, "DESC": true, "LIMIT": true, "OFFSET": true,
	"LIKE": true, "IS": true, "NULL": true, "COUNT": true,
}

func NewCompileCommand(cfg *config.Configuration) *cobra.Command {
	var (
		flags requestFlags
		count bool
	)

	cmd := &cobra.Command{
		Use:   "compile [rule...]",
		Short: "Print the SQL statements of filter rules",
		Long: `Compile each rule against the attribute catalog of the database and print
the statement and its arguments. Without rules the statement selecting every
visible object is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cfg)
			if err != nil {
				return err
			}
			req.Count = count

			srv, st, err := newFilterService(cfg, store.ReadOnly())
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 0 {
				args = []string{""}
			}
			stmts, err := srv.CompileAll(cmd.Context(), args, req)
			if err != nil {
				if kind := cfErrors.KindOf(err); kind != cfErrors.KindUnknown {
					return fmt.Errorf("%s: %w", kind, err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			for i, stmt := range stmts {
				if len(stmts) > 1 {
					fmt.Fprintf(out, "-- %s\n", args[i])
				}
				printStatement(out, stmt)
			}
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&count, "count", false, "Compile the count statement")
	return cmd
}

func printStatement(out io.Writer, stmt *statement.Statement) {
	fmt.Fprintln(out, highlight(stmt.SQL))

	args := make([]string, 0, len(stmt.Args))
	for _, a := range stmt.Args {
		args = append(args, fmt.Sprintf("%#v", a))
	}
	color.New(color.FgYellow).Fprintf(out, "args: [%s]\n", strings.Join(args, ", "))
}

func highlight(sql string) string {
	keyword := color.New(color.FgCyan, color.Bold)
	tokens := strings.Split(sql, " ")
	for i, t := range tokens {
		if sqlKeywords[strings.Trim(t, "()")] {
			tokens[i] = keyword.Sprint(t)
		}
	}
	return strings.Join(tokens, " ")
}
