package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kubev2v/contentmap-filter/internal/config"
	"github.com/kubev2v/contentmap-filter/internal/store"
)

func NewQueryCommand(cfg *config.Configuration) *cobra.Command {
	var (
		flags requestFlags
		count bool
	)

	cmd := &cobra.Command{
		Use:   "query [rule]",
		Short: "List the objects matching a filter rule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cfg)
			if err != nil {
				return err
			}

			srv, st, err := newFilterService(cfg, store.ReadOnly())
			if err != nil {
				return err
			}
			defer st.Close()

			var text string
			if len(args) == 1 {
				text = args[0]
			}

			out := cmd.OutOrStdout()
			if count {
				n, err := srv.Count(cmd.Context(), text, req)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, n)
				return nil
			}

			objects, err := srv.Query(cmd.Context(), text, req)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCONTENTID\tCHANNEL\tOBJ_TYPE\tOBJ_ID\tUPDATED")
			for _, o := range objects {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n", o.ID, o.ContentID, o.ChannelID, o.ObjType, o.ObjID, o.UpdateTimestamp)
			}
			return w.Flush()
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&count, "count", false, "Print the number of matching objects")
	return cmd
}
