package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kubev2v/contentmap-filter/internal/config"
	"github.com/kubev2v/contentmap-filter/internal/store"
)

func NewAttributesCommand(cfg *config.Configuration) *cobra.Command {
	var (
		objectTypes []int
		optimized   bool
	)

	cmd := &cobra.Command{
		Use:   "attributes [name...]",
		Short: "List the registered attribute types",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, st, err := newFilterService(cfg, store.ReadOnly())
			if err != nil {
				return err
			}
			defer st.Close()

			f := store.NewCatalogQueryFilter()
			if len(args) > 0 {
				f = f.ByNames(args...)
			}
			if len(objectTypes) > 0 {
				f = f.ByObjectTypes(objectTypes...)
			}
			if optimized {
				f = f.OptimizedOnly()
			}

			attrs, err := srv.Attributes(cmd.Context(), f)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tCOLUMN\tMULTIVALUE\tOBJECT TYPES")
			for _, a := range attrs {
				column := a.Type.ValueColumn()
				if a.Optimized {
					column = a.QuickColumn()
				}
				if a.ForeignLinkAttribute != "" {
					column = "<- " + a.ForeignLinkAttribute
				}
				types := make([]string, 0, len(a.ObjectTypes))
				for _, t := range a.ObjectTypes {
					types = append(types, strconv.Itoa(t))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", a.Name, a.Type, column, a.Multivalue, strings.Join(types, ","))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntSliceVar(&objectTypes, "object-type", nil, "Only attributes of these object types")
	cmd.Flags().BoolVar(&optimized, "optimized", false, "Only optimized attributes")
	return cmd
}
