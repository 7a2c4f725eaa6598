package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubev2v/contentmap-filter/internal/config"
	"github.com/kubev2v/contentmap-filter/internal/store"
	"github.com/kubev2v/contentmap-filter/internal/store/migrations"
	"github.com/kubev2v/contentmap-filter/pkg/attribute"
)

func NewInitDBCommand(cfg *config.Configuration) *cobra.Command {
	var attrs []string

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the content map schema and register attribute types",
		Long: `Create the content map tables in the database and register the given
attribute types. Attributes are written as name:type followed by options:

  optimized        store the value in the contentmap quick column
  multivalue       allow several values
  quick=<column>   quick column name
  foreign=<attr>   attribute of the linked objects pointing back (foreignlink)
  linked=<type>    object type the link points to
  types=<t1>|<t2>  object types carrying the attribute

e.g. --attribute name:text:optimized --attribute children:foreignlink:foreign=folder`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]attribute.Attribute, 0, len(attrs))
			for _, s := range attrs {
				a, err := parseAttribute(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, a)
			}

			db, err := store.NewDB(cfg.Database.Path)
			if err != nil {
				return err
			}
			st := store.NewStore(db)
			defer st.Close()

			if err := migrations.Run(cmd.Context(), db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			for _, a := range parsed {
				if err := st.Catalog().Register(cmd.Context(), a); err != nil {
					return err
				}
				zap.S().Named("init_db").Infow("registered attribute", "name", a.Name, "type", a.Type.String(), "optimized", a.Optimized)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&attrs, "attribute", nil, "Attribute type to register as name:type[:option...]")
	return cmd
}

func parseAttribute(s string) (attribute.Attribute, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return attribute.Attribute{}, fmt.Errorf("invalid attribute %q: expected name:type[:option...]", s)
	}

	t, ok := attribute.ParseType(strings.ToLower(parts[1]))
	if !ok {
		return attribute.Attribute{}, fmt.Errorf("invalid attribute %q: unknown type %q", s, parts[1])
	}
	a := attribute.Attribute{Name: parts[0], Type: t}

	for _, opt := range parts[2:] {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "optimized":
			a.Optimized = true
		case "multivalue":
			a.Multivalue = true
		case "quick":
			a.QuickName = value
		case "foreign":
			a.ForeignLinkAttribute = value
		case "linked":
			n, err := strconv.Atoi(value)
			if err != nil {
				return attribute.Attribute{}, fmt.Errorf("invalid attribute %q: linked object type %q", s, value)
			}
			a.LinkedObjectType = n
		case "types":
			for _, v := range strings.Split(value, "|") {
				n, err := strconv.Atoi(v)
				if err != nil {
					return attribute.Attribute{}, fmt.Errorf("invalid attribute %q: object type %q", s, v)
				}
				a.ObjectTypes = append(a.ObjectTypes, n)
			}
		default:
			return attribute.Attribute{}, fmt.Errorf("invalid attribute %q: unknown option %q", s, opt)
		}
	}
	return a, nil
}
