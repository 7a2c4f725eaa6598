package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubev2v/contentmap-filter/internal/config"
	"github.com/kubev2v/contentmap-filter/internal/services"
	"github.com/kubev2v/contentmap-filter/internal/store"
	"github.com/kubev2v/contentmap-filter/pkg/dialect"
	"github.com/kubev2v/contentmap-filter/pkg/filter"
)

const envPrefix = "CMFILTER"

// flagNames maps configuration fields to the flags that set them.
var flagNames = map[string]string{
	"Configuration.Database.Path":           "db-path",
	"Configuration.Filter.Dialect":          "dialect",
	"Configuration.Filter.MaxInListSize":    "max-in-list-size",
	"Configuration.Filter.Channels":         "channels",
	"Configuration.Filter.VersionTimestamp": "version-timestamp",
	"Configuration.Filter.Resolvers":        "resolvers",
	"Configuration.Filter.Workers":          "workers",
	"Configuration.Log.Level":               "log-level",
	"Configuration.Log.Format":              "log-format",
}

func NewRootCommand(cfg *config.Configuration) *cobra.Command {
	root := &cobra.Command{
		Use:          "contentmap-filter",
		Short:        "Compile content map filter rules to SQL",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupViperForEnvVars(envPrefix)
			cobraflags.PresetRequiredFlags(envPrefix, make(map[*pflag.Flag]bool), cmd)

			if err := validateConfiguration(cfg); err != nil {
				return err
			}

			logger, err := newLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}

	registerGlobalFlags(root.PersistentFlags(), cfg)

	root.AddCommand(
		NewCompileCommand(cfg),
		NewQueryCommand(cfg),
		NewInitDBCommand(cfg),
		NewAttributesCommand(cfg),
	)
	return root
}

func registerGlobalFlags(flags *pflag.FlagSet, cfg *config.Configuration) {
	flags.StringVar(&cfg.Database.Path, "db-path", cfg.Database.Path, "Path of the DuckDB content map database")
	flags.StringVar(&cfg.Filter.Dialect, "dialect", cfg.Filter.Dialect, "SQL dialect: "+strings.Join(dialect.Names(), ", "))
	flags.IntVar(&cfg.Filter.MaxInListSize, "max-in-list-size", cfg.Filter.MaxInListSize, "Lower the dialect's IN-list limit (0 keeps the dialect's)")
	flags.Int64SliceVar(&cfg.Filter.Channels, "channels", cfg.Filter.Channels, "Channel ids objects must be visible in, by priority")
	flags.Int64Var(&cfg.Filter.VersionTimestamp, "version-timestamp", cfg.Filter.VersionTimestamp, "Read the object versions valid at this timestamp (0 reads the current objects)")
	flags.StringSliceVar(&cfg.Filter.Resolvers, "resolvers", cfg.Filter.Resolvers, "Prefixes of named properties in rules")
	flags.IntVar(&cfg.Filter.Workers, "workers", cfg.Filter.Workers, "Number of rules compiled concurrently")
	flags.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	flags.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format: console, json")
}

// setupViperForEnvVars configures viper to read environment variables with the given prefix
func setupViperForEnvVars(prefix string) {
	viper.Reset()
	viper.AutomaticEnv()
	viper.SetEnvPrefix(prefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func validateConfiguration(cfg *config.Configuration) error {
	if err := cfg.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return err
		}
		field := verrs[0].StructNamespace()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		name, ok := flagNames[field]
		if !ok {
			name = verrs[0].Field()
		}
		return fmt.Errorf("invalid %s: %q fails %s", name, fmt.Sprint(verrs[0].Value()), verrs[0].Tag())
	}

	if _, err := dialect.Lookup(cfg.Filter.Dialect); err != nil {
		return fmt.Errorf("invalid dialect %q: must be one of %s", cfg.Filter.Dialect, strings.Join(dialect.Names(), ", "))
	}
	return nil
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newFilterService opens the database and builds the service over it. The
// caller closes the returned store.
func newFilterService(cfg *config.Configuration, opts ...store.DBOption) (*services.FilterService, *store.Store, error) {
	d, err := dialect.Lookup(cfg.Filter.Dialect)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Filter.MaxInListSize > 0 {
		d = dialect.WithMaxInListSize(d, cfg.Filter.MaxInListSize)
	}

	db, err := store.NewDB(cfg.Database.Path, opts...)
	if err != nil {
		return nil, nil, err
	}
	st := store.NewStore(db)
	return services.NewFilterService(st, d, cfg.Filter.Resolvers, cfg.Filter.Workers), st, nil
}

func newFilterRequest(cfg *config.Configuration) filter.Request {
	req := filter.Request{Channels: cfg.Filter.Channels}
	if cfg.Filter.VersionTimestamp > 0 {
		ts := cfg.Filter.VersionTimestamp
		req.VersionTimestamp = &ts
	}
	return req
}
