package config

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

type Configuration struct {
	Database Database
	Filter   Filter
	Log      Log
}

type Database struct {
	Path string `default:"contentmap.duckdb" validate:"required"`
}

type Filter struct {
	Dialect string `default:"duckdb" validate:"required"`
	// MaxInListSize lowers the dialect's IN-list limit when set.
	MaxInListSize int     `default:"0" validate:"gte=0"`
	Channels      []int64 `validate:"dive,gt=0"`
	// VersionTimestamp reads the version tables at that time when set.
	VersionTimestamp int64    `default:"0" validate:"gte=0"`
	Resolvers        []string `default:"[\"data\"]" validate:"dive,required"`
	Workers          int      `default:"4" validate:"gte=1"`
}

type Log struct {
	Level  string `default:"info" validate:"oneof=debug info warn error"`
	Format string `default:"console" validate:"oneof=console json"`
}

type Option func(*Configuration)

func WithDatabasePath(path string) Option {
	return func(c *Configuration) {
		c.Database.Path = path
	}
}

func WithDialect(name string) Option {
	return func(c *Configuration) {
		c.Filter.Dialect = name
	}
}

func WithChannels(channels ...int64) Option {
	return func(c *Configuration) {
		c.Filter.Channels = channels
	}
}

func NewConfigurationWithOptionsAndDefaults(opts ...Option) *Configuration {
	c := &Configuration{}
	if err := defaults.Set(c); err != nil {
		panic(err)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks the struct tags of c.
func (c *Configuration) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}
