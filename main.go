package main

import (
	"os"

	"github.com/kubev2v/contentmap-filter/cmd"
	"github.com/kubev2v/contentmap-filter/internal/config"
)

func main() {
	cfg := config.NewConfigurationWithOptionsAndDefaults()
	if err := cmd.NewRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
