// cmd/themectl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codr1/themekit/internal/config"
)

var (
	configFlag string
	rootCmd    = &cobra.Command{
		Use:           "themectl",
		Short:         "Operator CLI for the theme service database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func loadConfig() (*config.Config, error) {
	path := configFlag
	if path == "" {
		path = os.Getenv("THEMEKIT_CONFIG")
	}
	if path == "" {
		path = "config/config.yaml"
	}
	return config.Load(path)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config.yaml (default $THEMEKIT_CONFIG or config/config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
