package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codr1/themekit/internal/assets"
	"github.com/codr1/themekit/internal/db"
	"github.com/codr1/themekit/internal/themes"
)

// openService builds an uncached service over the configured database. The CLI
// is a separate process, so caching would only hide other writers.
func openService(ctx context.Context) (*themes.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := assets.NewFromConfig(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	svc, err := themes.NewService(themes.Config{
		Variant:     themes.Variant(cfg.Theme.Variant),
		MergePolicy: themes.MergePolicy(cfg.Theme.MergePolicy),
		Assets:      store,
	}, db.NewThemeStore(database), nil)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return svc, func() { database.Close() }, nil
}

func withService(fn func(ctx context.Context, svc *themes.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		svc, closeFn, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(ctx, svc)
	}
}

func init() {
	var key string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored theme as JSON, creating the default if missing",
		Args:  cobra.NoArgs,
		RunE: withService(func(ctx context.Context, svc *themes.Service) error {
			return runShow(ctx, svc, key, os.Stdout)
		}),
	}
	cssCmd := &cobra.Command{
		Use:   "css",
		Short: "Print the generated stylesheet",
		Args:  cobra.NoArgs,
		RunE: withService(func(ctx context.Context, svc *themes.Service) error {
			return runCSS(ctx, svc, key, os.Stdout)
		}),
	}
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default theme",
		Args:  cobra.NoArgs,
		RunE: withService(func(ctx context.Context, svc *themes.Service) error {
			return runReset(ctx, svc, key, os.Stdout)
		}),
	}
	applyCmd := &cobra.Command{
		Use:   "apply PRESET",
		Short: "Apply a built-in preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *themes.Service) error {
				return runApply(ctx, svc, key, args[0], os.Stdout)
			})(cmd, args)
		},
	}
	for _, cmd := range []*cobra.Command{showCmd, cssCmd, resetCmd, applyCmd} {
		cmd.Flags().StringVarP(&key, "key", "k", "", "Identity key (ignored for the global variant)")
		rootCmd.AddCommand(cmd)
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "List built-in presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresets(os.Stdout)
		},
	}
	rootCmd.AddCommand(presetsCmd)

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List identity keys that have a stored theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := db.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			defer database.Close()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runKeys(ctx, db.NewThemeStore(database), os.Stdout)
		},
	}
	rootCmd.AddCommand(keysCmd)
}

type keyLister interface {
	ListThemeKeys(ctx context.Context) ([]string, error)
}

func runKeys(ctx context.Context, store keyLister, out io.Writer) error {
	keys, err := store.ListThemeKeys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(out, key)
	}
	return nil
}

func writeTheme(out io.Writer, theme any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(theme)
}

func runShow(ctx context.Context, svc *themes.Service, key string, out io.Writer) error {
	theme, err := svc.Get(ctx, key)
	if err != nil {
		return err
	}
	return writeTheme(out, theme)
}

func runCSS(ctx context.Context, svc *themes.Service, key string, out io.Writer) error {
	css, err := svc.Stylesheet(ctx, key)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, css)
	return err
}

func runReset(ctx context.Context, svc *themes.Service, key string, out io.Writer) error {
	theme, err := svc.Reset(ctx, key)
	if err != nil {
		return err
	}
	return writeTheme(out, theme)
}

func runApply(ctx context.Context, svc *themes.Service, key, preset string, out io.Writer) error {
	theme, err := svc.ApplyPreset(ctx, key, preset)
	if err != nil {
		return err
	}
	return writeTheme(out, theme)
}

func runPresets(out io.Writer) error {
	presets, err := themes.BuiltinPresets()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDEFAULT\tDESCRIPTION")
	for _, preset := range presets {
		def := ""
		if preset.Default {
			def = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", preset.Name, def, strings.TrimSpace(preset.Description))
	}
	return tw.Flush()
}
