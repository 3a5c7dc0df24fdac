// Package cli implements the sharecrypt command line interface.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/sharecrypt/pkg/config"
	"github.com/Davincible/sharecrypt/pkg/metrics"
)

// NewRootCommand builds the sharecrypt command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sharecrypt",
		Short: "Threshold secret sharing over GF(2^b) with verifiable shares",
		Long: `Sharecrypt splits secrets into shares and puts them back together.

Schemes:
- shamir    Shamir sharing over GF(2^b), secrets.js compatible share strings (default)
- robust    Shamir shares authenticated pairwise with PolyQ32 tags; forged shares are voted out
- additive  two-party XOR sharing
- vault     HashiCorp Vault compatible GF(256) shares
- sssa      SSSaaS prime-field shares

Shares can be printed, written to one directory per party, or kept in the
local share store and moved between machines as password-sealed bundles.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}

			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) || !cm.GetConfig().UI.UseColor {
				color.NoColor = true
			}
			if cm.GetConfig().Metrics.Enabled {
				metrics.Enable()
			} else {
				metrics.Disable()
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		NewSplitCommand(),
		NewCombineCommand(),
		NewNewShareCommand(),
		NewInspectCommand(),
		NewHashCommand(),
		NewRandomCommand(),
		NewSetsCommand(),
		NewExportCommand(),
		NewImportCommand(),
		NewConfigCommand(),
	)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Config file (default $SHARECRYPT_CONFIG or ~/.config/sharecrypt/config.json)")
	rootCmd.PersistentFlags().String("store-dir", "", "Share store directory (overrides storage.default_path)")

	return rootCmd
}

// Execute runs the command tree and writes the metrics textfile when
// configured, whether or not the command succeeded.
func Execute(version string) error {
	rootCmd := NewRootCommand(version)
	cmd, err := rootCmd.ExecuteC()
	if ferr := flushMetrics(cmd); ferr != nil {
		slog.Warn("Failed to write metrics", "error", ferr)
	}
	return err
}

func flushMetrics(cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}
	cm, err := loadConfig(cmd)
	if err != nil {
		return nil
	}
	cfg := cm.GetConfig().Metrics
	if !cfg.Enabled {
		return nil
	}
	path, err := config.ExpandHome(cfg.Textfile)
	if err != nil {
		return err
	}
	if err := metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
