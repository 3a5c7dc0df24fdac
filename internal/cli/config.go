package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Davincible/sharecrypt/pkg/config"
	"github.com/Davincible/sharecrypt/pkg/crypto/secretsharing"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit configuration and sharing profiles",
		Long: `The configuration file holds split defaults, the passphrase policy, the
share store location and metrics settings. Its path is --config, then
$SHARECRYPT_CONFIG, then $XDG_CONFIG_HOME/sharecrypt/config.json. Files ending
in .yaml or .yml are read as YAML.`,
	}

	cmd.AddCommand(
		newConfigShowCommand(),
		newConfigInitCommand(),
		newConfigPathCommand(),
		newConfigProfileCommand(),
	)

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), cm.GetConfig())
			}
			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(cm.GetConfig()); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			_, err = os.Stat(cm.Path())
			switch {
			case err == nil && !force:
				return fmt.Errorf("%s already exists, use --force to overwrite", cm.Path())
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return err
			}

			cm.SetConfig(config.DefaultConfig())
			if err := cm.SaveConfig(); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cm.Path())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration and store paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := storePath(cmd, cm)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]string{"config": cm.Path(), "store": store})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config: %s\nstore:  %s\n", cm.Path(), store)
			return nil
		},
	}
}

func newConfigProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named split settings",
		Long: `A profile is a saved scheme, party count, threshold and field size. Use it
with "split --profile NAME".`,
	}

	var (
		description string
		ssConfig    secretsharing.SecretSharingConfig
		scheme      string
	)
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Save a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			parsed, err := secretsharing.ParseScheme(scheme)
			if err != nil {
				return err
			}
			ssConfig.Scheme = parsed
			cm.ApplyDefaults(&ssConfig)

			if err := cm.AddProfile(&config.ShareProfile{
				Name:        args[0],
				Description: description,
				Config:      ssConfig,
			}); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Profile %s saved: %s %d/%d\n",
				args[0], ssConfig.Scheme, ssConfig.Threshold, ssConfig.Parties)
			return nil
		},
	}
	add.Flags().StringVarP(&scheme, "scheme", "s", string(secretsharing.SchemeShamir), "Sharing scheme")
	add.Flags().IntVarP(&ssConfig.Parties, "parties", "n", 0, "Number of parties")
	add.Flags().IntVarP(&ssConfig.Threshold, "threshold", "t", 0, "Shares needed to combine")
	add.Flags().IntVar(&ssConfig.Bits, "bits", 0, "Field size in bits")
	add.Flags().IntVar(&ssConfig.PadLength, "pad", 0, "Pad the secret to a multiple of this many bits")
	add.Flags().IntVar(&ssConfig.NumKeys, "keys", 0, "Hash keys per party pair (robust)")
	add.Flags().StringVar(&description, "description", "", "Description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			profiles := cm.ListProfiles()
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), profiles)
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No profiles.")
				return nil
			}
			for _, p := range profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s %d/%d", p.Name, p.Config.Scheme, p.Config.Threshold, p.Config.Parties)
				if p.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s", p.Description)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return cm.DeleteProfile(args[0])
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}
