// Package config implements the config command for inspecting and creating
// configuration files.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/navpreview/internal/conf"
)

// Command creates the config command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}
	cmd.AddCommand(printCommand(settings), initCommand())
	return cmd
}

func printCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the effective settings as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path, err := conf.FindConfigFile(); err == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", path)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(settings); err != nil {
				return fmt.Errorf("error encoding settings: %w", err)
			}
			return enc.Close()
		},
	}
}

func initCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			data, err := conf.DefaultConfigYAML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("error writing %s: %w", path, err)
			}
			cmd.Printf("Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
