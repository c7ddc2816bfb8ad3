package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/billingops/account-rescue-cli/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rescue configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		project string
		path    string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter rescue.toml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				homeDir, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("resolve home directory: %w", err)
				}
				target = filepath.Join(homeDir, ".rescue", "rescue.toml")
			}

			if err := config.WriteStarter(target, project); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			return err
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project identifier recorded in run state files")
	cmd.Flags().StringVar(&path, "path", "", "Destination file (default ~/.rescue/rescue.toml)")

	return cmd
}
