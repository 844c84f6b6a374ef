package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/t-simwa/documind-document-analyzer-sub000/internal/config"
	"github.com/t-simwa/documind-document-analyzer-sub000/internal/output"
)

const projectConfigName = ".documind.yaml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default .documind.yaml into the current directory.

Edit the file to select providers and tune retrieval, or override
individual settings with DOCUMIND_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			if _, err := os.Stat(projectConfigName); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", projectConfigName)
			}

			cfg := config.NewConfig()
			if err := cfg.WriteYAML(projectConfigName); err != nil {
				return err
			}
			out.Successf("Wrote %s", projectConfigName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}
