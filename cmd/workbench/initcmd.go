package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/claims-workbench/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .workbench/ with a default config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.InitWorkbenchDir(cfg.ProjectDir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Workbench ready at %s\n", cfg.Root())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
