package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/claims-workbench/internal/logbook"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show the most recent operator journal entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, _ := cmd.Flags().GetInt("lines")
		journal, err := logbook.New(cfg.JournalPath())
		if err != nil {
			return err
		}
		lines, total := journal.Tail(n)
		out := cmd.OutOrStdout()
		if total == 0 {
			fmt.Fprintln(out, "Journal is empty.")
			return nil
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, replayMuted.Render(fmt.Sprintf("%d of %d entries · %s", len(lines), total, journal.Path())))
		return nil
	},
}

func init() {
	journalCmd.Flags().IntP("lines", "n", 20, "number of entries to show")
	rootCmd.AddCommand(journalCmd)
}
