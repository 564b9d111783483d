package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/scenario"
)

var (
	replayOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	replayFail  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	replayMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	replayTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>...",
	Short: "Replay scenario scripts against a fresh workbench",
	Long:  "Runs each script headless with its own controller and reports every step. Uses the mock assessor unless --live is set.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		live, _ := cmd.Flags().GetBool("live")
		settings := cfg.InferenceSettings()
		if !live {
			settings.Provider = inference.ProviderMock
			settings.MockDelay = 0
		}

		failed := 0
		for _, path := range args {
			script, err := scenario.LoadFile(path)
			if err != nil {
				return err
			}
			s, err := newSession(cfg, settings, logger)
			if err != nil {
				return err
			}
			report, runErr := scenario.NewRunner(s.ctl, logger).Run(cmd.Context(), script)
			s.close(logger)

			printReport(cmd.OutOrStdout(), report, runErr)
			var stepErr *scenario.StepError
			switch {
			case runErr == nil:
			case errors.As(runErr, &stepErr):
				failed++
			default:
				return runErr
			}
		}
		if failed > 0 {
			return eris.Errorf("%d of %d scripts failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().Bool("live", false, "use the configured inference provider instead of the mock")
	rootCmd.AddCommand(replayCmd)
}

func printReport(w io.Writer, report *scenario.Report, runErr error) {
	if report == nil {
		return
	}
	fmt.Fprintln(w, replayTitle.Render("▶ "+report.Script))
	for _, step := range report.Steps {
		mark := replayOK.Render("✓")
		detail := step.Outcome
		if step.Err != nil {
			detail = "expected error: " + step.Err.Error()
		}
		var stepErr *scenario.StepError
		if errors.As(runErr, &stepErr) && stepErr.Index == step.Index {
			mark = replayFail.Render("✗")
			detail = stepErr.Error()
		}
		fmt.Fprintf(w, "  %s %2d %-15s %s\n", mark, step.Index+1, step.Action, replayMuted.Render(detail))
	}

	final := report.Final
	summary := fmt.Sprintf("step %s", final.Step.FriendlyName())
	if final.Assessment != nil {
		summary += fmt.Sprintf(" · %d parts · %s - %s",
			len(final.Assessment.DamagedParts),
			claims.FormatCents(final.Assessment.TotalMin),
			claims.FormatCents(final.Assessment.TotalMax),
		)
	}
	if final.SuccessMessage != "" {
		summary += " · " + final.SuccessMessage
	}
	fmt.Fprintf(w, "  %s\n", replayMuted.Render(summary))
	if runErr != nil {
		fmt.Fprintln(w, "  "+replayFail.Render("FAILED"))
	} else {
		fmt.Fprintln(w, "  "+replayOK.Render("PASSED"))
	}
}
