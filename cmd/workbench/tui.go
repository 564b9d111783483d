package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kingrea/claims-workbench/internal/config"
	"github.com/kingrea/claims-workbench/internal/tui"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	if err := config.InitWorkbenchDir(cfg.ProjectDir); err != nil {
		return eris.Wrap(err, "init workbench dir")
	}
	s, err := newSession(cfg, cfg.InferenceSettings(), logger)
	if err != nil {
		return err
	}
	defer s.close(logger)

	app := tui.NewApp(s.ctl,
		tui.WithJournal(s.journal),
		tui.WithLogger(logger),
		tui.WithContext(cmd.Context()),
		tui.WithLogLines(cfg.UI.LogPanelLines),
	)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return eris.Wrap(err, "run tui")
	}
	return nil
}
