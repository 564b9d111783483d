// cmd/workbench/main.go
//
// This is the entry point for the claims workbench CLI.
//
// Flow:
// 1. Load .workbench/config.yaml plus environment overrides
// 2. Open the diagnostic log and the operator journal
// 3. Build the assessment backend and the workflow controller
// 4. Launch the TUI (or replay a scenario script)

package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/config"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/logbook"
	"github.com/kingrea/claims-workbench/internal/logging"
	"github.com/kingrea/claims-workbench/internal/media"
	"github.com/kingrea/claims-workbench/internal/workbench"
)

var (
	projectDir string
	cfg        *config.Config
	logger     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "workbench",
	Short: "Claims adjuster workbench",
	Long:  "Walks a claim from intake through photo upload and AI damage assessment to an approve, escalate or request-photos decision.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := resolveProjectDir(projectDir)
		if err != nil {
			return err
		}
		c, err := config.Load(dir)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		l, err := logging.New(cfg)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", "", "project directory holding .workbench/ (defaults to the working directory)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveProjectDir(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", eris.Wrap(err, "get working directory")
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", eris.Wrapf(err, "resolve %s", dir)
	}
	return abs, nil
}

// session is one controller plus everything it holds open.
type session struct {
	ctl     *workbench.Controller
	journal *logbook.Logbook
	store   *media.MemoryStore
}

func newSession(c *config.Config, settings inference.Settings, l *zap.Logger) (*session, error) {
	journal, err := logbook.New(c.JournalPath())
	if err != nil {
		return nil, eris.Wrap(err, "open journal")
	}
	assessor, err := inference.Build(settings, l)
	if err != nil {
		return nil, eris.Wrap(err, "build assessor")
	}
	store := media.NewMemoryStore()
	ctl, err := workbench.New(assessor,
		workbench.WithRules(c.WorkbenchRules()),
		workbench.WithLogger(l),
		workbench.WithJournal(journal),
		workbench.WithMediaStore(store),
	)
	if err != nil {
		return nil, err
	}
	l.Info("session ready",
		zap.String("provider", settings.Provider),
		zap.String("journal", journal.Path()),
	)
	return &session{ctl: ctl, journal: journal, store: store}, nil
}

// close releases any photo bytes the controller did not release itself.
func (s *session) close(l *zap.Logger) {
	if n := s.store.ReleaseAll(); n > 0 {
		l.Info("released photo locators on exit", zap.Int("count", n))
	}
}
