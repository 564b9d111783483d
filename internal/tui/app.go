// internal/tui/app.go
//
// This is the terminal interface for the claims workbench.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the App below, wrapping a workbench.Controller
// 2. Update: turns key presses into controller intents
// 3. View: renders the latest controller snapshot
//
// The controller owns all workflow state. The App only keeps what is purely
// presentational: form inputs, focus, the spinner and the last error shown.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/logbook"
	"github.com/kingrea/claims-workbench/internal/media"
	"github.com/kingrea/claims-workbench/internal/workbench"
)

const defaultLogLines = 8

type decisionFocus int

const (
	focusParts decisionFocus = iota
	focusActions
)

// assessmentFinishedMsg is delivered when a background assessment returns.
type assessmentFinishedMsg struct {
	err error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithJournal shows the operator journal name and size in the log panel.
func WithJournal(journal *logbook.Logbook) AppOption {
	return func(a *App) {
		a.journal = journal
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) AppOption {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithContext bounds background assessments; cancelling it aborts them.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// WithLogLines sets how many audit entries the log panel shows.
func WithLogLines(n int) AppOption {
	return func(a *App) {
		if n > 0 {
			a.logLines = n
		}
	}
}

// WithPhotoLoader replaces how photo paths are read (tests use in-memory uploads).
func WithPhotoLoader(load func(path string) (media.Upload, error)) AppOption {
	return func(a *App) {
		if load != nil {
			a.loadPhoto = load
		}
	}
}

// App is the bubbletea model for the workbench.
type App struct {
	ctl     *workbench.Controller
	journal *logbook.Logbook
	logger  *zap.Logger
	ctx     context.Context

	view      workbench.View
	form      claimForm
	photos    photoForm
	editor    *partEditor
	parts     table.Model
	actions   list.Model
	spinner   spinner.Model
	focus     decisionFocus
	flash     string
	logLines  int
	loadPhoto func(path string) (media.Upload, error)

	width  int
	height int
}

// decisionItem implements list.Item for the decision menu
type decisionItem struct {
	key   string
	title string
	desc  string
}

func (i decisionItem) Title() string       { return fmt.Sprintf("[%s] %s", i.key, i.title) }
func (i decisionItem) Description() string { return i.desc }
func (i decisionItem) FilterValue() string { return i.title }

func decisionItems() []list.Item {
	return []list.Item{
		decisionItem{key: "a", title: "Approve", desc: "Fast-track the claim for payment"},
		decisionItem{key: "p", title: "Request photos", desc: "Send the claim back for more photos"},
		decisionItem{key: "e", title: "Escalate", desc: "Hand off to a senior adjuster"},
		decisionItem{key: "n", title: "Add part", desc: "Add a damaged part by hand"},
	}
}

// NewApp creates an App driving ctl.
func NewApp(ctl *workbench.Controller, opts ...AppOption) *App {
	actions := list.New(decisionItems(), list.NewDefaultDelegate(), 40, 14)
	actions.Title = "Decision"
	actions.SetShowStatusBar(false)
	actions.SetFilteringEnabled(false)
	actions.SetShowHelp(false)

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = runningStyle

	app := &App{
		ctl:       ctl,
		logger:    zap.NewNop(),
		ctx:       context.Background(),
		form:      newClaimForm(),
		photos:    newPhotoForm(),
		parts:     newPartsTable(),
		actions:   actions,
		spinner:   spin,
		logLines:  defaultLogLines,
		loadPhoto: media.LoadFile,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.refresh()
	return app
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.form.focusCmd()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case assessmentFinishedMsg:
		switch {
		case errors.Is(msg.err, workbench.ErrStaleAssessment):
			a.logger.Debug("stale assessment result ignored")
		case msg.err != nil:
			a.flash = ""
		default:
			a.focus = focusParts
		}
		a.refresh()
		return a, nil

	case spinner.TickMsg:
		if !a.view.Running {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "ctrl+z":
		a.apply(a.ctl.Undo())
		a.editor = nil
		return a, nil
	case "ctrl+n":
		a.applyOutcome(a.ctl.StartNewClaim())
		return a, nil
	}

	if a.view.Pending != workbench.ConfirmNone {
		return a, a.handleConfirmKey(msg)
	}
	if a.editor != nil {
		return a, a.handleEditorKey(msg)
	}

	switch a.view.Step {
	case claims.StepClaimEntry:
		return a, a.handleClaimFormKey(msg)
	case claims.StepPhotoUpload, claims.StepReadyToAssess:
		return a, a.handlePhotoKey(msg)
	case claims.StepDecision:
		return a, a.handleDecisionKey(msg)
	}
	return a, nil
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "enter":
		a.applyOutcome(a.ctl.Confirm())
		if a.view.Step == claims.StepClaimEntry {
			return a.resetForms()
		}
	case "n", "esc":
		a.apply(a.ctl.Cancel())
	}
	return nil
}

func (a *App) handleClaimFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return a.form.next()
	case "shift+tab", "up":
		return a.form.prev()
	case "enter":
		policy, name, desc := a.form.values()
		if a.apply(a.ctl.SubmitClaim(policy, name, desc)) {
			a.form.blur()
			return a.photos.focus()
		}
		return nil
	}
	return a.form.update(msg)
}

func (a *App) handlePhotoKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+r":
		return a.startAssessment()
	case "enter":
		paths := splitPaths(a.photos.input.Value())
		if len(paths) == 0 {
			if a.view.Step == claims.StepReadyToAssess {
				return a.startAssessment()
			}
			a.flash = "Enter one or more photo paths, separated by commas."
			return nil
		}
		uploads := make([]media.Upload, 0, len(paths))
		for _, path := range paths {
			upload, err := a.loadPhoto(path)
			if err != nil {
				a.flash = err.Error()
				a.logger.Warn("load photo", zap.String("path", path), zap.Error(err))
				return nil
			}
			uploads = append(uploads, upload)
		}
		if a.apply(a.ctl.AddPhotos(uploads)) {
			a.photos.input.Reset()
		}
		return nil
	case "ctrl+x":
		a.apply(a.ctl.SetPhotos(nil))
		return nil
	}
	return a.photos.update(msg)
}

func (a *App) handleDecisionKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "tab":
		if a.focus == focusParts {
			a.focus = focusActions
		} else {
			a.focus = focusParts
		}
		return nil
	case "a":
		a.applyOutcome(a.ctl.Approve())
		return nil
	case "e":
		a.applyOutcome(a.ctl.Escalate())
		return nil
	case "p":
		if a.apply(a.ctl.RequestPhotos()) {
			return a.photos.focus()
		}
		return nil
	case "n":
		return a.openEditor(-1)
	case "o":
		return a.openEditor(a.parts.Cursor())
	case "x", "delete":
		if a.view.Assessment != nil && len(a.view.Assessment.DamagedParts) > 0 {
			a.apply(a.ctl.RemovePart(a.parts.Cursor()))
		}
		return nil
	case "enter":
		if a.focus == focusParts {
			return a.openEditor(a.parts.Cursor())
		}
		if item, ok := a.actions.SelectedItem().(decisionItem); ok {
			return a.handleDecisionKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(item.key)})
		}
		return nil
	}

	var cmd tea.Cmd
	if a.focus == focusParts {
		a.parts, cmd = a.parts.Update(msg)
	} else {
		a.actions, cmd = a.actions.Update(msg)
	}
	return cmd
}

func (a *App) handleEditorKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.closeEditor()
		return nil
	case "tab", "down":
		return a.editor.next()
	case "shift+tab", "up":
		return a.editor.prev()
	case "enter":
		part, err := a.editor.part()
		if err != nil {
			a.flash = err.Error()
			return nil
		}
		var applied bool
		if a.editor.index < 0 {
			applied = a.apply(a.ctl.AddPart(part))
		} else {
			applied = a.apply(a.ctl.OverridePart(a.editor.index, part, workbench.OverrideMetadata{}))
		}
		if applied {
			a.editor = nil
		}
		return nil
	}
	return a.editor.update(msg)
}

func (a *App) openEditor(index int) tea.Cmd {
	if a.view.Assessment == nil {
		return nil
	}
	if index < 0 {
		a.editor = newPartEditor(-1, claims.DamagedPart{Severity: claims.SeverityModerate, Confidence: 1})
		return a.editor.focusCmd()
	}
	if index >= len(a.view.Assessment.DamagedParts) {
		return nil
	}
	if !a.apply(a.ctl.SetEditingIndex(&index)) {
		return nil
	}
	a.editor = newPartEditor(index, a.view.Assessment.DamagedParts[index])
	return a.editor.focusCmd()
}

func (a *App) closeEditor() {
	if a.editor != nil && a.editor.index >= 0 {
		a.apply(a.ctl.SetEditingIndex(nil))
	}
	a.editor = nil
}

func (a *App) startAssessment() tea.Cmd {
	job, err := a.ctl.BeginAssessment()
	if !a.apply(err) {
		return nil
	}
	ctl, ctx := a.ctl, a.ctx
	run := func() tea.Msg {
		return assessmentFinishedMsg{err: ctl.Execute(ctx, job)}
	}
	return tea.Batch(a.spinner.Tick, run)
}

func (a *App) resetForms() tea.Cmd {
	a.form = newClaimForm()
	a.photos = newPhotoForm()
	a.editor = nil
	a.focus = focusParts
	return a.form.focusCmd()
}

// apply refreshes the snapshot and records err for display. It reports
// whether the intent succeeded.
func (a *App) apply(err error) bool {
	a.refresh()
	if err != nil {
		a.flash = describeError(err)
		a.logger.Debug("intent rejected", zap.Error(err))
		return false
	}
	a.flash = ""
	return true
}

func (a *App) applyOutcome(outcome workbench.Outcome, err error) {
	if !a.apply(err) {
		return
	}
	if outcome == workbench.OutcomeCommitted && a.view.Step == claims.StepClaimEntry && a.view.Claim == nil {
		a.resetForms()
	}
}

func (a *App) refresh() {
	a.view = a.ctl.State()
	a.parts.SetRows(partRows(a.view.Assessment))
	if n := len(a.parts.Rows()); n > 0 && a.parts.Cursor() >= n {
		a.parts.SetCursor(n - 1)
	}
}

func (a *App) resize() {
	width := a.mainWidth()
	a.parts.SetWidth(width)
	a.actions.SetSize(width, 14)
	a.form.setWidth(width)
	a.photos.setWidth(width)
}

// describeError turns controller errors into operator-facing text.
func describeError(err error) string {
	var verr *workbench.ValidationError
	var perr *workbench.PartIndexError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &perr):
		return fmt.Sprintf("There is no part %d in this assessment.", perr.Index+1)
	case errors.Is(err, workbench.ErrNoClaim):
		return "Enter a claim first."
	case errors.Is(err, workbench.ErrNotEnoughPhotos):
		return "Upload at least two photos before running the assessment."
	case errors.Is(err, workbench.ErrNoAssessment):
		return "Run the assessment first."
	case errors.Is(err, workbench.ErrAssessmentRunning):
		return "The assessment is still running."
	case errors.Is(err, workbench.ErrNothingToUndo):
		return "Nothing to undo."
	case errors.Is(err, workbench.ErrNothingPending):
		return "Nothing to confirm."
	case errors.Is(err, workbench.ErrAlreadyDecided):
		return "This claim has already been decided. Start a new claim with ctrl+n."
	}
	var ierr *inference.Error
	if errors.As(err, &ierr) {
		return inference.Summary(err)
	}
	return err.Error()
}

func splitPaths(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
