package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/media"
	"github.com/kingrea/claims-workbench/internal/workbench"
)

// syntheticPhoto is a minimal PNG signature used for generated uploads.
var syntheticPhoto = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// errorKinds maps expect_error names to the controller errors they match.
var errorKinds = map[string]error{
	"no_claim":           workbench.ErrNoClaim,
	"not_enough_photos":  workbench.ErrNotEnoughPhotos,
	"no_assessment":      workbench.ErrNoAssessment,
	"assessment_running": workbench.ErrAssessmentRunning,
	"nothing_to_undo":    workbench.ErrNothingToUndo,
	"nothing_pending":    workbench.ErrNothingPending,
	"stale_assessment":   workbench.ErrStaleAssessment,
	"already_decided":    workbench.ErrAlreadyDecided,
}

// StepResult records what one step did.
type StepResult struct {
	Index   int
	Action  string
	Outcome string
	Err     error
}

// Report is the result of a replay.
type Report struct {
	Script string
	Steps  []StepResult
	Final  workbench.View
}

// StepError is returned when a step's error does not match its expectation.
type StepError struct {
	Index  int
	Action string
	Want   string
	Err    error
}

func (e *StepError) Error() string {
	switch {
	case e.Want == "":
		return fmt.Sprintf("scenario: step %d (%s): unexpected error: %v", e.Index, e.Action, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("scenario: step %d (%s): expected %s error, got none", e.Index, e.Action, e.Want)
	default:
		return fmt.Sprintf("scenario: step %d (%s): expected %s error, got: %v", e.Index, e.Action, e.Want, e.Err)
	}
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner drives a controller through scripts.
type Runner struct {
	ctl    *workbench.Controller
	logger *zap.Logger
}

// NewRunner creates a runner for ctl.
func NewRunner(ctl *workbench.Controller, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{ctl: ctl, logger: logger}
}

// Run executes every step in order and stops at the first step whose error
// does not match expect_error.
func (r *Runner) Run(ctx context.Context, script *Script) (*Report, error) {
	if script == nil {
		return nil, eris.New("scenario: nil script")
	}
	report := &Report{Script: script.Name}
	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			report.Final = r.ctl.State()
			return report, eris.Wrap(err, "scenario: interrupted")
		}
		outcome, err := r.apply(ctx, script, step)
		report.Steps = append(report.Steps, StepResult{Index: i, Action: step.Action, Outcome: outcome, Err: err})
		r.logger.Debug("scenario step",
			zap.Int("index", i),
			zap.String("action", step.Action),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		if !matches(step.ExpectError, err) {
			report.Final = r.ctl.State()
			return report, &StepError{Index: i, Action: step.Action, Want: step.ExpectError, Err: err}
		}
	}
	report.Final = r.ctl.State()
	return report, nil
}

func (r *Runner) apply(ctx context.Context, script *Script, step Step) (string, error) {
	switch step.Action {
	case ActionSubmit:
		return committed(r.ctl.SubmitClaim(step.Policy, step.Name, step.Description))
	case ActionPhotos:
		uploads, err := script.uploads(step)
		if err != nil {
			return "", err
		}
		return committed(r.ctl.SetPhotos(uploads))
	case ActionAddPhotos:
		uploads, err := script.uploads(step)
		if err != nil {
			return "", err
		}
		return committed(r.ctl.AddPhotos(uploads))
	case ActionAssess:
		return committed(r.ctl.RunAssessment(ctx))
	case ActionApprove:
		return outcome(r.ctl.Approve())
	case ActionEscalate:
		return outcome(r.ctl.Escalate())
	case ActionRequestPhotos:
		return committed(r.ctl.RequestPhotos())
	case ActionConfirm:
		return outcome(r.ctl.Confirm())
	case ActionCancel:
		return committed(r.ctl.Cancel())
	case ActionOverride:
		return committed(r.ctl.OverridePart(*step.Index, *step.Part, workbench.OverrideMetadata{}))
	case ActionAddPart:
		return committed(r.ctl.AddPart(*step.Part))
	case ActionRemovePart:
		return committed(r.ctl.RemovePart(*step.Index))
	case ActionEdit:
		return committed(r.ctl.SetEditingIndex(step.Index))
	case ActionUndo:
		return committed(r.ctl.Undo())
	case ActionNewClaim:
		return outcome(r.ctl.StartNewClaim())
	}
	return "", eris.Errorf("scenario: unknown action %q", step.Action)
}

func (s *Script) uploads(step Step) ([]media.Upload, error) {
	uploads := make([]media.Upload, 0, len(step.Photos)+step.Synthetic)
	for _, p := range step.Photos {
		upload, err := media.LoadFile(s.resolve(p))
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	for i := 0; i < step.Synthetic; i++ {
		uploads = append(uploads, media.Upload{
			Name: fmt.Sprintf("synthetic-%d.png", i+1),
			Data: syntheticPhoto,
		})
	}
	return uploads, nil
}

func committed(err error) (string, error) {
	if err != nil {
		return "", err
	}
	return workbench.OutcomeCommitted.String(), nil
}

func outcome(o workbench.Outcome, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return o.String(), nil
}

// matches reports whether err satisfies the expectation. An empty
// expectation means the step must succeed.
func matches(want string, err error) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return err == nil
	}
	if err == nil {
		return false
	}
	if target, ok := errorKinds[want]; ok {
		return errors.Is(err, target)
	}
	switch want {
	case "validation":
		var verr *workbench.ValidationError
		return errors.As(err, &verr)
	case "part_index":
		var perr *workbench.PartIndexError
		return errors.As(err, &perr)
	case "inference":
		var ierr *inference.Error
		return errors.As(err, &ierr)
	case "any":
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), want)
}
