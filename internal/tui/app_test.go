package tui

import (
	"context"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/media"
	"github.com/kingrea/claims-workbench/internal/workbench"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newTestApp(t *testing.T, assessor inference.Assessor) *App {
	t.Helper()
	if assessor == nil {
		assessor = &inference.Mock{Clock: func() time.Time { return fixedNow }}
	}
	ctl, err := workbench.New(assessor,
		workbench.WithClock(func() time.Time { return fixedNow }),
		workbench.WithMediaStore(media.NewMemoryStore()),
	)
	require.NoError(t, err)
	loader := func(path string) (media.Upload, error) {
		if path == "missing.png" {
			return media.Upload{}, fmt.Errorf("open %s: no such file", path)
		}
		return media.Upload{Name: path, Data: pngHeader}, nil
	}
	app := NewApp(ctl, WithPhotoLoader(loader), WithContext(context.Background()))
	app.Init()
	app.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return app
}

func highValueAssessor() inference.Assessor {
	return inference.AssessorFunc(func(context.Context, inference.Request) (claims.Assessment, error) {
		a := claims.Assessment{
			DamagedParts: []claims.DamagedPart{{
				PartLabel:        "Frame",
				Severity:         claims.SeveritySevere,
				Confidence:       0.7,
				EstimatedCostMin: 90000,
				EstimatedCostMax: 150000,
				RepairAction:     "replace",
			}},
			OverallConfidence: 0.7,
			Recommendation:    claims.Recommendation{Code: claims.RecommendFastTrack, Text: "Review exposure"},
		}
		a.Recompute()
		return a, nil
	})
}

func typeText(app *App, text string) {
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func press(app *App, key tea.KeyType) tea.Cmd {
	_, cmd := app.Update(tea.KeyMsg{Type: key})
	return cmd
}

func pressRune(app *App, r rune) tea.Cmd {
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return cmd
}

// drain runs cmd and feeds assessment results back into the app. Spinner
// ticks are dropped so the loop ends.
func drain(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			drain(t, app, c)
		}
	case assessmentFinishedMsg:
		_, next := app.Update(msg)
		drain(t, app, next)
	}
}

// toDecision submits a claim, attaches two photos and runs the assessment.
func toDecision(t *testing.T, app *App) {
	t.Helper()
	typeText(app, "pol-42")
	press(app, tea.KeyTab)
	typeText(app, "Grace Hopper")
	press(app, tea.KeyEnter)
	require.Equal(t, claims.StepPhotoUpload, app.view.Step)

	typeText(app, "rear.png, side.png")
	press(app, tea.KeyEnter)
	require.Equal(t, claims.StepReadyToAssess, app.view.Step)

	drain(t, app, press(app, tea.KeyCtrlR))
	require.Equal(t, claims.StepDecision, app.view.Step)
}

func TestClaimFormShowsPolicyError(t *testing.T) {
	app := newTestApp(t, nil)
	typeText(app, "ABC-1")
	press(app, tea.KeyEnter)

	assert.Equal(t, claims.StepClaimEntry, app.view.Step)
	assert.Contains(t, app.View(), `Policy # must start with "POL-".`)
	require.NotEmpty(t, app.view.Actions)
	assert.Contains(t, app.view.Actions[len(app.view.Actions)-1], `[SYSTEM] Invalid policy number "ABC-1" rejected.`)
}

func TestFastTrackApproval(t *testing.T) {
	app := newTestApp(t, nil)
	toDecision(t, app)

	require.NotNil(t, app.view.Claim)
	assert.Equal(t, "POL-42", app.view.Claim.PolicyNumber)
	assert.Equal(t, "Grace Hopper", app.view.Claim.Name)
	out := app.View()
	assert.Contains(t, out, "Rear Bumper")
	assert.Contains(t, out, "$500 - $800")

	pressRune(app, 'a')
	assert.True(t, app.view.Decided())
	assert.Equal(t, workbench.ConfirmNone, app.view.Pending)
	assert.Contains(t, app.View(), "Claim approved successfully!")

	press(app, tea.KeyCtrlN)
	assert.Equal(t, claims.StepClaimEntry, app.view.Step)
	assert.Nil(t, app.view.Claim)
	assert.Empty(t, app.form.inputs[0].Value())
}

func TestHighValueApprovalAsksFirst(t *testing.T) {
	app := newTestApp(t, highValueAssessor())
	toDecision(t, app)

	pressRune(app, 'a')
	require.Equal(t, workbench.ConfirmApprove, app.view.Pending)
	assert.Contains(t, app.View(), "Confirm High-Value Approval")
	assert.Contains(t, app.View(), "$1500")

	pressRune(app, 'n')
	assert.Equal(t, workbench.ConfirmNone, app.view.Pending)
	assert.False(t, app.view.Decided())

	pressRune(app, 'a')
	pressRune(app, 'y')
	assert.True(t, app.view.Decided())
}

func TestNewClaimDuringDecisionNeedsConfirmation(t *testing.T) {
	app := newTestApp(t, nil)
	toDecision(t, app)

	press(app, tea.KeyCtrlN)
	require.Equal(t, workbench.ConfirmNewClaim, app.view.Pending)
	assert.Contains(t, app.View(), "Discard Current Assessment?")

	press(app, tea.KeyEnter)
	assert.Equal(t, claims.StepClaimEntry, app.view.Step)
	assert.Nil(t, app.view.Assessment)
}

func TestOverrideFromEditorAndUndo(t *testing.T) {
	app := newTestApp(t, nil)
	toDecision(t, app)

	pressRune(app, 'o')
	require.NotNil(t, app.editor)
	assert.Contains(t, app.View(), "Override Part 1")
	assert.Equal(t, "800", app.editor.inputs[3].Value())

	app.editor.inputs[3].SetValue("900")
	press(app, tea.KeyEnter)
	require.Nil(t, app.editor)
	assert.Equal(t, int64(90000), app.view.Assessment.TotalMax)
	assert.Contains(t, app.view.Actions[len(app.view.Actions)-1], "Override applied to part 1")

	press(app, tea.KeyCtrlZ)
	assert.Equal(t, int64(80000), app.view.Assessment.TotalMax)
}

func TestEditorRejectsBadAmount(t *testing.T) {
	app := newTestApp(t, nil)
	toDecision(t, app)

	pressRune(app, 'n')
	require.NotNil(t, app.editor)
	app.editor.inputs[0].SetValue("Left Mirror")
	app.editor.inputs[2].SetValue("abc")
	app.editor.inputs[3].SetValue("120")
	press(app, tea.KeyEnter)
	assert.NotNil(t, app.editor)
	assert.Contains(t, app.flash, "not a valid amount")

	app.editor.inputs[2].SetValue("80")
	press(app, tea.KeyEnter)
	assert.Nil(t, app.editor)
	require.Len(t, app.view.Assessment.DamagedParts, 2)
	assert.Equal(t, int64(92000), app.view.Assessment.TotalMax)
}

func TestPhotosAccumulateAcrossEntries(t *testing.T) {
	app := newTestApp(t, nil)
	typeText(app, "POL-1")
	press(app, tea.KeyEnter)

	typeText(app, "rear.png")
	press(app, tea.KeyEnter)
	assert.Equal(t, claims.StepPhotoUpload, app.view.Step)
	require.Len(t, app.view.Photos, 1)
	assert.Empty(t, app.photos.input.Value())

	typeText(app, "side.png")
	press(app, tea.KeyEnter)
	assert.Equal(t, claims.StepReadyToAssess, app.view.Step)
	require.Len(t, app.view.Photos, 2)
	assert.Equal(t, "rear.png", app.view.Photos[0].Filename)
	assert.Equal(t, "side.png", app.view.Photos[1].Filename)

	press(app, tea.KeyCtrlX)
	assert.Equal(t, claims.StepPhotoUpload, app.view.Step)
	assert.Empty(t, app.view.Photos)
}

func TestRequestedPhotosKeepEarlierOnes(t *testing.T) {
	app := newTestApp(t, nil)
	toDecision(t, app)

	pressRune(app, 'p')
	require.Equal(t, claims.StepPhotoUpload, app.view.Step)
	typeText(app, "close-up.png")
	press(app, tea.KeyEnter)

	require.Len(t, app.view.Photos, 3)
	assert.Equal(t, claims.StepReadyToAssess, app.view.Step)
}

func TestPhotosLockedWhileAssessing(t *testing.T) {
	app := newTestApp(t, nil)
	typeText(app, "POL-1")
	press(app, tea.KeyEnter)
	typeText(app, "a.png,b.png")
	press(app, tea.KeyEnter)

	cmd := press(app, tea.KeyCtrlR)
	require.True(t, app.view.Running)
	typeText(app, "c.png")
	press(app, tea.KeyEnter)
	assert.Equal(t, "The assessment is still running.", app.flash)
	assert.Len(t, app.view.Photos, 2)

	drain(t, app, cmd)
	assert.Equal(t, claims.StepDecision, app.view.Step)
}

func TestPhotoLoadFailureIsShown(t *testing.T) {
	app := newTestApp(t, nil)
	typeText(app, "POL-1")
	press(app, tea.KeyEnter)

	typeText(app, "rear.png, missing.png")
	press(app, tea.KeyEnter)
	assert.Equal(t, claims.StepPhotoUpload, app.view.Step)
	assert.Empty(t, app.view.Photos)
	assert.Contains(t, app.View(), "no such file")
}

func TestAssessmentFailureIsShown(t *testing.T) {
	failing := inference.AssessorFunc(func(context.Context, inference.Request) (claims.Assessment, error) {
		return claims.Assessment{}, inference.Wrap("assess", fmt.Errorf("upstream unavailable"))
	})
	app := newTestApp(t, failing)
	typeText(app, "POL-1")
	press(app, tea.KeyEnter)
	typeText(app, "a.png,b.png")
	press(app, tea.KeyEnter)

	drain(t, app, press(app, tea.KeyCtrlR))
	assert.Equal(t, claims.StepReadyToAssess, app.view.Step)
	assert.False(t, app.view.Running)
	assert.Contains(t, app.view.AssessmentError, "Retry when ready.")
}

func TestUndoDropsInFlightResult(t *testing.T) {
	app := newTestApp(t, nil)
	typeText(app, "POL-1")
	press(app, tea.KeyEnter)
	typeText(app, "a.png,b.png")
	press(app, tea.KeyEnter)

	cmd := press(app, tea.KeyCtrlR)
	require.True(t, app.view.Running)
	press(app, tea.KeyCtrlZ)
	drain(t, app, cmd)

	assert.Equal(t, claims.StepReadyToAssess, app.view.Step)
	assert.Nil(t, app.view.Assessment)
	assert.False(t, app.view.Running)
}

func TestAssessWithoutPhotosIsRejected(t *testing.T) {
	app := newTestApp(t, nil)
	typeText(app, "POL-1")
	press(app, tea.KeyEnter)

	press(app, tea.KeyCtrlR)
	assert.Equal(t, "Upload at least two photos before running the assessment.", app.flash)
	assert.False(t, app.view.Running)
}
