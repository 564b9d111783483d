package workbench

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/logbook"
	"github.com/kingrea/claims-workbench/internal/media"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

const stamp = "2025-03-14 09:30:00 - "

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fixture struct {
	ctl   *Controller
	store *media.MemoryStore
}

func newFixture(t *testing.T, assessor inference.Assessor, opts ...Option) *fixture {
	t.Helper()
	if assessor == nil {
		assessor = &inference.Mock{Clock: func() time.Time { return fixedNow }}
	}
	store := media.NewMemoryStore()
	seq := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithMediaStore(store),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
	ctl, err := New(assessor, append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{ctl: ctl, store: store}
}

func photoUploads(n int) []media.Upload {
	out := make([]media.Upload, n)
	for i := range out {
		out[i] = media.Upload{Name: fmt.Sprintf("damage-%d.png", i+1), Data: pngHeader}
	}
	return out
}

// assessed drives the fixture to the decision step with the mock assessment.
func (f *fixture) assessed(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ctl.SubmitClaim("POL-100", "Ada Lovelace", "Rear-ended at a light"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
	require.NoError(t, f.ctl.RunAssessment(context.Background()))
}

func lastAction(v View) string {
	if len(v.Actions) == 0 {
		return ""
	}
	return v.Actions[len(v.Actions)-1]
}

func TestNewRequiresAssessor(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestSubmitClaimNormalizesPolicyNumber(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ctl.SubmitClaim("  pol-123abc ", "Ada", "Bumper"))

	v := f.ctl.State()
	require.NotNil(t, v.Claim)
	assert.Equal(t, "POL-123ABC", v.Claim.PolicyNumber)
	assert.Equal(t, "id-1", v.Claim.ID)
	assert.Equal(t, claims.StepPhotoUpload, v.Step)
	assert.Equal(t, "Claim context set.", v.Status)
	assert.Equal(t, "Please upload damage photos to proceed.", v.UploadHint)
	assert.Equal(t, []string{stamp + "Claim context set for POL-123ABC"}, v.Actions)
	assert.Equal(t, 1, v.UndoDepth)
}

func TestSubmitClaimRejectsMissingPrefix(t *testing.T) {
	cases := []string{"", "123", "PO-1", "XPOL-1", "P O L-1", "POL"}
	for _, raw := range cases {
		t.Run(fmt.Sprintf("%q", raw), func(t *testing.T) {
			f := newFixture(t, nil)

			err := f.ctl.SubmitClaim(raw, "Ada", "Bumper")

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "policy_number", verr.Field)
			v := f.ctl.State()
			assert.Nil(t, v.Claim)
			assert.Equal(t, claims.StepClaimEntry, v.Step)
			assert.Equal(t, 0, v.UndoDepth)
			assert.Equal(t, `Policy # must start with "POL-".`, v.PolicyError)
			assert.Equal(t, stamp+fmt.Sprintf("[SYSTEM] Invalid policy number \"%s\" rejected.", raw), lastAction(v))
		})
	}
}

func TestSubmitClaimClearsPolicyErrorAndAssessment(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)
	require.Error(t, f.ctl.SubmitClaim("bad", "", ""))
	require.NotEmpty(t, f.ctl.State().PolicyError)

	require.NoError(t, f.ctl.SubmitClaim("pol-200", "Grace", "Door"))

	v := f.ctl.State()
	assert.Empty(t, v.PolicyError)
	assert.Nil(t, v.Assessment)
	assert.Equal(t, "POL-200", v.Claim.PolicyNumber)
	assert.Equal(t, claims.StepPhotoUpload, v.Step)
}

func TestSetPhotosRequiresClaim(t *testing.T) {
	f := newFixture(t, nil)

	err := f.ctl.SetPhotos(photoUploads(2))

	require.ErrorIs(t, err, ErrNoClaim)
	assert.Equal(t, 0, f.store.Live())
	assert.Empty(t, f.ctl.State().Photos)
}

// quotaStore refuses uploads once limit locators are live.
type quotaStore struct {
	*media.MemoryStore
	limit int
}

func (s quotaStore) Acquire(u media.Upload) (string, error) {
	if s.Live() >= s.limit {
		return "", errors.New("quota exceeded")
	}
	return s.MemoryStore.Acquire(u)
}

func TestSetPhotosReleasesPartialUploadOnStoreFailure(t *testing.T) {
	store := quotaStore{MemoryStore: media.NewMemoryStore(), limit: 1}
	ctl, err := New(&inference.Mock{}, WithMediaStore(store), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	require.NoError(t, ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	before := ctl.State()

	err = ctl.SetPhotos(photoUploads(2))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 0, store.Live())
	after := ctl.State()
	assert.Equal(t, before.Step, after.Step)
	assert.Empty(t, after.Photos)
	assert.Equal(t, before.UndoDepth, after.UndoDepth)
}

func TestPhotoThreshold(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))

	require.NoError(t, f.ctl.SetPhotos(photoUploads(1)))
	v := f.ctl.State()
	assert.Equal(t, claims.StepPhotoUpload, v.Step)
	assert.Empty(t, v.UploadHint)
	require.Len(t, v.Photos, 1)

	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
	v = f.ctl.State()
	assert.Equal(t, claims.StepReadyToAssess, v.Step)
	assert.Equal(t, stamp+"Uploaded 2 photos", lastAction(v))
	require.Len(t, v.Photos, 2)
	for i, p := range v.Photos {
		assert.True(t, strings.HasPrefix(p.Locator, media.LocatorScheme), p.Locator)
		assert.Equal(t, fmt.Sprintf("damage-%d.png", i+1), p.Filename)
		assert.Equal(t, "image/png", p.Meta.MimeType)
		assert.Equal(t, int64(len(pngHeader)), p.Meta.SizeBytes)
		assert.Equal(t, claims.SourceUser, p.Source)
		assert.Equal(t, fixedNow, p.UploadedAt)
	}
	assert.Equal(t, 3, f.store.Live())
}

func TestRunAssessmentProducesMockAssessment(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)

	v := f.ctl.State()
	require.NotNil(t, v.Assessment)
	require.Len(t, v.Assessment.DamagedParts, 1)
	part := v.Assessment.DamagedParts[0]
	assert.Equal(t, claims.PartRearBumper, part.PartID)
	assert.Equal(t, claims.SeverityModerate, part.Severity)
	assert.InDelta(t, 0.85, part.Confidence, 1e-9)
	assert.Equal(t, int64(50000), v.Assessment.TotalMin)
	assert.Equal(t, int64(80000), v.Assessment.TotalMax)
	assert.Equal(t, claims.StepDecision, v.Step)
	assert.False(t, v.Running)
	assert.Equal(t, "Assessment complete.", v.Status)

	n := len(v.Actions)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, stamp+"AI assessment started", v.Actions[n-2])
	assert.Equal(t, stamp+"AI assessment completed", v.Actions[n-1])
}

func TestRunAssessmentPreconditions(t *testing.T) {
	f := newFixture(t, nil)
	require.ErrorIs(t, f.ctl.RunAssessment(context.Background()), ErrNoClaim)

	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(1)))
	depth := f.ctl.State().UndoDepth

	require.ErrorIs(t, f.ctl.RunAssessment(context.Background()), ErrNotEnoughPhotos)
	v := f.ctl.State()
	assert.False(t, v.Running)
	assert.Equal(t, depth, v.UndoDepth)
}

func TestBeginAssessmentRejectsReentry(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))

	job, err := f.ctl.BeginAssessment()
	require.NoError(t, err)
	assert.True(t, f.ctl.State().Running)
	assert.Equal(t, "Running AI assessment...", f.ctl.State().Status)
	require.Len(t, job.Request.Uploads, 2)
	assert.Equal(t, pngHeader, job.Request.Uploads[0].Data)

	_, err = f.ctl.BeginAssessment()
	require.ErrorIs(t, err, ErrAssessmentRunning)

	require.NoError(t, f.ctl.CompleteAssessment(job, inference.MockAssessment(fixedNow), nil))
	assert.Equal(t, claims.StepDecision, f.ctl.State().Step)
}

func TestAssessmentFailureKeepsStep(t *testing.T) {
	failing := inference.AssessorFunc(func(context.Context, inference.Request) (claims.Assessment, error) {
		return claims.Assessment{}, errors.New("backend unavailable")
	})
	f := newFixture(t, failing)
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))

	err := f.ctl.RunAssessment(context.Background())

	var ierr *inference.Error
	require.ErrorAs(t, err, &ierr)
	v := f.ctl.State()
	assert.False(t, v.Running)
	assert.Nil(t, v.Assessment)
	assert.Equal(t, claims.StepReadyToAssess, v.Step)
	assert.Equal(t, "Assessment failed: backend unavailable. Retry when ready.", v.AssessmentError)
	assert.Equal(t, stamp+"AI assessment failed: backend unavailable", lastAction(v))

	// a retry is accepted once the failure has been surfaced
	_, err = f.ctl.BeginAssessment()
	require.NoError(t, err)
	assert.Empty(t, f.ctl.State().AssessmentError)
}

func TestExecuteHonorsTimeout(t *testing.T) {
	slow := inference.NewMock(time.Hour)
	f := newFixture(t, slow, WithRules(Rules{AssessmentTimeout: 10 * time.Millisecond}))
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))

	err := f.ctl.RunAssessment(context.Background())

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, inference.IsRetryable(err))
	assert.False(t, f.ctl.State().Running)
}

func TestExecuteRunsOffTheCallerGoroutine(t *testing.T) {
	release := make(chan struct{})
	blocking := inference.AssessorFunc(func(ctx context.Context, req inference.Request) (claims.Assessment, error) {
		<-release
		return inference.MockAssessment(fixedNow), nil
	})
	f := newFixture(t, blocking)
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
	job, err := f.ctl.BeginAssessment()
	require.NoError(t, err)

	var wg sync.WaitGroup
	var execErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		execErr = f.ctl.Execute(context.Background(), job)
	}()

	assert.True(t, f.ctl.State().Running)
	close(release)
	wg.Wait()

	require.NoError(t, execErr)
	assert.Equal(t, claims.StepDecision, f.ctl.State().Step)
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	t.Run("after undo", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
		require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
		job, err := f.ctl.BeginAssessment()
		require.NoError(t, err)

		require.NoError(t, f.ctl.Undo())
		err = f.ctl.CompleteAssessment(job, inference.MockAssessment(fixedNow), nil)

		require.ErrorIs(t, err, ErrStaleAssessment)
		v := f.ctl.State()
		assert.Nil(t, v.Assessment)
		assert.False(t, v.Running)
		assert.Equal(t, claims.StepReadyToAssess, v.Step)
	})

	t.Run("after reset", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
		require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
		job, err := f.ctl.BeginAssessment()
		require.NoError(t, err)

		outcome, err := f.ctl.StartNewClaim()
		require.NoError(t, err)
		require.Equal(t, OutcomeCommitted, outcome)

		require.ErrorIs(t, f.ctl.CompleteAssessment(job, inference.MockAssessment(fixedNow), nil), ErrStaleAssessment)
		assert.Nil(t, f.ctl.State().Assessment)
	})

	t.Run("nil job", func(t *testing.T) {
		f := newFixture(t, nil)
		require.ErrorIs(t, f.ctl.CompleteAssessment(nil, claims.Assessment{}, nil), ErrStaleAssessment)
	})
}

func TestOverridePartUpdatesTotalsAndLogsDelta(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)
	part := f.ctl.State().Assessment.DamagedParts[0]
	part.EstimatedCostMin = 60000
	part.EstimatedCostMax = 90000

	require.NoError(t, f.ctl.OverridePart(0, part, OverrideMetadata{}))

	v := f.ctl.State()
	assert.Equal(t, int64(60000), v.Assessment.TotalMin)
	assert.Equal(t, int64(90000), v.Assessment.TotalMax)
	assert.Equal(t, stamp+"Override applied to part 1 (Δ 100.00, 12.5%)", lastAction(v))
	require.Len(t, v.Assessment.CostBreakdown, 1)
	assert.Contains(t, v.Assessment.CostBreakdown[0].Details, "Range: $600 - $900")
	assert.Nil(t, v.EditingIndex)
}

func TestOverridePartHighValueAndMetadata(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)
	part := f.ctl.State().Assessment.DamagedParts[0]
	part.EstimatedCostMax = 160000

	require.NoError(t, f.ctl.OverridePart(0, part, OverrideMetadata{}))
	assert.Equal(t, stamp+"Override applied to part 1 (Δ 800.00, 100.0%, high-value case)", lastAction(f.ctl.State()))

	delta, pct, high := 12.5, 0.25, false
	require.NoError(t, f.ctl.OverridePart(0, part, OverrideMetadata{Delta: &delta, DeltaPercent: &pct, HighValue: &high}))
	assert.Equal(t, stamp+"Override applied to part 1 (Δ 12.50, 25.0%)", lastAction(f.ctl.State()))
}

func TestPartOperationsRejectBadInput(t *testing.T) {
	f := newFixture(t, nil)
	valid := claims.DamagedPart{PartLabel: "Hood", Severity: claims.SeverityMinor, Confidence: 0.5, EstimatedCostMin: 100, EstimatedCostMax: 200}

	require.ErrorIs(t, f.ctl.OverridePart(0, valid, OverrideMetadata{}), ErrNoAssessment)
	require.ErrorIs(t, f.ctl.AddPart(valid), ErrNoAssessment)
	require.ErrorIs(t, f.ctl.RemovePart(0), ErrNoAssessment)

	f.assessed(t)
	before := f.ctl.State()

	var idxErr *PartIndexError
	require.ErrorAs(t, f.ctl.OverridePart(1, valid, OverrideMetadata{}), &idxErr)
	assert.Equal(t, 1, idxErr.Index)
	assert.Equal(t, 1, idxErr.Len)
	require.ErrorAs(t, f.ctl.RemovePart(-1), &idxErr)

	var verr *ValidationError
	bad := valid
	bad.EstimatedCostMin = 500
	require.ErrorAs(t, f.ctl.OverridePart(0, bad, OverrideMetadata{}), &verr)
	require.ErrorAs(t, f.ctl.AddPart(claims.DamagedPart{Confidence: 2}), &verr)

	after := f.ctl.State()
	assert.Equal(t, before.Assessment, after.Assessment)
	assert.Equal(t, before.Actions, after.Actions)
	assert.Equal(t, before.UndoDepth, after.UndoDepth)
}

func TestTotalsTrackPartsAfterEveryEdit(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)

	hood := claims.DamagedPart{PartLabel: "Hood", Severity: claims.SeverityMinor, Confidence: 0.6, EstimatedCostMin: 12000, EstimatedCostMax: 20000}
	door := claims.DamagedPart{PartLabel: "Left Door", Severity: claims.SeveritySevere, Confidence: 0.7, EstimatedCostMin: 90000, EstimatedCostMax: 150000}
	edits := []func() error{
		func() error { return f.ctl.AddPart(hood) },
		func() error { return f.ctl.AddPart(door) },
		func() error {
			hood.EstimatedCostMax = 25000
			return f.ctl.OverridePart(1, hood, OverrideMetadata{})
		},
		func() error { return f.ctl.RemovePart(0) },
		func() error { return f.ctl.RemovePart(1) },
		func() error { return f.ctl.RemovePart(0) },
	}
	for i, edit := range edits {
		require.NoError(t, edit(), "edit %d", i)
		a := f.ctl.State().Assessment
		lo, hi := claims.SumCosts(a.DamagedParts)
		assert.Equal(t, lo, a.TotalMin, "edit %d", i)
		assert.Equal(t, hi, a.TotalMax, "edit %d", i)
	}
	a := f.ctl.State().Assessment
	assert.Empty(t, a.DamagedParts)
	assert.Zero(t, a.TotalMax)
	assert.Equal(t, stamp+"Part 1 removed from assessment", lastAction(f.ctl.State()))
}

func TestApproveConfirmationThreshold(t *testing.T) {
	cases := []struct {
		name     string
		totalMax int64
		want     Outcome
	}{
		{"mock total", 80000, OutcomeCommitted},
		{"at threshold", 100000, OutcomeCommitted},
		{"above threshold", 100001, OutcomeNeedsConfirmation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.assessed(t)
			if tc.totalMax != 80000 {
				part := f.ctl.State().Assessment.DamagedParts[0]
				part.EstimatedCostMax = tc.totalMax
				require.NoError(t, f.ctl.OverridePart(0, part, OverrideMetadata{}))
			}

			outcome, err := f.ctl.Approve()

			require.NoError(t, err)
			assert.Equal(t, tc.want, outcome)
			v := f.ctl.State()
			if tc.want == OutcomeCommitted {
				assert.Equal(t, ConfirmNone, v.Pending)
				assert.True(t, v.NewClaimAllowed)
				assert.Equal(t, "Claim approved successfully! Ready to process next claim.", v.SuccessMessage)
				assert.Equal(t, "Claim approved successfully.", v.Status)
				assert.Equal(t, stamp+"Claim approved", lastAction(v))
				return
			}
			assert.Equal(t, ConfirmApprove, v.Pending)
			assert.False(t, v.NewClaimAllowed)
			assert.Equal(t, "This claim has a total estimated cost of $1000. Are you sure you want to approve it for fast-track processing?", v.Prompt())

			outcome, err = f.ctl.Confirm()
			require.NoError(t, err)
			assert.Equal(t, OutcomeCommitted, outcome)
			v = f.ctl.State()
			assert.True(t, v.NewClaimAllowed)
			assert.Equal(t, ConfirmNone, v.Pending)
			assert.Equal(t, stamp+"Claim approved", lastAction(v))
		})
	}
}

func TestEscalateAlwaysNeedsConfirmation(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)
	before := f.ctl.State()

	outcome, err := f.ctl.Escalate()
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsConfirmation, outcome)
	assert.Equal(t, ConfirmEscalate, f.ctl.State().Pending)
	assert.Contains(t, f.ctl.State().Prompt(), "senior adjuster")

	require.NoError(t, f.ctl.Cancel())
	cancelled := f.ctl.State()
	assert.Equal(t, ConfirmNone, cancelled.Pending)
	assert.Equal(t, before.Actions, cancelled.Actions)
	assert.False(t, cancelled.NewClaimAllowed)

	_, err = f.ctl.Escalate()
	require.NoError(t, err)
	outcome, err = f.ctl.Confirm()
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	v := f.ctl.State()
	assert.True(t, v.NewClaimAllowed)
	assert.Equal(t, "Claim escalated to senior adjuster for manual review.", v.SuccessMessage)
	assert.Equal(t, "Claim escalated for manual review.", v.Status)
	assert.Equal(t, stamp+"Claim escalated for manual review", lastAction(v))
}

func TestDecisionPreconditions(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.ctl.Approve()
	require.ErrorIs(t, err, ErrNoAssessment)
	_, err = f.ctl.Escalate()
	require.ErrorIs(t, err, ErrNoAssessment)
	require.ErrorIs(t, f.ctl.RequestPhotos(), ErrNoAssessment)
	_, err = f.ctl.Confirm()
	require.ErrorIs(t, err, ErrNothingPending)
	require.ErrorIs(t, f.ctl.Cancel(), ErrNothingPending)

	f.assessed(t)
	_, err = f.ctl.Approve()
	require.NoError(t, err)
	_, err = f.ctl.Approve()
	require.ErrorIs(t, err, ErrAlreadyDecided)
	_, err = f.ctl.Escalate()
	require.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestRequestPhotosReturnsToUpload(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)

	require.NoError(t, f.ctl.RequestPhotos())

	v := f.ctl.State()
	assert.Equal(t, claims.StepPhotoUpload, v.Step)
	assert.Equal(t, "Please upload additional photos for better assessment.", v.UploadHint)
	assert.Equal(t, "Awaiting additional photos.", v.Status)
	assert.False(t, v.NewClaimAllowed)
	assert.NotNil(t, v.Assessment)
	assert.Equal(t, stamp+"Additional photos requested", lastAction(v))
}

func TestUndoIsStrictInverse(t *testing.T) {
	bumper := func(f *fixture) claims.DamagedPart {
		part := f.ctl.State().Assessment.DamagedParts[0]
		part.EstimatedCostMin, part.EstimatedCostMax = 60000, 90000
		return part
	}
	cases := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		act   func(f *fixture) error
	}{
		{
			name:  "submit claim",
			setup: func(*testing.T, *fixture) {},
			act:   func(f *fixture) error { return f.ctl.SubmitClaim("pol-123abc", "Ada", "Bumper") },
		},
		{
			name: "resubmit claim",
			setup: func(t *testing.T, f *fixture) {
				f.assessed(t)
			},
			act: func(f *fixture) error { return f.ctl.SubmitClaim("POL-999", "Grace", "Door") },
		},
		{
			name: "set photos",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
			},
			act: func(f *fixture) error { return f.ctl.SetPhotos(photoUploads(2)) },
		},
		{
			name: "run assessment",
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
				require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
			},
			act: func(f *fixture) error { return f.ctl.RunAssessment(context.Background()) },
		},
		{
			name:  "approve",
			setup: func(t *testing.T, f *fixture) { f.assessed(t) },
			act: func(f *fixture) error {
				_, err := f.ctl.Approve()
				return err
			},
		},
		{
			name:  "escalate",
			setup: func(t *testing.T, f *fixture) { f.assessed(t) },
			act: func(f *fixture) error {
				if _, err := f.ctl.Escalate(); err != nil {
					return err
				}
				_, err := f.ctl.Confirm()
				return err
			},
		},
		{
			name:  "request photos",
			setup: func(t *testing.T, f *fixture) { f.assessed(t) },
			act:   func(f *fixture) error { return f.ctl.RequestPhotos() },
		},
		{
			name:  "override part",
			setup: func(t *testing.T, f *fixture) { f.assessed(t) },
			act:   func(f *fixture) error { return f.ctl.OverridePart(0, bumper(f), OverrideMetadata{}) },
		},
		{
			name:  "add part",
			setup: func(t *testing.T, f *fixture) { f.assessed(t) },
			act: func(f *fixture) error {
				return f.ctl.AddPart(claims.DamagedPart{PartLabel: "Trunk", Confidence: 0.4, EstimatedCostMin: 1, EstimatedCostMax: 2})
			},
		},
		{
			name:  "remove part",
			setup: func(t *testing.T, f *fixture) { f.assessed(t) },
			act:   func(f *fixture) error { return f.ctl.RemovePart(0) },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			tc.setup(t, f)
			before := f.ctl.State()

			require.NoError(t, tc.act(f))
			require.NoError(t, f.ctl.Undo())

			after := f.ctl.State()
			assert.Equal(t, before.Claim, after.Claim)
			assert.Equal(t, before.Photos, after.Photos)
			assert.Equal(t, before.Assessment, after.Assessment)
			assert.Equal(t, before.Actions, after.Actions)
			assert.Equal(t, before.Step, after.Step)
			assert.Equal(t, before.UndoDepth, after.UndoDepth)
			assert.Equal(t, "Last change undone.", after.Status)
			assert.False(t, after.NewClaimAllowed)
			assert.False(t, after.Running)
			assert.Empty(t, after.UploadHint)
			assert.Empty(t, after.SuccessMessage)
		})
	}
}

func TestUndoWithEmptyHistory(t *testing.T) {
	f := newFixture(t, nil)
	require.ErrorIs(t, f.ctl.Undo(), ErrNothingToUndo)
	assert.Empty(t, f.ctl.State().Status)
}

func TestUndoDepthIsBounded(t *testing.T) {
	f := newFixture(t, nil, WithRules(Rules{UndoDepth: 3}))
	for i := 0; i < 5; i++ {
		require.NoError(t, f.ctl.SubmitClaim(fmt.Sprintf("POL-%d", i), "Ada", "Bumper"))
	}
	assert.Equal(t, 3, f.ctl.State().UndoDepth)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.ctl.Undo())
	}
	assert.Equal(t, "POL-1", f.ctl.State().Claim.PolicyNumber)
	require.ErrorIs(t, f.ctl.Undo(), ErrNothingToUndo)
}

func TestStartNewClaim(t *testing.T) {
	t.Run("without assessment resets immediately", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
		require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))

		outcome, err := f.ctl.StartNewClaim()

		require.NoError(t, err)
		assert.Equal(t, OutcomeCommitted, outcome)
		v := f.ctl.State()
		assert.Nil(t, v.Claim)
		assert.Nil(t, v.Photos)
		assert.Equal(t, claims.StepClaimEntry, v.Step)
		assert.Equal(t, []string{stamp + "New claim started"}, v.Actions)
		assert.Equal(t, 0, v.UndoDepth)
		assert.Equal(t, 0, f.store.Live())
	})

	t.Run("undecided assessment needs confirmation", func(t *testing.T) {
		f := newFixture(t, nil)
		f.assessed(t)

		outcome, err := f.ctl.StartNewClaim()
		require.NoError(t, err)
		assert.Equal(t, OutcomeNeedsConfirmation, outcome)
		v := f.ctl.State()
		assert.Equal(t, ConfirmNewClaim, v.Pending)
		assert.NotNil(t, v.Assessment)
		assert.Contains(t, v.Prompt(), "discard all current data")

		_, err = f.ctl.Confirm()
		require.NoError(t, err)
		assert.Nil(t, f.ctl.State().Assessment)
		assert.Equal(t, 0, f.store.Live())
	})

	t.Run("decided claim resets without confirmation", func(t *testing.T) {
		f := newFixture(t, nil)
		f.assessed(t)
		_, err := f.ctl.Approve()
		require.NoError(t, err)

		outcome, err := f.ctl.StartNewClaim()
		require.NoError(t, err)
		assert.Equal(t, OutcomeCommitted, outcome)
		assert.Nil(t, f.ctl.State().Claim)
	})
}

func TestResetReleasesEveryLocatorOnce(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
	first := f.ctl.State().Photos
	require.NoError(t, f.ctl.SetPhotos(photoUploads(3)))
	assert.Equal(t, 5, f.store.Live())

	_, err := f.ctl.StartNewClaim()
	require.NoError(t, err)

	assert.Equal(t, 0, f.store.Live())
	require.ErrorIs(t, f.store.Release(first[0].Locator), media.ErrAlreadyReleased)

	// a second reset has nothing left to release
	_, err = f.ctl.StartNewClaim()
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.Live())
}

func TestSetEditingIndex(t *testing.T) {
	f := newFixture(t, nil)
	zero := 0
	require.ErrorIs(t, f.ctl.SetEditingIndex(&zero), ErrNoAssessment)

	f.assessed(t)
	require.NoError(t, f.ctl.SetEditingIndex(&zero))
	v := f.ctl.State()
	require.NotNil(t, v.EditingIndex)
	assert.Equal(t, 0, *v.EditingIndex)
	assert.Equal(t, stamp+"Opening override modal for part 1", lastAction(v))

	three := 3
	var idxErr *PartIndexError
	require.ErrorAs(t, f.ctl.SetEditingIndex(&three), &idxErr)

	require.NoError(t, f.ctl.SetEditingIndex(nil))
	assert.Nil(t, f.ctl.State().EditingIndex)
}

func TestStateIsDetachedCopy(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)

	v := f.ctl.State()
	v.Assessment.DamagedParts[0].EstimatedCostMax = 1
	v.Actions[0] = "tampered"
	v.Claim.PolicyNumber = "POL-X"
	v.Photos[0].Filename = "x"

	fresh := f.ctl.State()
	assert.Equal(t, int64(80000), fresh.Assessment.DamagedParts[0].EstimatedCostMax)
	assert.NotEqual(t, "tampered", fresh.Actions[0])
	assert.Equal(t, "POL-100", fresh.Claim.PolicyNumber)
	assert.Equal(t, "damage-1.png", fresh.Photos[0].Filename)
}

func TestPhotosCannotChangeWhileAssessmentRuns(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))
	require.NoError(t, f.ctl.SetPhotos(photoUploads(2)))
	job, err := f.ctl.BeginAssessment()
	require.NoError(t, err)
	live := f.store.Live()

	require.ErrorIs(t, f.ctl.SetPhotos(photoUploads(1)), ErrAssessmentRunning)
	require.ErrorIs(t, f.ctl.AddPhotos(photoUploads(1)), ErrAssessmentRunning)
	assert.Equal(t, live, f.store.Live())

	require.NoError(t, f.ctl.CompleteAssessment(job, inference.MockAssessment(fixedNow), nil))
	v := f.ctl.State()
	assert.Equal(t, claims.StepDecision, v.Step)
	assert.Len(t, v.Photos, 2)
}

func TestAddPhotosAccumulates(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctl.SubmitClaim("POL-1", "Ada", "Bumper"))

	require.ErrorIs(t, newFixture(t, nil).ctl.AddPhotos(photoUploads(1)), ErrNoClaim)

	require.NoError(t, f.ctl.AddPhotos(photoUploads(1)))
	v := f.ctl.State()
	assert.Equal(t, claims.StepPhotoUpload, v.Step)
	require.Len(t, v.Photos, 1)
	first := v.Photos[0]

	require.NoError(t, f.ctl.AddPhotos([]media.Upload{{Name: "side.png", Data: pngHeader}}))
	v = f.ctl.State()
	assert.Equal(t, claims.StepReadyToAssess, v.Step)
	require.Len(t, v.Photos, 2)
	assert.Equal(t, first, v.Photos[0])
	assert.Equal(t, "side.png", v.Photos[1].Filename)
	assert.Equal(t, stamp+"Uploaded 2 photos", lastAction(v))

	require.NoError(t, f.ctl.RunAssessment(context.Background()))
	require.NoError(t, f.ctl.RequestPhotos())
	require.NoError(t, f.ctl.AddPhotos(photoUploads(1)))
	v = f.ctl.State()
	assert.Len(t, v.Photos, 3)
	assert.Equal(t, claims.StepReadyToAssess, v.Step)

	require.NoError(t, f.ctl.Undo())
	assert.Len(t, f.ctl.State().Photos, 2)
}

func TestDirectDecisionClearsPendingNewClaim(t *testing.T) {
	f := newFixture(t, nil)
	f.assessed(t)

	outcome, err := f.ctl.StartNewClaim()
	require.NoError(t, err)
	require.Equal(t, OutcomeNeedsConfirmation, outcome)

	outcome, err = f.ctl.Approve()
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, outcome)
	assert.Equal(t, ConfirmNone, f.ctl.State().Pending)

	_, err = f.ctl.Confirm()
	require.ErrorIs(t, err, ErrNothingPending)
	v := f.ctl.State()
	assert.Equal(t, claims.StepDecision, v.Step)
	assert.True(t, v.Decided())
}

func TestJournalMirrorsAuditLog(t *testing.T) {
	book, err := logbook.New(filepath.Join(t.TempDir(), "journal.log"))
	require.NoError(t, err)
	f := newFixture(t, nil, WithJournal(book))

	f.assessed(t)
	require.NoError(t, f.ctl.Undo())

	lines, total := book.Tail(10)
	require.Equal(t, 5, total)
	assert.Contains(t, lines[0], "Claim context set for POL-100")
	assert.Contains(t, lines[1], "Uploaded 2 photos")
	assert.Contains(t, lines[2], "AI assessment started")
	assert.Contains(t, lines[3], "AI assessment completed")
	assert.Contains(t, lines[4], "INFO  Undo · restored step Ready to Assess")
}

func TestOutcomeAndConfirmationStrings(t *testing.T) {
	assert.Equal(t, "committed", OutcomeCommitted.String())
	assert.Equal(t, "needs-confirmation", OutcomeNeedsConfirmation.String())
	assert.Equal(t, "new-claim", ConfirmNewClaim.String())
	assert.Equal(t, "Confirm Escalation", ConfirmEscalate.Title())
	assert.Empty(t, View{}.Prompt())
}
