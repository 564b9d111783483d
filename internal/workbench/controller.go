// internal/workbench/controller.go
//
// The Controller owns every piece of mutable workbench state and is the only
// thing allowed to change it. Presentation layers read State() and call the
// intent methods; each intent applies its whole transition under the lock
// before returning, and every mutating intent pushes a snapshot first so
// Undo can put the claim back exactly as it was.

package workbench

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/logbook"
	"github.com/kingrea/claims-workbench/internal/media"
)

const actionTimestampLayout = "2006-01-02 15:04:05"

// Controller is the claims workflow state machine.
type Controller struct {
	mu sync.Mutex

	assessor inference.Assessor
	rules    Rules
	store    media.Store
	logger   *zap.Logger
	journal  *logbook.Logbook
	clock    func() time.Time
	newID    func() string

	claim      *claims.Claim
	photos     []claims.Photo
	uploads    map[string]media.Upload
	locators   []string
	assessment *claims.Assessment
	actions    []string
	step       claims.Step

	policyError     string
	uploadHint      string
	status          string
	successMessage  string
	assessmentError string
	running         bool
	newClaimAllowed bool
	pending         Confirmation
	editingIndex    *int

	history    *history
	generation uint64
	cancelJob  context.CancelFunc
}

// Option customizes the controller.
type Option func(*Controller)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJournal mirrors every audit entry into the operator journal.
func WithJournal(journal *logbook.Logbook) Option {
	return func(c *Controller) {
		c.journal = journal
	}
}

// WithMediaStore sets where photo bytes live and locators come from.
func WithMediaStore(store media.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// WithRules overrides the desk rules. Unset fields keep their defaults.
func WithRules(rules Rules) Option {
	return func(c *Controller) {
		c.rules = rules.withDefaults()
	}
}

// WithIDGenerator replaces the uuid generator used for claims and photos.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// New wires a controller to an assessment backend.
func New(assessor inference.Assessor, opts ...Option) (*Controller, error) {
	if assessor == nil {
		return nil, eris.New("workbench: assessor is required")
	}
	c := &Controller{
		assessor: assessor,
		rules:    DefaultRules(),
		store:    media.NewMemoryStore(),
		logger:   zap.NewNop(),
		clock:    time.Now,
		newID:    uuid.NewString,
		uploads:  map[string]media.Upload{},
		step:     claims.StepClaimEntry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.history = newHistory(c.rules.UndoDepth)
	return c, nil
}

// Rules returns the rules in force.
func (c *Controller) Rules() Rules {
	return c.rules
}

// SubmitClaim sets the claim context from the entry form.
func (c *Controller) SubmitClaim(policyNumber, name, description string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	normalized := claims.NormalizePolicyNumber(policyNumber)
	if !claims.HasPolicyPrefix(normalized, c.rules.PolicyPrefix) {
		msg := fmt.Sprintf("Policy # must start with \"%s\".", claims.NormalizePolicyNumber(c.rules.PolicyPrefix))
		c.policyError = msg
		c.record(logbook.LevelWarn, fmt.Sprintf("[SYSTEM] Invalid policy number \"%s\" rejected.", policyNumber))
		c.logger.Warn("policy number rejected", zap.String("policy_number", policyNumber))
		return &ValidationError{Field: "policy_number", Message: msg}
	}

	c.pushSnapshot()
	c.supersedeRunning()
	c.claim = &claims.Claim{
		ID:           c.newID(),
		PolicyNumber: normalized,
		Name:         name,
		Description:  description,
	}
	c.policyError = ""
	c.step = claims.StepPhotoUpload
	c.uploadHint = "Please upload damage photos to proceed."
	c.newClaimAllowed = false
	c.assessment = nil
	c.assessmentError = ""
	c.editingIndex = nil
	c.pending = ConfirmNone
	c.status = "Claim context set."
	c.record(logbook.LevelInfo, fmt.Sprintf("Claim context set for %s", normalized))
	c.logger.Info("claim submitted", zap.String("claim_id", c.claim.ID), zap.String("policy_number", normalized))
	return nil
}

// SetPhotos replaces the photo set for the active claim.
func (c *Controller) SetPhotos(uploads []media.Upload) error {
	return c.applyPhotos(uploads, false)
}

// AddPhotos appends uploads to the photos already attached to the claim.
func (c *Controller) AddPhotos(uploads []media.Upload) error {
	return c.applyPhotos(uploads, true)
}

func (c *Controller) applyPhotos(uploads []media.Upload, keep bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claim == nil {
		c.logger.Warn("photos rejected without claim", zap.Int("count", len(uploads)))
		return ErrNoClaim
	}
	if c.running {
		return ErrAssessmentRunning
	}

	now := c.clock().UTC()
	var photos []claims.Photo
	if keep {
		photos = claims.ClonePhotos(c.photos)
	}
	added := make([]claims.Photo, 0, len(uploads))
	acquired := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		locator, err := c.store.Acquire(upload)
		if err != nil {
			for _, loc := range acquired {
				_ = c.store.Release(loc)
			}
			return eris.Wrapf(err, "workbench: store photo %s", upload.Name)
		}
		acquired = append(acquired, locator)
		added = append(added, claims.Photo{
			ID:         c.newID(),
			Locator:    locator,
			Filename:   upload.Name,
			UploadedAt: now,
			Source:     claims.SourceUser,
			Meta: claims.PhotoMeta{
				MimeType:  upload.DetectMIME(),
				SizeBytes: upload.Size(),
			},
		})
	}

	c.pushSnapshot()
	c.locators = append(c.locators, acquired...)
	for i, photo := range added {
		c.uploads[photo.ID] = uploads[i]
	}
	c.photos = append(photos, added...)
	c.uploadHint = ""
	if len(c.photos) >= c.rules.MinPhotos {
		c.step = claims.StepReadyToAssess
		c.record(logbook.LevelInfo, fmt.Sprintf("Uploaded %d photos", len(c.photos)))
	} else {
		c.step = claims.StepPhotoUpload
	}
	c.logger.Info("photos set",
		zap.String("claim_id", c.claim.ID),
		zap.Int("added", len(added)),
		zap.Int("count", len(c.photos)),
		zap.Stringer("step", c.step),
	)
	return nil
}

// Undo restores the state captured before the last mutating intent.
func (c *Controller) Undo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.history.pop()
	if !ok {
		return ErrNothingToUndo
	}
	c.supersedeRunning()
	c.claim = last.claim
	c.photos = last.photos
	c.assessment = last.assessment
	c.actions = last.actions
	c.step = last.step

	c.status = "Last change undone."
	c.newClaimAllowed = false
	c.uploadHint = ""
	c.policyError = ""
	c.assessmentError = ""
	c.successMessage = ""
	c.pending = ConfirmNone
	c.editingIndex = nil
	c.journal.Info("Undo · restored step %s", c.step.FriendlyName())
	c.logger.Info("undo", zap.Stringer("step", c.step), zap.Int("remaining", c.history.len()))
	return nil
}

// StartNewClaim resets the workbench. Discarding an undecided assessment
// needs confirmation first.
func (c *Controller) StartNewClaim() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.assessment != nil && !c.newClaimAllowed {
		c.pending = ConfirmNewClaim
		return OutcomeNeedsConfirmation, nil
	}
	c.reset()
	return OutcomeCommitted, nil
}

// DismissSuccess clears the success alert.
func (c *Controller) DismissSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successMessage = ""
}

func (c *Controller) reset() {
	c.supersedeRunning()
	released := 0
	for _, locator := range c.locators {
		if err := c.store.Release(locator); err != nil {
			c.logger.Warn("release photo locator", zap.String("locator", locator), zap.Error(err))
			continue
		}
		released++
	}
	c.locators = nil
	c.uploads = map[string]media.Upload{}
	c.claim = nil
	c.photos = nil
	c.assessment = nil
	c.actions = nil
	c.step = claims.StepClaimEntry
	c.policyError = ""
	c.uploadHint = ""
	c.status = ""
	c.successMessage = ""
	c.assessmentError = ""
	c.newClaimAllowed = false
	c.pending = ConfirmNone
	c.editingIndex = nil
	c.history.clear()
	c.record(logbook.LevelInfo, "New claim started")
	c.logger.Info("workbench reset", zap.Int("locators_released", released))
}

// pushSnapshot records the undoable state. Callers hold c.mu.
func (c *Controller) pushSnapshot() {
	c.history.push(snapshot{
		claim:      c.claim,
		photos:     c.photos,
		assessment: c.assessment,
		actions:    c.actions,
		step:       c.step,
	}.clone())
}

// supersedeRunning abandons an in-flight assessment so its result is dropped.
func (c *Controller) supersedeRunning() {
	if !c.running {
		return
	}
	c.running = false
	c.generation++
	if c.cancelJob != nil {
		c.cancelJob()
		c.cancelJob = nil
	}
	c.logger.Info("in-flight assessment superseded")
}

// record appends an audit entry and mirrors it to the journal.
func (c *Controller) record(level logbook.Level, message string) {
	entry := fmt.Sprintf("%s - %s", c.clock().UTC().Format(actionTimestampLayout), message)
	actions := make([]string, len(c.actions), len(c.actions)+1)
	copy(actions, c.actions)
	c.actions = append(actions, entry)
	c.journal.Append(level, message)
}
