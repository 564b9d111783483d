// Package scenario replays a YAML script of operator intents against a
// workbench controller, headless. Scripts double as demos and as
// regression fixtures for the workflow.
package scenario

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/claims-workbench/internal/claims"
)

// Action names accepted in a script step.
const (
	ActionSubmit        = "submit"
	ActionPhotos        = "photos"
	ActionAddPhotos     = "add_photos"
	ActionAssess        = "assess"
	ActionApprove       = "approve"
	ActionEscalate      = "escalate"
	ActionRequestPhotos = "request_photos"
	ActionConfirm       = "confirm"
	ActionCancel        = "cancel"
	ActionOverride      = "override"
	ActionAddPart       = "add_part"
	ActionRemovePart    = "remove_part"
	ActionEdit          = "edit"
	ActionUndo          = "undo"
	ActionNewClaim      = "new_claim"
)

var knownActions = map[string]struct{}{
	ActionSubmit: {}, ActionPhotos: {}, ActionAddPhotos: {}, ActionAssess: {}, ActionApprove: {},
	ActionEscalate: {}, ActionRequestPhotos: {}, ActionConfirm: {}, ActionCancel: {},
	ActionOverride: {}, ActionAddPart: {}, ActionRemovePart: {}, ActionEdit: {},
	ActionUndo: {}, ActionNewClaim: {},
}

// Script is a named list of steps.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`

	// dir resolves relative photo paths.
	dir string
}

// Step is one operator intent.
type Step struct {
	Action      string              `yaml:"action"`
	Policy      string              `yaml:"policy,omitempty"`
	Name        string              `yaml:"name,omitempty"`
	Description string              `yaml:"description,omitempty"`
	Photos      []string            `yaml:"photos,omitempty"`
	Synthetic   int                 `yaml:"synthetic,omitempty"`
	Index       *int                `yaml:"index,omitempty"`
	Part        *claims.DamagedPart `yaml:"part,omitempty"`
	ExpectError string              `yaml:"expect_error,omitempty"`
}

// LoadFile reads and validates a script from disk.
func LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scenario: read %s", path)
	}
	script, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, eris.Wrapf(err, "scenario: %s", path)
	}
	if script.Name == "" {
		script.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return script, nil
}

// Parse decodes a script. Relative photo paths resolve against dir.
func Parse(data []byte, dir string) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, eris.Wrap(err, "scenario: parse")
	}
	script.dir = dir
	for i := range script.Steps {
		step := &script.Steps[i]
		step.Action = strings.ToLower(strings.TrimSpace(step.Action))
		if err := step.validate(); err != nil {
			return nil, eris.Wrapf(err, "steps[%d]", i)
		}
	}
	if len(script.Steps) == 0 {
		return nil, eris.New("scenario: script has no steps")
	}
	return &script, nil
}

func (s Step) validate() error {
	if _, ok := knownActions[s.Action]; !ok {
		return eris.Errorf("unknown action %q", s.Action)
	}
	switch s.Action {
	case ActionOverride:
		if s.Index == nil || s.Part == nil {
			return eris.New("override needs index and part")
		}
	case ActionAddPart:
		if s.Part == nil {
			return eris.New("add_part needs part")
		}
	case ActionRemovePart:
		if s.Index == nil {
			return eris.New("remove_part needs index")
		}
	case ActionPhotos, ActionAddPhotos:
		if s.Synthetic < 0 {
			return eris.New("synthetic must be >= 0")
		}
	}
	return nil
}

func (s *Script) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}
