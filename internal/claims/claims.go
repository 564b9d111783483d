// internal/claims/claims.go
//
// Data model for the claims workbench: the claim under review, the photos
// attached to it, and the damage assessment produced for them.
// JSON tags follow the wire shape used by assessment backends.

package claims

import (
	"strings"
	"time"
)

// DefaultPolicyPrefix is the prefix every normalized policy number carries.
const DefaultPolicyPrefix = "POL-"

// Step is the position of the operator within the review flow.
type Step int

const (
	StepClaimEntry    Step = iota + 1 // Enter policy, name, description
	StepPhotoUpload                   // Attach damage photos
	StepReadyToAssess                 // Enough photos to run the assessment
	StepDecision                      // Assessment available, awaiting a decision
)

// String returns a stable identifier for logs.
func (s Step) String() string {
	switch s {
	case StepClaimEntry:
		return "claim_entry"
	case StepPhotoUpload:
		return "photo_upload"
	case StepReadyToAssess:
		return "ready_to_assess"
	case StepDecision:
		return "decision"
	default:
		return "unknown"
	}
}

// FriendlyName returns the label shown in the step indicator.
func (s Step) FriendlyName() string {
	switch s {
	case StepClaimEntry:
		return "Claim Entry"
	case StepPhotoUpload:
		return "Photo Upload"
	case StepReadyToAssess:
		return "Ready to Assess"
	case StepDecision:
		return "Decision"
	default:
		return "Unknown"
	}
}

// Claim is the unit of work under review.
type Claim struct {
	ID           string `json:"id" yaml:"id"`
	PolicyNumber string `json:"policy_number" yaml:"policy_number"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
}

// Clone returns a copy of the claim, or nil.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// NormalizePolicyNumber trims surrounding whitespace and uppercases.
func NormalizePolicyNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// HasPolicyPrefix reports whether a normalized policy number starts with prefix.
// The comparison is case-insensitive on the prefix side.
func HasPolicyPrefix(normalized, prefix string) bool {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPolicyPrefix
	}
	return strings.HasPrefix(normalized, prefix)
}

// PhotoSource tags where a photo came from.
type PhotoSource string

const (
	SourceUser   PhotoSource = "user"
	SourceSystem PhotoSource = "system"
)

// PhotoMeta carries file metadata captured at upload time.
type PhotoMeta struct {
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// Photo is one uploaded damage photo.
type Photo struct {
	ID         string      `json:"id"`
	Locator    string      `json:"url"`
	Filename   string      `json:"filename"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Source     PhotoSource `json:"source"`
	Meta       PhotoMeta   `json:"meta"`
}

// ClonePhotos copies a photo slice, preserving nil.
func ClonePhotos(photos []Photo) []Photo {
	if photos == nil {
		return nil
	}
	out := make([]Photo, len(photos))
	copy(out, photos)
	return out
}
