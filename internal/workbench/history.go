package workbench

import (
	"github.com/kingrea/claims-workbench/internal/claims"
)

// snapshot is the undoable slice of controller state.
type snapshot struct {
	claim      *claims.Claim
	photos     []claims.Photo
	assessment *claims.Assessment
	actions    []string
	step       claims.Step
}

func (s snapshot) clone() snapshot {
	return snapshot{
		claim:      s.claim.Clone(),
		photos:     claims.ClonePhotos(s.photos),
		assessment: s.assessment.Clone(),
		actions:    cloneStrings(s.actions),
		step:       s.step,
	}
}

// history is a LIFO of snapshots. A positive limit drops the oldest entry
// once the stack is full; zero keeps everything.
type history struct {
	entries []snapshot
	limit   int
}

func newHistory(limit int) *history {
	if limit < 0 {
		limit = 0
	}
	return &history{limit: limit}
}

func (h *history) push(s snapshot) {
	h.entries = append(h.entries, s)
	if h.limit > 0 && len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		copy(h.entries, h.entries[drop:])
		for i := len(h.entries) - drop; i < len(h.entries); i++ {
			h.entries[i] = snapshot{}
		}
		h.entries = h.entries[:len(h.entries)-drop]
	}
}

func (h *history) pop() (snapshot, bool) {
	if len(h.entries) == 0 {
		return snapshot{}, false
	}
	last := h.entries[len(h.entries)-1]
	h.entries[len(h.entries)-1] = snapshot{}
	h.entries = h.entries[:len(h.entries)-1]
	return last, true
}

func (h *history) len() int {
	return len(h.entries)
}

func (h *history) clear() {
	h.entries = nil
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
