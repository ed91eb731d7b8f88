package beadsapi

import (
	"sync"

	"github.com/railyard/railyard/internal/types"
)

// Reader is the subset of Store callers that only consult bead state need.
type Reader interface {
	Load() ([]types.Bead, error)
}

// ReadWriter is the full capability a caller that also updates beads needs.
type ReadWriter interface {
	Reader
	Save(beads []types.Bead) error
}

var _ ReadWriter = (*Store)(nil)
var _ ReadWriter = (*Fake)(nil)

// Fake is an in-memory ReadWriter for tests that need bead data without a
// real .beads/issues.jsonl file on disk.
type Fake struct {
	mu    sync.Mutex
	Beads []types.Bead
}

// NewFake constructs a Fake pre-seeded with beads.
func NewFake(beads ...types.Bead) *Fake {
	return &Fake{Beads: beads}
}

func (f *Fake) Load() ([]types.Bead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Bead, len(f.Beads))
	copy(out, f.Beads)
	return out, nil
}

func (f *Fake) Save(beads []types.Bead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Beads = make([]types.Bead, len(beads))
	copy(f.Beads, beads)
	return nil
}
