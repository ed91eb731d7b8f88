package hookrunner

import (
	"context"
	"sync"
)

// Invoker is the capability callers need from a hook runner: fire an event,
// possibly waiting for it. Both *Runner and Fake satisfy it; the internal
// packages do not fire hooks themselves, and cmd/railyard calls *Runner
// directly.
type Invoker interface {
	Run(event string, payload Payload)
	RunSync(ctx context.Context, event string, payload Payload) error
	HookExists(event string) bool
}

var _ Invoker = (*Runner)(nil)
var _ Invoker = (*Fake)(nil)

// Fake is an in-memory Invoker recording every dispatched event, for tests
// that assert a hook fired (or didn't) without touching the filesystem or
// spawning a process.
type Fake struct {
	mu       sync.Mutex
	Calls    []Payload
	Existing map[string]bool // event -> whether HookExists should report true
	FailWith map[string]error
}

// NewFake constructs an empty Fake.
func NewFake() *Fake {
	return &Fake{Existing: make(map[string]bool), FailWith: make(map[string]error)}
}

func (f *Fake) Run(event string, payload Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, payload)
}

func (f *Fake) RunSync(ctx context.Context, event string, payload Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, payload)
	return f.FailWith[event]
}

func (f *Fake) HookExists(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Existing[event]
}
