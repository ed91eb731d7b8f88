package hookrunner

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Runtime selects how a hook is executed.
type Runtime string

const (
	RuntimeSubprocess Runtime = "subprocess"
	RuntimeWASM       Runtime = "wasm"
)

// Manifest is a hook's optional sidecar config, <event>.toml next to the
// hook script itself (e.g. hooks/submit.toml alongside hooks/submit).
// Absent a manifest, a hook runs as a subprocess with the Runner's default
// timeout.
type Manifest struct {
	Runtime        Runtime `toml:"runtime"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// loadManifest reads <hooksDir>/<event>.toml if present; a missing or
// malformed manifest degrades to the zero Manifest (subprocess runtime,
// default timeout) rather than failing the hook invocation — a manifest
// is an optimization, not a correctness requirement.
func loadManifest(hooksDir, event string) Manifest {
	path := filepath.Join(hooksDir, event+".toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{Runtime: RuntimeSubprocess}
	}
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return Manifest{Runtime: RuntimeSubprocess}
	}
	if m.Runtime == "" {
		m.Runtime = RuntimeSubprocess
	}
	return m
}
