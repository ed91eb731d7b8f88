package railyarderr

import (
	_ "embed"

	"github.com/BurntSushi/toml"
)

//go:embed fixes.toml
var fixesTOML []byte

type fixEntry struct {
	Suggestion string `toml:"suggestion"`
	Fixes      []Fix  `toml:"fixes"`
}

var fixTable map[string]fixEntry

func init() {
	var parsed map[string]fixEntry
	if _, err := toml.Decode(string(fixesTOML), &parsed); err != nil {
		// The embedded table is part of the binary; a decode failure here is
		// a build-time defect, not a runtime condition callers can recover
		// from.
		panic("railyarderr: invalid embedded fixes.toml: " + err.Error())
	}
	fixTable = parsed
}

// Enrich fills in Suggestion/Fixes from the default table when the caller
// hasn't already set them explicitly, and returns the same *Error.
func Enrich(e *Error) *Error {
	entry, ok := fixTable[e.Code]
	if !ok {
		return e
	}
	if e.Suggestion == "" {
		e.Suggestion = entry.Suggestion
	}
	if len(e.Fixes) == 0 && len(entry.Fixes) > 0 {
		e.Fixes = entry.Fixes
	}
	return e
}
