package hints

import "time"

// LockView is the minimal view of a held workspace lock hint generation
// needs, decoupled from internal/lock's DB row shape.
type LockView struct {
	Workspace string
	Holder    string
	Since     time.Time
}

// staleLockAfter flags a workspace lock that has been held long enough to
// suggest the holder crashed or forgot to release it.
const staleLockAfter = 30 * time.Minute

// HintsForLocks returns a warning for every lock held past staleLockAfter
// (spec.md §4.11 "stale-lock warnings").
func HintsForLocks(locks []LockView) []Hint {
	now := time.Now().UTC()
	var out []Hint
	for _, l := range locks {
		if now.Sub(l.Since) < staleLockAfter {
			continue
		}
		out = append(out, Warning("workspace '"+l.Workspace+"' has been locked by "+l.Holder+" for over 30 minutes").
			WithCommand("railyard unlock "+l.Workspace+" "+l.Holder).
			WithRationale("a long-held lock usually means the holding agent crashed without releasing it").
			WithContext(map[string]any{"workspace": l.Workspace, "holder": l.Holder}))
	}
	return out
}
