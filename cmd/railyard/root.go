// Command railyard is the coordination engine's CLI: a thin cobra wrapper
// over internal/session, internal/queue, internal/lock, internal/checkpoint,
// internal/backup, internal/snapshot, and internal/batch (spec.md §6). It
// owns argument parsing, the --json response envelope, and opening the
// repository's state store/adapters; every decision lives in the internal
// packages.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/clock"
	"github.com/railyard/railyard/internal/config"
	"github.com/railyard/railyard/internal/hookrunner"
	"github.com/railyard/railyard/internal/lock"
	"github.com/railyard/railyard/internal/logging"
	"github.com/railyard/railyard/internal/signals"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/vcsadapter"
)

// sysClock is the wall clock every command uses for timestamps it can't
// get from the database (e.g. naming a new backup file). A test can swap
// in a clock.Fake; production always runs with the real one.
var sysClock clock.Clock = clock.Real{}

var (
	jsonOutput bool
	dryRun     bool
	repoRoot   string

	rootCtx context.Context
)

// defaultProcessingLockTimeout bounds how long a claimed queue entry's
// processing lock is held before another agent may steal it (spec.md
// §4.5's processing-lock primitive).
const defaultProcessingLockTimeout = 5 * time.Minute

// defaultBuildLockTimeout bounds how long a command waits for the global
// build lock before failing with BUILD_LOCK_TIMEOUT (spec.md §4.5a).
const defaultBuildLockTimeout = 30 * time.Second

// withBuildLock runs fn while holding the global build lock (spec.md §2,
// §4.3, §5: "the build lock is the sole gate on merge-to-trunk"). Every
// command that performs the merge step, alone or as part of a batch, must
// go through this so two concurrent invocations never run VCS merges
// against the same trunk at once.
func withBuildLock(timeout time.Duration, fn func() error) error {
	buildLock, err := lock.NewBuildLock(lock.BuildLockConfig{
		Dir:          filepath.Join(repoRoot, ".railyard"),
		Timeout:      timeout,
		PollInterval: 200 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	if err := buildLock.Acquire(rootCtx); err != nil {
		return err
	}
	defer buildLock.Release()
	return fn()
}

var rootCmd = &cobra.Command{
	Use:           "railyard",
	Short:         "Parallel-workspace orchestration and merge-train coordinator",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			logging.WithComponent("cli").Warn().Err(err).Msg("config load failed, continuing with defaults")
		}
		if repoRoot == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			repoRoot = wd
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit a structured JSON response envelope")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report what would happen without making changes")
	rootCmd.PersistentFlags().StringVar(&repoRoot, "repo", "", "repository root (defaults to the working directory)")

	rootCmd.AddCommand(
		initCmd,
		addCmd, removeCmd, focusCmd, listCmd, statusCmd,
		submitCmd, claimCmd, yieldCmd, queueCmd, mergeCmd, retryCmd, auditCmd,
		lockCmd, unlockCmd,
		checkpointCmd, recoverCmd, undoCmd, revertCmd,
		backupCmd, exportCmd, importCmd,
		batchCmd,
		doctorCmd,
		agentCmd,
	)
}

// stateDBPath returns <repoRoot>/.railyard/state.db, creating the parent
// directory on demand (spec.md §6 on-disk layout).
func stateDBPath() (string, error) {
	dir := filepath.Join(repoRoot, ".railyard")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// openStore opens the repository's state store at its default location.
func openStore(ctx context.Context) (*store.Store, error) {
	path, err := stateDBPath()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, path)
}

// openVCS constructs the production VCS adapter, circuit-breaker wrapped,
// using the configured binary name (default "jj").
func openVCS() *vcsadapter.BreakingAdapter {
	bin := config.GetString("vcs.binary")
	if bin == "" {
		bin = "jj"
	}
	return vcsadapter.NewBreakingAdapter(vcsadapter.New(bin, repoRoot))
}

// openHooks constructs the hook runner rooted at <repoRoot>/.railyard/hooks
// (spec.md §6 on-disk layout).
func openHooks() *hookrunner.Runner {
	return hookrunner.NewRunner(filepath.Join(repoRoot, ".railyard", "hooks"))
}

func main() {
	ctx, stop, err := signals.WithCancelOnSignal(context.Background())
	if err != nil {
		logging.WithComponent("cli").Warn().Err(err).Msg("continuing despite signal setup warning")
	}
	defer stop()
	rootCtx = ctx

	if jsonFlagSet() {
		logging.Init(logging.Config{Level: logging.InfoLevel, JSONOutput: true})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// jsonFlagSet does a quick pre-parse of os.Args for --json so logging mode
// (stderr JSON vs. human console) can be decided before cobra's own flag
// parsing runs.
func jsonFlagSet() bool {
	for _, a := range os.Args[1:] {
		if a == "--json" {
			return true
		}
	}
	return false
}

// withTimeout bounds a single CLI invocation so a hung VCS subprocess or
// lock wait can't block forever under an interactive shell.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
