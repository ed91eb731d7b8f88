package hookrunner

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// runWASMHook runs a hook compiled to WASM inside a wazero sandbox instead
// of a native subprocess, selected by the hook's manifest runtime = "wasm"
// (spec.md §4.9c). The module gets no filesystem or network access beyond
// stdin/stdout — a sandboxed hook can observe the event but not touch the
// workspace directly, unlike a subprocess hook which inherits the caller's
// working directory.
func runWASMHook(ctx context.Context, wasmPath string, body []byte) error {
	code, err := os.ReadFile(wasmPath)
	if err != nil {
		return fmt.Errorf("read wasm hook %s: %w", wasmPath, err)
	}

	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return fmt.Errorf("instantiate wasi for hook %s: %w", wasmPath, err)
	}

	compiled, err := runtime.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("compile wasm hook %s: %w", wasmPath, err)
	}

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(body)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithStartFunctions("_start")

	if _, err := runtime.InstantiateModule(ctx, compiled, cfg); err != nil {
		return fmt.Errorf("run wasm hook %s: %w\nstderr: %s", wasmPath, err, stderr.String())
	}
	return nil
}
