package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/railyard/railyard/internal/railyarderr"
)

// envelope is the structured response every subcommand emits under --json
// (spec.md §6 "Every command accepts --json"). Human mode instead prints
// the result to stdout and an error to stderr as plain text.
type envelope struct {
	OK     bool               `json:"ok"`
	Data   any                `json:"data,omitempty"`
	Error  *railyarderr.Error `json:"error,omitempty"`
	DryRun bool               `json:"dry_run,omitempty"`
}

// emit writes result (on success) or err (on failure) in the format --json
// selected (the JSON envelope on stdout, or plain text with errors on
// stderr), and returns the process exit code to use
// (spec.md §7's semantic exit codes).
func emit(result any, err error, dryRun bool) int {
	if jsonOutput {
		env := envelope{OK: err == nil, Data: result, DryRun: dryRun}
		var re *railyarderr.Error
		if err != nil {
			if errors.As(err, &re) {
				env.Error = re
			} else {
				env.Error = railyarderr.Wrap(railyarderr.ClassSystem, "UNCLASSIFIED_ERROR", err.Error(), err)
			}
		}
		data, marshalErr := json.MarshalIndent(env, "", "  ")
		if marshalErr != nil {
			fmt.Fprintln(os.Stderr, marshalErr)
			return railyarderr.ClassSystem.ExitCode()
		}
		fmt.Println(string(data))
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	} else if result != nil {
		fmt.Printf("%+v\n", result)
	}

	if err == nil {
		return 0
	}
	var re *railyarderr.Error
	if errors.As(err, &re) {
		return re.ExitCode()
	}
	return railyarderr.ClassSystem.ExitCode()
}
