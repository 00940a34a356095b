package mediainfo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner invokes the external tool for a set of paths and returns its
// raw output. Swappable so the resolver is testable without a binary.
type Runner interface {
	Run(ctx context.Context, paths []string) ([]byte, error)
}

// CLIRunner shells out to the mediainfo binary.
type CLIRunner struct {
	Binary string
}

// NewCLIRunner returns a runner for the given binary name, defaulting
// to "mediainfo" on PATH.
func NewCLIRunner(binary string) *CLIRunner {
	if binary == "" {
		binary = "mediainfo"
	}
	return &CLIRunner{Binary: binary}
}

// Run executes one tool invocation covering all paths. Non-zero exit
// is an error carrying the command line and captured stderr so failure
// records keep enough context for manual retry.
func (r *CLIRunner) Run(ctx context.Context, paths []string) ([]byte, error) {
	args := append([]string{"--Output=JSON"}, paths...)
	cmd := exec.CommandContext(ctx, r.Binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, &ToolError{
			Command: r.Binary + " " + strings.Join(args, " "),
			Stderr:  stderr.String(),
			Err:     err,
		}
	}
	return out, nil
}

// ToolError is a failed tool invocation with the exact command and
// captured output preserved.
type ToolError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("mediainfo failed: %v: %s", e.Err, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("mediainfo failed: %v", e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
