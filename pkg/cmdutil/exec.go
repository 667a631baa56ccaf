package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// RedactedPlaceholder replaces secrets in sanitized output.
const RedactedPlaceholder = "***REDACTED***"

// ExecOptions configures command execution.
type ExecOptions struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Timeout bounds execution. Zero means no limit.
	Timeout time.Duration

	// Env holds extra "KEY=value" entries appended to the parent environment.
	Env []string
}

// Result describes a finished command.
type Result struct {
	// Output is the combined stdout and stderr.
	Output []byte

	// ExitCode is -1 when the process could not be started or was killed.
	ExitCode int

	Duration time.Duration
}

// Run executes cmdParts and waits for it to exit. A non-zero exit status is
// reported as an error alongside a populated Result.
func Run(ctx context.Context, opts ExecOptions, cmdParts []string) (*Result, error) {
	if len(cmdParts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cmdParts[0], cmdParts[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()

	result := &Result{
		Output:   output,
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("command timed out after %s: %w", opts.Timeout, err)
		}
		return result, fmt.Errorf("command failed: %w", err)
	}

	return result, nil
}

// ParseCommandString splits a shell-quoted command string into arguments.
//
// Example:
//
//	"./deploy.sh --branch \"main line\"" -> ["./deploy.sh", "--branch", "main line"]
func ParseCommandString(cmdStr string) ([]string, error) {
	parts, err := shellquote.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command string: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command string")
	}
	return parts, nil
}

// FormatCommand renders arguments back into a single shell-quoted line for logs.
func FormatCommand(cmdParts []string) string {
	if len(cmdParts) == 0 {
		return "<empty command>"
	}
	return shellquote.Join(cmdParts...)
}

// SanitizeOutput replaces every occurrence of each non-empty secret.
func SanitizeOutput(output []byte, secrets []string) []byte {
	sanitized := string(output)
	for _, secret := range secrets {
		if secret != "" {
			sanitized = strings.ReplaceAll(sanitized, secret, RedactedPlaceholder)
		}
	}
	return []byte(sanitized)
}

// Tail returns at most the last n bytes of output, trimmed of surrounding
// whitespace.
func Tail(output []byte, n int) string {
	if n > 0 && len(output) > n {
		output = output[len(output)-n:]
	}
	return strings.TrimSpace(string(output))
}
