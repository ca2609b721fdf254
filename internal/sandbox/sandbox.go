package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Config defines the constraints for one execution.
type Config struct {
	// PythonPath is the interpreter to launch. Defaults to "python3".
	PythonPath string

	// Timeout is the hard wall-clock limit. Defaults to 30 seconds.
	Timeout time.Duration

	// MemoryLimitMB bounds the child's peak resident set. Enforced twice:
	// setrlimit inside the child, and a post-exit peak RSS check in the
	// parent. Defaults to 1024.
	MemoryLimitMB int

	// MaxOutputSize truncates captured stdout/stderr to this many bytes.
	// Defaults to 10000.
	MaxOutputSize int

	// TempDir holds the generated script files. Defaults to os.TempDir().
	TempDir string

	Logger *slog.Logger
}

// Validate fills zero values with defaults.
func (c *Config) Validate() error {
	if c.PythonPath == "" {
		c.PythonPath = "python3"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MemoryLimitMB <= 0 {
		c.MemoryLimitMB = 1024
	}
	if c.MaxOutputSize <= 0 {
		c.MaxOutputSize = 10000
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Runner executes harness-wrapped Python programs.
type Runner struct {
	config Config
}

// NewRunner creates a sandbox runner.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{config: cfg}, nil
}

// Run executes the given program and reports the outcome. Failures are
// expressed in the Result, never as a Go error: a timeout, memory breach, or
// launch failure all come back as a failed Result the analysis layer can
// classify.
func (r *Runner) Run(ctx context.Context, code string) Result {
	script, err := r.writeScript(code)
	if err != nil {
		return Result{Error: fmt.Sprintf("execution failed: %v", err)}
	}
	defer os.Remove(script)

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.config.PythonPath, script)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", envMemoryLimitMB, r.config.MemoryLimitMB),
		fmt.Sprintf("%s=%d", envCPULimitSec, int(r.config.Timeout.Seconds())),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := Result{
		Stdout: truncate(stdout.String(), r.config.MaxOutputSize),
		Stderr: truncate(stderr.String(), r.config.MaxOutputSize),
		Timing: Timing{TotalSeconds: elapsed.Seconds()},
	}
	if peak, ok := peakRSSMB(cmd); ok {
		result.ResourceUsage.MemoryMB = peak
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Sprintf("execution timeout (%.0fs)", r.config.Timeout.Seconds())
		return result
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			result.Error = fmt.Sprintf("execution failed: %v", runErr)
			return result
		}
		// Nonzero exit falls through: the harness output or stderr tells
		// the real story.
	}

	if result.ResourceUsage.MemoryMB > float64(r.config.MemoryLimitMB) {
		result.Error = fmt.Sprintf("memory limit exceeded: %.1fMB", result.ResourceUsage.MemoryMB)
		return result
	}

	r.parseOutput(&result)
	return result
}

// parseOutput interprets the final stdout line as the harness report. A
// missing or malformed report downgrades to raw text leniently; an empty
// stdout with a nonzero exit is a failure described by stderr.
func (r *Runner) parseOutput(result *Result) {
	trimmed := strings.TrimSpace(result.Stdout)
	if trimmed == "" {
		if msg := strings.TrimSpace(result.Stderr); msg != "" {
			result.Error = truncate(msg, r.config.MaxOutputSize)
		} else {
			result.Error = "no output produced"
		}
		return
	}

	lines := strings.Split(trimmed, "\n")
	lastLine := lines[len(lines)-1]

	var report harnessReport
	if err := json.Unmarshal([]byte(lastLine), &report); err != nil {
		result.Output = result.Stdout
		result.Success = true
		return
	}

	result.Output = report.Output
	if report.Error != nil && *report.Error != "" {
		result.Error = *report.Error
	}
	if total, ok := report.Timing["total"].(float64); ok {
		result.Timing.TotalSeconds = total
	}
	result.Success = result.Error == ""
}

func (r *Runner) writeScript(code string) (string, error) {
	if err := os.MkdirAll(r.config.TempDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(r.config.TempDir, "experiment_*.py")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
