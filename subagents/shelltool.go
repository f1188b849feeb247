package subagents

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/gomind-labs/taskrunner/core"
)

const allowedShellBinary = "rg"

// ShellToolAgent is allow-listed to a single read-only program: a
// fast recursive text-search tool (ripgrep). Required field: pattern;
// optional: path (default "."), max (default 200), cmd (must name the
// allowed binary when present).
type ShellToolAgent struct {
	logger core.Logger
}

func NewShellToolAgent(logger core.Logger) *ShellToolAgent {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &ShellToolAgent{logger: logger}
}

func (a *ShellToolAgent) Execute(ctx context.Context, sessionID string, payload Payload) Output {
	if cmd := stringField(payload, "cmd"); cmd != "" && cmd != allowedShellBinary {
		return Output{"error": "only '" + allowedShellBinary + "' is allowed"}
	}
	pattern := stringField(payload, "pattern", "query")
	if pattern == "" {
		return Output{"error": "pattern required"}
	}
	path := stringField(payload, "path")
	if path == "" {
		path = "."
	}
	max := intField(payload, "max", 200)

	binPath, err := exec.LookPath(allowedShellBinary)
	if err != nil {
		return Output{"error": "ripgrep (rg) not installed"}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binPath, "-n", "--no-heading", "-S", "-m", strconv.Itoa(max), pattern, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Output{"engine": allowedShellBinary, "error": runErr.Error()}
		}
	}
	return Output{
		"engine":    allowedShellBinary,
		"pattern":   pattern,
		"path":      path,
		"exit_code": exitCode,
		"output":    truncate(stdout.String(), 8192),
	}
}

