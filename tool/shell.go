package tool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

type shellArgs struct {
	Command string `json:"command" jsonschema:"description=The shell command to execute. Use commands appropriate for the current OS and shell."`
}

// NewShellTool creates a tool that runs a command through the system shell
// in the working directory.
func NewShellTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("shell", "Executes a shell command. Use platform-appropriate commands based on the execution context.",
		func(ctx context.Context, args shellArgs) (string, error) {
			if cfg.ShellTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.ShellTimeout)
				defer cancel()
			}

			cfg.Logger.Info().Str("command", args.Command).Msg("executing command")

			var cmd *exec.Cmd
			if runtime.GOOS == "windows" {
				cmd = exec.CommandContext(ctx, "cmd", "/C", args.Command)
			} else {
				cmd = exec.CommandContext(ctx, "sh", "-c", args.Command)
			}
			cmd.Dir = cfg.WorkingDir

			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			err := cmd.Run()
			return formatShellResult(stdout.String(), stderr.String(), err, cfg), nil
		})
}

func formatShellResult(stdout, stderr string, err error, cfg Config) string {
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("command failed")
		msg := fmt.Sprintf("Command failed: %v", err)
		if stderr != "" {
			msg += "\nStderr: " + stderr
		}
		return msg
	}
	if stderr != "" && stdout == "" {
		return "Command produced stderr: " + stderr
	}

	result := strings.TrimSpace(stdout)
	switch {
	case result != "":
		return result
	case stderr != "":
		return "Command completed with stderr: " + stderr
	default:
		return "Command completed successfully"
	}
}
