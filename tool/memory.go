package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MemoryFile is the project memory location relative to the working directory.
const MemoryFile = ".codison/memory.md"

type memoryArgs struct {
	Action  string `json:"action" jsonschema:"enum=add,enum=read,description=Add to memory or read memory"`
	Content string `json:"content,omitempty" jsonschema:"description=Fact or observation or note to add. Required when action is add."`
}

// NewMemoryTool creates a tool that stores durable project notes in
// .codison/memory.md.
func NewMemoryTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	path := filepath.Join(cfg.WorkingDir, MemoryFile)

	return Func("memory",
		"Stores and recalls durable project facts (style, commands, architecture, plans) in .codison/memory.md. Read before acting and write concise bullets. Never store secrets or large blobs.",
		func(ctx context.Context, args memoryArgs) (string, error) {
			switch args.Action {
			case "read":
				content, err := cfg.readFile(path)
				if err != nil {
					if os.IsNotExist(err) {
						return "Project memory is currently empty.", nil
					}
					return fmt.Sprintf("Memory file could not be read: %v", err), nil
				}
				if strings.TrimSpace(content) == "" {
					return "Project memory is currently empty.", nil
				}
				return strings.TrimSpace(content), nil

			case "add":
				entry := strings.TrimSpace(args.Content)
				if entry == "" {
					return "Error: No content provided to add to memory.", nil
				}
				if err := cfg.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Sprintf("Error updating memory: %v", err), nil
				}
				f, err := cfg.Fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Sprintf("Error updating memory: %v", err), nil
				}
				defer f.Close()
				if _, err := f.WriteString("\n- " + entry); err != nil {
					return fmt.Sprintf("Error updating memory: %v", err), nil
				}
				cfg.Logger.Info().Msg("memory updated")
				return "Memory updated.", nil
			}
			return "", fmt.Errorf("unknown action %q", args.Action)
		})
}
