package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Config configures the builtin tools.
type Config struct {
	// WorkingDir is the directory relative paths resolve against.
	// Defaults to the process working directory.
	WorkingDir string

	// Fs is the filesystem file tools operate on. Defaults to the OS filesystem.
	Fs afero.Fs

	// RestrictToWorkingDir rejects paths that resolve outside WorkingDir.
	RestrictToWorkingDir bool

	// MaxFileSize caps the bytes read from a single file. Defaults to 10MB.
	MaxFileSize int64

	// ShellTimeout bounds each shell command. Zero means no limit beyond the
	// call's context.
	ShellTimeout time.Duration

	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.WorkingDir = wd
		} else {
			c.WorkingDir = "."
		}
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 * 1024 * 1024
	}
	return c
}

// resolvePath makes path absolute against the working directory.
func (c Config) resolvePath(path string) (string, error) {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.WorkingDir, path)
	}
	path = filepath.Clean(path)

	if c.RestrictToWorkingDir {
		base := filepath.Clean(c.WorkingDir)
		rel, err := filepath.Rel(base, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path %q is outside the working directory %q", path, base)
		}
	}
	return path, nil
}

// Defaults returns the builtin coding tools.
func Defaults(cfg Config) []Registration {
	cfg = cfg.withDefaults()
	return []Registration{
		NewShellTool(cfg),
		NewReadTool(cfg),
		NewReadManyTool(cfg),
		NewWriteTool(cfg),
		NewListTool(cfg),
		NewSearchFilesTool(cfg),
		NewGrepTool(cfg),
		NewMemoryTool(cfg),
	}
}

// ProjectTools returns the project metadata tools.
func ProjectTools(cfg Config) []Registration {
	cfg = cfg.withDefaults()
	return []Registration{
		NewProjectInfoTool(cfg),
		NewDependenciesTool(cfg),
	}
}
