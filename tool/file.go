package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

const defaultReadManyLimit = 500

var lineBreak = regexp.MustCompile(`\r?\n`)

func (c Config) readFile(path string) (string, error) {
	f, err := c.Fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > c.MaxFileSize {
		return "", fmt.Errorf("file size %d exceeds maximum %d", info.Size(), c.MaxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, c.MaxFileSize))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type readArgs struct {
	FilePath string `json:"filePath" jsonschema:"description=The path to the file to read."`
}

// NewReadTool creates a tool that reads one file.
func NewReadTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("read", "Reads the content of a file from the filesystem.",
		func(ctx context.Context, args readArgs) (string, error) {
			cfg.Logger.Info().Str("path", args.FilePath).Msg("reading file")

			path, err := cfg.resolvePath(args.FilePath)
			if err != nil {
				return fmt.Sprintf("Error: Could not read file '%s'. %v", args.FilePath, err), nil
			}
			content, err := cfg.readFile(path)
			if err != nil {
				return fmt.Sprintf("Error: Could not read file '%s'. %v", args.FilePath, err), nil
			}
			return fmt.Sprintf("Content of '%s':\n%s", args.FilePath, content), nil
		})
}

type readManyFile struct {
	Path   string `json:"path" jsonschema:"description=Path to the file"`
	Offset *int   `json:"offset,omitempty" jsonschema:"description=Start line (0-based). Default: 0,minimum=0"`
	Limit  *int   `json:"limit,omitempty" jsonschema:"description=Max lines to return. Default: 500,minimum=1"`
}

type readManyArgs struct {
	Files []readManyFile `json:"files" jsonschema:"description=Files to read,minItems=1"`
}

// NewReadManyTool creates a tool that reads a line window from several files.
func NewReadManyTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("readMany", "Reads many files at once. Optionally returns a slice by line offset and limit.",
		func(ctx context.Context, args readManyArgs) (string, error) {
			cfg.Logger.Info().Int("files", len(args.Files)).Msg("reading files")

			parts := make([]string, 0, len(args.Files))
			for _, file := range args.Files {
				if err := ctx.Err(); err != nil {
					return "", err
				}

				path, err := cfg.resolvePath(file.Path)
				if err != nil {
					return fmt.Sprintf("Error: Could not read files: %v", err), nil
				}
				content, err := cfg.readFile(path)
				if err != nil {
					return fmt.Sprintf("Error: Could not read files: %v", err), nil
				}

				offset, limit := 0, defaultReadManyLimit
				if file.Offset != nil {
					offset = *file.Offset
				}
				if file.Limit != nil {
					limit = *file.Limit
				}
				parts = append(parts, fmt.Sprintf("Content of '%s':\n%s", file.Path, lineWindow(content, offset, limit)))
			}
			return strings.Join(parts, "\n\n"), nil
		})
}

// lineWindow returns up to limit lines starting at the 0-based offset.
func lineWindow(content string, offset, limit int) string {
	lines := lineBreak.Split(content, -1)
	if offset >= len(lines) {
		return ""
	}
	end := min(offset+limit, len(lines))
	return strings.Join(lines[offset:end], "\n")
}

type writeArgs struct {
	FilePath string `json:"filePath" jsonschema:"description=The path to the file to write."`
	Content  string `json:"content" jsonschema:"description=The content to write to the file."`
}

// NewWriteTool creates a tool that writes a file, creating parent directories.
func NewWriteTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("write", "Writes to a specified file.",
		func(ctx context.Context, args writeArgs) (string, error) {
			cfg.Logger.Info().Str("path", args.FilePath).Int("bytes", len(args.Content)).Msg("writing file")

			path, err := cfg.resolvePath(args.FilePath)
			if err != nil {
				return fmt.Sprintf("Error: Could not write to file '%s'. %v", args.FilePath, err), nil
			}
			if int64(len(args.Content)) > cfg.MaxFileSize {
				return fmt.Sprintf("Error: Could not write to file '%s'. content size %d exceeds maximum %d",
					args.FilePath, len(args.Content), cfg.MaxFileSize), nil
			}
			if err := cfg.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Sprintf("Error: Could not write to file '%s'. %v", args.FilePath, err), nil
			}
			if err := afero.WriteFile(cfg.Fs, path, []byte(args.Content), 0o644); err != nil {
				return fmt.Sprintf("Error: Could not write to file '%s'. %v", args.FilePath, err), nil
			}
			return fmt.Sprintf("Successfully wrote to file: '%s'", args.FilePath), nil
		})
}

type listArgs struct {
	Path  string `json:"path" jsonschema:"description=The directory to list. Relative paths resolve against the working directory."`
	Depth *int   `json:"depth,omitempty" jsonschema:"description=Maximum depth to traverse into subfolders. 0 lists only the immediate contents. Defaults to 1.,minimum=0"`
}

// NewListTool creates a tool that lists a directory to a bounded depth.
func NewListTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("ls", "Lists files and folders in a directory, descending into subfolders up to the given depth.",
		func(ctx context.Context, args listArgs) (string, error) {
			depth := 1
			if args.Depth != nil {
				depth = *args.Depth
			}

			root, err := cfg.resolvePath(args.Path)
			if err != nil {
				return fmt.Sprintf("Error: %v", err), nil
			}

			info, err := cfg.Fs.Stat(root)
			if err != nil {
				return fmt.Sprintf("Error: Could not list directory '%s'. %v", args.Path, err), nil
			}
			if !info.IsDir() {
				return fmt.Sprintf("Error: Path '%s' is not a directory.", args.Path), nil
			}

			var results []string
			cfg.listDir(root, root, 0, depth, &results)
			if len(results) == 0 {
				return fmt.Sprintf("No files or folders found in '%s'.", args.Path), nil
			}
			return strings.Join(results, "\n"), nil
		})
}

func (c Config) listDir(dir, root string, depth, maxDepth int, results *[]string) {
	entries, err := afero.ReadDir(c.Fs, dir)
	if err != nil {
		rel, _ := filepath.Rel(root, dir)
		*results = append(*results, fmt.Sprintf("Error accessing: %s", rel))
		return
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		rel, _ := filepath.Rel(root, full)
		if entry.IsDir() {
			*results = append(*results, rel+string(os.PathSeparator))
			if depth < maxDepth {
				c.listDir(full, root, depth+1, maxDepth, results)
			}
			continue
		}
		*results = append(*results, rel)
	}
}
