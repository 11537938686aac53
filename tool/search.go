package tool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

var defaultIgnores = []string{"node_modules/", ".git/", "dist/", "build/"}

var errSearchLimit = errors.New("search limit reached")

// ignoreRule is one .gitignore line compiled to a doublestar pattern.
type ignoreRule struct {
	pattern string
	dirOnly bool
}

// ignoreList matches slash-separated paths relative to the project root.
type ignoreList []ignoreRule

func parseIgnoreLine(line string) (ignoreRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ignoreRule{}, false
	}

	rule := ignoreRule{}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	switch {
	case strings.HasPrefix(line, "/"):
		line = strings.TrimPrefix(line, "/")
	case !strings.Contains(line, "/"):
		line = "**/" + line
	}
	rule.pattern = line
	return rule, true
}

func (c Config) loadIgnores(root string) ignoreList {
	var rules ignoreList
	if f, err := c.Fs.Open(filepath.Join(root, ".gitignore")); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if r, ok := parseIgnoreLine(scanner.Text()); ok {
				rules = append(rules, r)
			}
		}
		f.Close()
	}
	for _, d := range defaultIgnores {
		r, _ := parseIgnoreLine(d)
		rules = append(rules, r)
	}
	return rules
}

func (l ignoreList) match(rel string, isDir bool) bool {
	for _, r := range l {
		if r.dirOnly && !isDir {
			continue
		}
		if ok, _ := doublestar.Match(r.pattern, rel); ok {
			return true
		}
	}
	return false
}

// fileNameRegex treats "*.ext" as an extension match and anything else as a
// case-insensitive regular expression.
func fileNameRegex(pattern string) (*regexp.Regexp, error) {
	if ext, ok := strings.CutPrefix(pattern, "*."); ok {
		return regexp.Compile(`(?i)\.` + regexp.QuoteMeta(ext) + `$`)
	}
	return regexp.Compile("(?i)" + pattern)
}

type searchFilesArgs struct {
	Pattern  string `json:"pattern" jsonschema:"description=Regular expression matched against file names. *.ext matches an extension."`
	MaxCount int    `json:"maxCount,omitempty" jsonschema:"description=Maximum number of files to return. 0 means unlimited.,minimum=0"`
}

// NewSearchFilesTool creates a tool that finds files by name under the
// working directory, skipping .gitignore entries.
func NewSearchFilesTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("searchFiles",
		"Searches for files in the working directory matching a given pattern, ignoring paths listed in .gitignore. Returns a list of full file paths.",
		func(ctx context.Context, args searchFilesArgs) (string, error) {
			re, err := fileNameRegex(args.Pattern)
			if err != nil {
				return "", fmt.Errorf("invalid pattern %q: %w", args.Pattern, err)
			}

			root := filepath.Clean(cfg.WorkingDir)
			ignores := cfg.loadIgnores(root)
			cfg.Logger.Info().Str("pattern", args.Pattern).Msg("searching files")

			var found []string
			err = afero.Walk(cfg.Fs, root, func(path string, info fs.FileInfo, err error) error {
				if err != nil {
					return nil
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if path == root {
					return nil
				}

				rel, _ := filepath.Rel(root, path)
				if ignores.match(filepath.ToSlash(rel), info.IsDir()) {
					if info.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if info.IsDir() || !re.MatchString(info.Name()) {
					return nil
				}

				found = append(found, path)
				if args.MaxCount > 0 && len(found) >= args.MaxCount {
					return errSearchLimit
				}
				return nil
			})
			if err != nil && !errors.Is(err, errSearchLimit) {
				return "", err
			}

			if len(found) == 0 {
				return "No files found matching the pattern", nil
			}
			return strings.Join(found, "\n"), nil
		})
}

type grepArgs struct {
	Pattern     string `json:"pattern" jsonschema:"description=The regular expression to search for."`
	FilePath    string `json:"file_path" jsonschema:"description=File or directory to search. Directories are searched recursively."`
	IgnoreCase  bool   `json:"ignore_case,omitempty" jsonschema:"description=Match case-insensitively."`
	LineNumbers bool   `json:"line_numbers,omitempty" jsonschema:"description=Prefix matches with their line number."`
	FilesOnly   bool   `json:"files_only,omitempty" jsonschema:"description=Only list the names of matching files."`
}

// NewGrepTool creates a tool that searches file contents.
func NewGrepTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("grep",
		"Searches for a regular expression within a file, or recursively within a directory.",
		func(ctx context.Context, args grepArgs) (string, error) {
			expr := args.Pattern
			if args.IgnoreCase {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return "", fmt.Errorf("invalid pattern %q: %w", args.Pattern, err)
			}

			root, err := cfg.resolvePath(args.FilePath)
			if err != nil {
				return fmt.Sprintf("Error: %v", err), nil
			}
			info, err := cfg.Fs.Stat(root)
			if err != nil {
				return fmt.Sprintf("Error: Path %q is not a valid file or accessible directory for grep.", args.FilePath), nil
			}
			cfg.Logger.Info().Str("pattern", args.Pattern).Str("path", args.FilePath).Msg("grep")

			var out []string
			if !info.IsDir() {
				out = cfg.grepFile(root, "", re, args)
			} else {
				ignores := cfg.loadIgnores(filepath.Clean(cfg.WorkingDir))
				walkErr := afero.Walk(cfg.Fs, root, func(path string, fi fs.FileInfo, err error) error {
					if err != nil {
						return nil
					}
					if ctxErr := ctx.Err(); ctxErr != nil {
						return ctxErr
					}
					rel, _ := filepath.Rel(root, path)
					if path != root && ignores.match(filepath.ToSlash(rel), fi.IsDir()) {
						if fi.IsDir() {
							return filepath.SkipDir
						}
						return nil
					}
					if fi.IsDir() || fi.Size() > cfg.MaxFileSize {
						return nil
					}
					out = append(out, cfg.grepFile(path, rel, re, args)...)
					return nil
				})
				if walkErr != nil {
					return "", walkErr
				}
			}

			if len(out) == 0 {
				return fmt.Sprintf("No matches found for pattern %q in %q.", args.Pattern, args.FilePath), nil
			}
			return strings.Join(out, "\n"), nil
		})
}

// grepFile returns the formatted matches in one file. label prefixes each
// line when searching a directory.
func (c Config) grepFile(path, label string, re *regexp.Regexp, args grepArgs) []string {
	f, err := c.Fs.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if !re.MatchString(line) {
			continue
		}
		if args.FilesOnly {
			if label == "" {
				return []string{path}
			}
			return []string{label}
		}

		var b strings.Builder
		if label != "" {
			b.WriteString(label)
			b.WriteByte(':')
		}
		if args.LineNumbers {
			fmt.Fprintf(&b, "%d:", n)
		}
		b.WriteString(line)
		out = append(out, b.String())
	}
	return out
}
