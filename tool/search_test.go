package tool

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIgnoreLine(t *testing.T) {
	tests := []struct {
		line    string
		ok      bool
		pattern string
		dirOnly bool
	}{
		{"", false, "", false},
		{"# comment", false, "", false},
		{"!keep.log", false, "", false},
		{"node_modules/", true, "**/node_modules", true},
		{"*.log", true, "**/*.log", false},
		{"/vendor", true, "vendor", false},
		{"docs/build", true, "docs/build", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rule, ok := parseIgnoreLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.pattern, rule.pattern)
				assert.Equal(t, tt.dirOnly, rule.dirOnly)
			}
		})
	}
}

func TestIgnoreList_Match(t *testing.T) {
	var l ignoreList
	for _, line := range []string{"*.log", "tmp/", "/root.txt"} {
		r, _ := parseIgnoreLine(line)
		l = append(l, r)
	}

	assert.True(t, l.match("debug.log", false))
	assert.True(t, l.match("a/b/debug.log", false))
	assert.True(t, l.match("tmp", true))
	assert.True(t, l.match("a/tmp", true))
	assert.False(t, l.match("tmp", false))
	assert.True(t, l.match("root.txt", false))
	assert.False(t, l.match("a/root.txt", false))
	assert.False(t, l.match("main.go", false))
}

func TestSearchFilesTool(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{
		".gitignore":            "*.log\nout/\n",
		"main.go":               "",
		"pkg/util.go":           "",
		"pkg/util_test.go":      "",
		"README.md":             "",
		"debug.log":             "",
		"out/gen.go":            "",
		"node_modules/lib/x.go": "",
		".git/objects/abc.go":   "",
	})

	t.Run("extension shorthand", func(t *testing.T) {
		out := run(t, cfg, "searchFiles", map[string]any{"pattern": "*.go"})
		assert.ElementsMatch(t, []string{"/work/main.go", "/work/pkg/util.go", "/work/pkg/util_test.go"}, strings.Split(out, "\n"))
	})

	t.Run("regular expression", func(t *testing.T) {
		out := run(t, cfg, "searchFiles", map[string]any{"pattern": "_test\\.go$"})
		assert.Equal(t, "/work/pkg/util_test.go", out)
	})

	t.Run("case insensitive", func(t *testing.T) {
		out := run(t, cfg, "searchFiles", map[string]any{"pattern": "readme"})
		assert.Equal(t, "/work/README.md", out)
	})

	t.Run("max count", func(t *testing.T) {
		out := run(t, cfg, "searchFiles", map[string]any{"pattern": "*.go", "maxCount": 1})
		assert.Len(t, strings.Split(out, "\n"), 1)
	})

	t.Run("no match", func(t *testing.T) {
		out := run(t, cfg, "searchFiles", map[string]any{"pattern": "*.rs"})
		assert.Equal(t, "No files found matching the pattern", out)
	})

	t.Run("invalid regex is an error", func(t *testing.T) {
		r := NewRegistry().Add(NewSearchFilesTool(cfg))
		_, err := r.Execute(context.Background(), call("searchFiles", map[string]any{"pattern": "("}))
		var exec *ErrToolExecution
		assert.ErrorAs(t, err, &exec)
	})
}

func TestGrepTool(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{
		"main.go":      "package main\n\nfunc main() {\n\tprintln(\"Hello\")\n}\n",
		"pkg/greet.go": "package pkg\n\n// hello world\n",
	})

	t.Run("single file with line numbers", func(t *testing.T) {
		out := run(t, cfg, "grep", map[string]any{"pattern": "main", "file_path": "main.go", "line_numbers": true})
		assert.Equal(t, "1:package main\n3:func main() {", out)
	})

	t.Run("directory case insensitive", func(t *testing.T) {
		out := run(t, cfg, "grep", map[string]any{"pattern": "hello", "file_path": ".", "ignore_case": true})
		assert.ElementsMatch(t, []string{"main.go:\tprintln(\"Hello\")", "pkg/greet.go:// hello world"}, strings.Split(out, "\n"))
	})

	t.Run("files only", func(t *testing.T) {
		out := run(t, cfg, "grep", map[string]any{"pattern": "package", "file_path": ".", "files_only": true})
		assert.ElementsMatch(t, []string{"main.go", "pkg/greet.go"}, strings.Split(out, "\n"))
	})

	t.Run("no matches", func(t *testing.T) {
		out := run(t, cfg, "grep", map[string]any{"pattern": "absent", "file_path": "main.go"})
		assert.Equal(t, `No matches found for pattern "absent" in "main.go".`, out)
	})

	t.Run("missing path", func(t *testing.T) {
		out := run(t, cfg, "grep", map[string]any{"pattern": "x", "file_path": "nope"})
		assert.Contains(t, out, "is not a valid file or accessible directory")
	})
}

func TestShellTool(t *testing.T) {
	cfg := Config{WorkingDir: t.TempDir()}
	r := NewRegistry().Add(NewShellTool(cfg))
	exec := func(cmd string) string {
		out, err := r.Execute(context.Background(), call("shell", map[string]any{"command": cmd}))
		require.NoError(t, err)
		return out
	}

	if testing.Short() {
		t.Skip("shell execution")
	}

	assert.Equal(t, "hello", exec("echo hello"))
	assert.Equal(t, "Command completed successfully", exec("true"))
	assert.True(t, strings.HasPrefix(exec("echo oops >&2; exit 3"), "Command failed: exit status 3\nStderr: oops"))
	assert.Equal(t, "Command produced stderr: warn\n", exec("echo warn >&2"))
}

func TestFormatShellResult(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "out", formatShellResult(" out \n", "", nil, cfg))
	assert.Equal(t, "Command completed with stderr: w", formatShellResult("\n", "w", nil, cfg))
	assert.Equal(t, "Command completed successfully", formatShellResult("", "", nil, cfg))
}
