package prompt

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Context describes the environment the agent runs in.
type Context struct {
	OS                string
	ProjectName       string
	WorkspaceLanguage string
	CurrentDate       string
}

// String renders the context as a prompt section, or "" when empty.
func (c Context) String() string {
	var parts []string
	if c.OS != "" {
		parts = append(parts, "OS: "+c.OS)
	}
	if c.ProjectName != "" {
		parts = append(parts, "Project: "+c.ProjectName)
	}
	if c.WorkspaceLanguage != "" {
		parts = append(parts, "Language: "+c.WorkspaceLanguage)
	}
	if c.CurrentDate != "" {
		parts = append(parts, "Current Date: "+c.CurrentDate)
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n\nCurrent Environment Context\n" + strings.Join(parts, ", ") + "\n"
}

// languageMarkers maps manifest files to the workspace language, in
// detection order.
var languageMarkers = []struct {
	file     string
	language string
}{
	{"go.mod", "Go"},
	{"tsconfig.json", "TypeScript"},
	{"package.json", "JavaScript"},
	{"Cargo.toml", "Rust"},
	{"pyproject.toml", "Python"},
	{"requirements.txt", "Python"},
	{"pom.xml", "Java"},
}

// Detect inspects dir for project manifests.
func Detect(fs afero.Fs, dir string, now time.Time) Context {
	ctx := Context{
		OS:          runtime.GOOS,
		CurrentDate: now.Format(time.DateOnly),
	}

	for _, m := range languageMarkers {
		if ok, _ := afero.Exists(fs, filepath.Join(dir, m.file)); ok {
			ctx.WorkspaceLanguage = m.language
			break
		}
	}

	ctx.ProjectName = projectName(fs, dir)
	if ctx.ProjectName == "" {
		ctx.ProjectName = filepath.Base(dir)
	}
	return ctx
}

func projectName(fs afero.Fs, dir string) string {
	if data, err := afero.ReadFile(fs, filepath.Join(dir, "package.json")); err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil && pkg.Name != "" {
			return pkg.Name
		}
	}

	f, err := fs.Open(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if mod, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "module "); ok {
			return strings.Trim(strings.TrimSpace(mod), `"`)
		}
	}
	return ""
}
