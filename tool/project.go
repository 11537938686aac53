package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

type projectArgs struct {
	ProjectDir string `json:"projectDir,omitempty" jsonschema:"description=Project directory containing package.json or go.mod. Defaults to the working directory."`
}

type projectInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

type packageJSON struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

type goMod struct {
	Module    string
	GoVersion string
	Requires  map[string]string
}

// NewProjectInfoTool creates a tool that reports the project name and version
// from package.json or go.mod.
func NewProjectInfoTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("getProjectInfo",
		`Retrieves basic metadata from package.json or go.mod. Returns JSON in the form {"name": "<name>", "version": "<version>"}.`,
		func(ctx context.Context, args projectArgs) (string, error) {
			dir, err := cfg.resolvePath(args.ProjectDir)
			if err != nil {
				return fmt.Sprintf("Error: %v", err), nil
			}

			var info projectInfo
			if pkg, err := cfg.readPackageJSON(dir); err == nil {
				info = projectInfo{Name: pkg.Name, Version: pkg.Version}
			} else if mod, modErr := cfg.readGoMod(dir); modErr == nil {
				info = projectInfo{Name: mod.Module, Version: mod.GoVersion}
			} else {
				cfg.Logger.Info().Err(err).Str("dir", dir).Msg("no project manifest")
				return fmt.Sprintf("Error: no package.json or go.mod found in '%s'.", dir), nil
			}

			out, err := json.Marshal(info)
			if err != nil {
				return "", err
			}
			return string(out), nil
		})
}

// NewDependenciesTool creates a tool that lists the project's direct
// dependencies from package.json or go.mod.
func NewDependenciesTool(cfg Config) Registration {
	cfg = cfg.withDefaults()
	return Func("getDependencies",
		"Lists the dependencies declared in package.json or go.mod as a JSON object of name to version.",
		func(ctx context.Context, args projectArgs) (string, error) {
			dir, err := cfg.resolvePath(args.ProjectDir)
			if err != nil {
				return fmt.Sprintf("Error: %v", err), nil
			}

			deps := map[string]string{}
			if pkg, err := cfg.readPackageJSON(dir); err == nil {
				if pkg.Dependencies != nil {
					deps = pkg.Dependencies
				}
			} else if mod, modErr := cfg.readGoMod(dir); modErr == nil {
				deps = mod.Requires
			} else {
				return fmt.Sprintf("Error: no package.json or go.mod found in '%s'.", dir), nil
			}

			out, err := json.Marshal(deps)
			if err != nil {
				return "", err
			}
			return string(out), nil
		})
}

func (c Config) readPackageJSON(dir string) (packageJSON, error) {
	var pkg packageJSON
	content, err := c.readFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return pkg, err
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return pkg, fmt.Errorf("parse package.json: %w", err)
	}
	return pkg, nil
}

// readGoMod extracts the module path, go version and direct requirements.
func (c Config) readGoMod(dir string) (goMod, error) {
	mod := goMod{Requires: map[string]string{}}
	content, err := c.readFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return mod, err
	}

	inRequire := false
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		indirect := strings.Contains(line, "// indirect")
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		switch {
		case line == "":
		case inRequire && line == ")":
			inRequire = false
		case inRequire:
			addRequire(mod.Requires, line, indirect)
		case strings.HasPrefix(line, "module "):
			mod.Module = strings.Trim(strings.TrimPrefix(line, "module "), `"`)
		case strings.HasPrefix(line, "go "):
			mod.GoVersion = strings.TrimPrefix(line, "go ")
		case line == "require (":
			inRequire = true
		case strings.HasPrefix(line, "require "):
			addRequire(mod.Requires, strings.TrimPrefix(line, "require "), indirect)
		}
	}
	if mod.Module == "" {
		return mod, fmt.Errorf("go.mod in %s has no module directive", dir)
	}
	return mod, nil
}

func addRequire(deps map[string]string, line string, indirect bool) {
	if indirect {
		return
	}
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		deps[fields[0]] = fields[1]
	}
}
