package prompt

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// InstructionsDir holds named instruction files, relative to the working
// directory.
const InstructionsDir = ".codison/instructions"

// LoadInstruction reads InstructionsDir/<name>.md under dir.
func LoadInstruction(fs afero.Fs, dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("instruction %s not found", name)
	}
	data, err := afero.ReadFile(fs, filepath.Join(dir, InstructionsDir, name+".md"))
	if err != nil {
		return "", fmt.Errorf("instruction %s not found: %w", name, err)
	}
	return string(data), nil
}
