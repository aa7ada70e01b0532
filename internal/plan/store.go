package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath is the plan file location relative to the working
// directory when no path is configured.
const DefaultPath = ".opencode/plans/PLAN.md"

// ErrPlanExists indicates that "plan create" found an existing plan file.
var ErrPlanExists = errors.New("plan file already exists")

// ErrPlanNotFound indicates that the plan file does not exist.
var ErrPlanNotFound = errors.New("plan file not found")

// Load reads and parses the plan file at path. The fresh read is
// deliberate: the loop picks up user edits between iterations this way.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, path)
		}
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(string(data)), nil
}

// Save writes raw plan markdown to path, creating parent directories as
// needed. The file is always rewritten in full.
func Save(path, rawText string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create plan directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(rawText), 0644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

// Create writes a templated plan file at path. It refuses to overwrite
// an existing plan.
func Create(path string, data TemplateData) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrPlanExists, path)
	}

	content, err := RenderTemplate(data)
	if err != nil {
		return err
	}
	return Save(path, content)
}
