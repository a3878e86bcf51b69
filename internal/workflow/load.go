package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a workflow YAML file. It does not validate the
// result; call Validate separately so callers can decide whether to
// apply repairs before running.
func Load(path string) (Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}

	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return Definition{}, fmt.Errorf("workflow: parse %s: %w", path, err)
	}
	return def, nil
}
