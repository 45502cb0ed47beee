// Package catalog reads and writes the YAML files that describe what can be
// launched: the title catalog and the exec mappings.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"
	"github.com/harshul/relic/internal/launcher"
	"github.com/harshul/relic/internal/platform"
	"gopkg.in/yaml.v3"
)

// Catalog is the list of launchable titles.
type Catalog struct {
	Titles []Entry `yaml:"titles"`
}

// Entry is a title as stored in the catalog file.
type Entry struct {
	ID              string                      `yaml:"id"`
	Name            string                      `yaml:"name"`
	ApplicationPath string                      `yaml:"application_path"`
	LaunchCommand   string                      `yaml:"launch_command,omitempty"`
	Placeholder     bool                        `yaml:"placeholder,omitempty"`
	Middleware      []launcher.MiddlewareConfig `yaml:"middleware,omitempty"`
	AdditionalRuns  []RunEntry                  `yaml:"additional_runs,omitempty"`
}

// RunEntry is an additional run as stored in the catalog file.
type RunEntry struct {
	ID              string `yaml:"id,omitempty"`
	Name            string `yaml:"name"`
	ApplicationPath string `yaml:"application_path"`
	LaunchCommand   string `yaml:"launch_command,omitempty"`
	AutoRunBefore   bool   `yaml:"auto_run_before,omitempty"`
	WaitForExit     bool   `yaml:"wait_for_exit,omitempty"`
}

// Title converts the entry for the launcher.
func (e Entry) Title() launcher.Title {
	t := launcher.Title{
		ID:              e.ID,
		Name:            e.Name,
		ApplicationPath: e.ApplicationPath,
		LaunchCommand:   e.LaunchCommand,
		Placeholder:     e.Placeholder,
	}
	for _, r := range e.AdditionalRuns {
		t.AdditionalRuns = append(t.AdditionalRuns, launcher.AdditionalRun{
			ID:            r.ID,
			Name:          r.Name,
			Action:        launcher.ParseRunAction(r.ApplicationPath, r.LaunchCommand, r.WaitForExit),
			AutoRunBefore: r.AutoRunBefore,
			WaitForExit:   r.WaitForExit,
		})
	}
	return t
}

// Find returns the entry with the given id.
func (c Catalog) Find(id string) (Entry, bool) {
	for _, e := range c.Titles {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Write writes the catalog as a YAML file.
func Write(path string, c Catalog) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read reads and validates a catalog file. Additional runs without an id
// get a generated one.
func Read(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog %s: %w", path, err)
	}

	seen := make(map[string]bool)
	for i := range c.Titles {
		e := &c.Titles[i]
		if e.ID == "" {
			return Catalog{}, fmt.Errorf("invalid catalog: title %d (%q) has no id", i, e.Name)
		}
		if seen[e.ID] {
			return Catalog{}, fmt.Errorf("invalid catalog: duplicate title id %q", e.ID)
		}
		seen[e.ID] = true
		if e.ApplicationPath == "" && !e.Placeholder {
			return Catalog{}, fmt.Errorf("invalid catalog: title %q has no application path", e.ID)
		}
		for j := range e.AdditionalRuns {
			if e.AdditionalRuns[j].ID == "" {
				e.AdditionalRuns[j].ID = uuid.NewString()
			}
		}
	}
	return c, nil
}

// ReadExecMappings reads an exec mappings file. JSON files are accepted as
// well. A missing file means no mappings.
func ReadExecMappings(path string) ([]platform.ExecMapping, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var mappings []platform.ExecMapping
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("invalid exec mappings %s: %w", path, err)
	}
	return mappings, nil
}
