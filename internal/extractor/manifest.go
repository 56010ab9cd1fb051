package extractor

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifestCandidates are checked in order inside each extractor directory.
var manifestCandidates = []string{"manifest.yaml", "manifest.yml", "manifest.json", "src/manifest.yaml"}

var ErrInvalidManifest = errors.New("invalid extractor manifest")

type InvalidManifestError struct {
	Path   string
	Reason string
}

func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid manifest in %s: %s", e.Path, e.Reason)
}

func (e *InvalidManifestError) Unwrap() error { return ErrInvalidManifest }

type Manifest struct {
	ID              string         `json:"id"`
	DisplayName     string         `json:"displayName"`
	ProvidesSources []string       `json:"providesSources"`
	RequiredEnvVars []string       `json:"requiredEnvVars,omitempty"`
	RunnerName      string         `json:"runner"`
	Options         map[string]any `json:"options,omitempty"`
	Path            string         `json:"path"`

	Run Runner `json:"-"`
}

// MissingEnvVars returns the required variables that are unset or blank.
func (m Manifest) MissingEnvVars(lookup func(string) (string, bool)) []string {
	var missing []string
	for _, key := range m.RequiredEnvVars {
		if v, ok := lookup(key); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func (m Manifest) clone() Manifest {
	m.ProvidesSources = slices.Clone(m.ProvidesSources)
	m.RequiredEnvVars = slices.Clone(m.RequiredEnvVars)
	m.Options = maps.Clone(m.Options)
	return m
}

type manifestFile struct {
	ID              string         `yaml:"id"`
	DisplayName     string         `yaml:"displayName"`
	ProvidesSources []string       `yaml:"providesSources"`
	RequiredEnvVars []string       `yaml:"requiredEnvVars"`
	Runner          string         `yaml:"runner"`
	Options         map[string]any `yaml:"options"`
}

// DiscoverManifestPaths returns one manifest path per immediate subdirectory of root,
// sorted lexicographically.
func DiscoverManifestPaths(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read extractors root %s: %w", root, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, candidate := range manifestCandidates {
			full := filepath.Join(root, entry.Name(), filepath.FromSlash(candidate))
			info, err := os.Stat(full)
			if err == nil && !info.IsDir() {
				paths = append(paths, full)
				break
			}
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("stat manifest %s: %w", full, err)
			}
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadManifestFromFile decodes and validates one manifest. YAML and JSON files are both
// accepted. The runner is resolved from runners by name.
func LoadManifestFromFile(path string, runners map[string]Runner) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var file manifestFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Manifest{}, &InvalidManifestError{Path: path, Reason: err.Error()}
	}
	if reason := file.validate(runners); reason != "" {
		return Manifest{}, &InvalidManifestError{Path: path, Reason: reason}
	}

	m := Manifest{
		ID:              strings.TrimSpace(file.ID),
		DisplayName:     strings.TrimSpace(file.DisplayName),
		ProvidesSources: file.ProvidesSources,
		RequiredEnvVars: file.RequiredEnvVars,
		RunnerName:      file.Runner,
		Options:         file.Options,
		Path:            path,
		Run:             runners[file.Runner],
	}
	return m.clone(), nil
}

func (f manifestFile) validate(runners map[string]Runner) string {
	switch {
	case strings.TrimSpace(f.ID) == "":
		return "id is required"
	case strings.TrimSpace(f.DisplayName) == "":
		return "displayName is required"
	case len(f.ProvidesSources) == 0:
		return "providesSources must list at least one source"
	case f.Runner == "":
		return "runner is required"
	}
	for _, source := range f.ProvidesSources {
		if strings.TrimSpace(source) == "" {
			return "providesSources contains a blank source"
		}
	}
	if runners[f.Runner] == nil {
		return fmt.Sprintf("unknown runner %q", f.Runner)
	}
	return ""
}
