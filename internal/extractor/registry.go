package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

var ErrDuplicateSource = errors.New("duplicate extractor source")

// Registry is read-only once built.
type Registry struct {
	manifests map[string]Manifest
	bySource  map[string]Manifest
}

func (r *Registry) Manifest(id string) (Manifest, bool) {
	m, ok := r.manifests[id]
	if !ok {
		return Manifest{}, false
	}
	return m.clone(), true
}

// ManifestForSource returns the single manifest that owns source.
func (r *Registry) ManifestForSource(source string) (Manifest, bool) {
	m, ok := r.bySource[source]
	if !ok {
		return Manifest{}, false
	}
	return m.clone(), true
}

// Manifests returns every manifest sorted by id.
func (r *Registry) Manifests() []Manifest {
	out := make([]Manifest, 0, len(r.manifests))
	for _, id := range slices.Sorted(maps.Keys(r.manifests)) {
		out = append(out, r.manifests[id].clone())
	}
	return out
}

func (r *Registry) Sources() []string {
	return slices.Sorted(maps.Keys(r.bySource))
}

// Loader builds the registry once and caches it until ResetForTests.
type Loader struct {
	Root    string
	Runners map[string]Runner
	// Strict rejects duplicate sources and malformed manifests instead of skipping them.
	Strict bool
	Logger *slog.Logger

	discover func(root string) ([]string, error)
	load     func(path string, runners map[string]Runner) (Manifest, error)

	mu       sync.Mutex
	registry *Registry
}

func NewLoader(root string, runners map[string]Runner, strict bool, logger *slog.Logger) *Loader {
	return &Loader{
		Root:     root,
		Runners:  runners,
		Strict:   strict,
		Logger:   logger,
		discover: DiscoverManifestPaths,
		load:     LoadManifestFromFile,
	}
}

// Initialize returns the cached registry, building it on first use. A failed build is
// not cached.
func (l *Loader) Initialize(ctx context.Context) (*Registry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.registry != nil {
		return l.registry, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths, err := l.discover(l.Root)
	if err != nil {
		return nil, err
	}

	reg := &Registry{manifests: map[string]Manifest{}, bySource: map[string]Manifest{}}
	for _, path := range paths {
		m, err := l.load(path, l.Runners)
		if err != nil {
			if l.Strict {
				return nil, err
			}
			l.Logger.Warn("skipping extractor manifest", "path", path, "error", err)
			continue
		}
		if err := l.register(reg, m); err != nil {
			return nil, err
		}
	}

	l.Logger.Info("extractor registry initialized",
		"extractors", len(reg.manifests),
		"sources", len(reg.bySource),
		"strict", l.Strict,
	)
	l.registry = reg
	return reg, nil
}

func (l *Loader) register(reg *Registry, m Manifest) error {
	if existing, ok := reg.manifests[m.ID]; ok {
		if l.Strict {
			return fmt.Errorf("%w: extractor id %q declared by %s and %s", ErrDuplicateSource, m.ID, existing.Path, m.Path)
		}
		l.Logger.Warn("duplicate extractor id, keeping first", "id", m.ID, "kept", existing.Path, "ignored", m.Path)
		return nil
	}

	var claimed []string
	for _, source := range m.ProvidesSources {
		owner, taken := reg.bySource[source]
		if !taken {
			claimed = append(claimed, source)
			continue
		}
		if l.Strict {
			return fmt.Errorf("%w: source %q provided by %s and %s", ErrDuplicateSource, source, owner.ID, m.ID)
		}
		l.Logger.Warn("duplicate extractor source, keeping first", "source", source, "kept", owner.ID, "ignored", m.ID)
	}

	reg.manifests[m.ID] = m
	for _, source := range claimed {
		reg.bySource[source] = m
	}
	return nil
}

// ResetForTests drops the cached registry so the next Initialize rediscovers.
func (l *Loader) ResetForTests() {
	l.mu.Lock()
	l.registry = nil
	l.mu.Unlock()
}
