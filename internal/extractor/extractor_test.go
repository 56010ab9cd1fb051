package extractor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noopRunner = RunnerFunc(func(ctx context.Context, rc RunContext) (Result, error) {
	return Result{}, nil
})

func testRunners() map[string]Runner {
	return map[string]Runner{"noop": noopRunner}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func manifestYAML(id string, sources ...string) string {
	out := "id: " + id + "\ndisplayName: " + id + " board\nrunner: noop\nprovidesSources:\n"
	for _, s := range sources {
		out += "  - " + s + "\n"
	}
	return out
}

func TestDiscoverManifestPathsIsSortedAndDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "zeta", "manifest.yaml"), manifestYAML("zeta", "zeta"))
	writeFile(t, filepath.Join(root, "alpha", "src", "manifest.yaml"), manifestYAML("alpha", "alpha"))
	writeFile(t, filepath.Join(root, "mid", "manifest.json"), `{"id":"mid","displayName":"Mid","providesSources":["mid"],"runner":"noop"}`)
	writeFile(t, filepath.Join(root, "both", "manifest.yaml"), manifestYAML("both", "both"))
	writeFile(t, filepath.Join(root, "both", "manifest.json"), `{}`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))
	writeFile(t, filepath.Join(root, "README.md"), "not a plugin")

	first, err := DiscoverManifestPaths(root)
	require.NoError(t, err)
	second, err := DiscoverManifestPaths(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "alpha", "src", "manifest.yaml"),
		filepath.Join(root, "both", "manifest.yaml"),
		filepath.Join(root, "mid", "manifest.json"),
		filepath.Join(root, "zeta", "manifest.yaml"),
	}, first)
	assert.Equal(t, first, second)
}

func TestDiscoverManifestPathsMissingRoot(t *testing.T) {
	_, err := DiscoverManifestPaths(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadManifestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	writeFile(t, path, `
id: jobspy
displayName: JobSpy
providesSources: [indeed, linkedin]
requiredEnvVars: [JOBSPY_TOKEN]
runner: noop
options:
  url: https://example.com/feed
`)

	m, err := LoadManifestFromFile(path, testRunners())
	require.NoError(t, err)
	assert.Equal(t, "jobspy", m.ID)
	assert.Equal(t, "JobSpy", m.DisplayName)
	assert.Equal(t, []string{"indeed", "linkedin"}, m.ProvidesSources)
	assert.Equal(t, []string{"JOBSPY_TOKEN"}, m.RequiredEnvVars)
	assert.Equal(t, "https://example.com/feed", m.Options["url"])
	assert.Equal(t, path, m.Path)
	assert.NotNil(t, m.Run)
}

func TestLoadManifestFromFileRejectsInvalidShapes(t *testing.T) {
	cases := map[string]string{
		"missing id":          "displayName: X\nprovidesSources: [x]\nrunner: noop\n",
		"missing displayName": "id: x\nprovidesSources: [x]\nrunner: noop\n",
		"no sources":          "id: x\ndisplayName: X\nprovidesSources: []\nrunner: noop\n",
		"blank source":        "id: x\ndisplayName: X\nprovidesSources: ['  ']\nrunner: noop\n",
		"unknown runner":      "id: x\ndisplayName: X\nprovidesSources: [x]\nrunner: scraper\n",
		"not yaml":            "id: [unterminated\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "manifest.yaml")
			writeFile(t, path, content)

			_, err := LoadManifestFromFile(path, testRunners())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidManifest))

			var invalid *InvalidManifestError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, path, invalid.Path)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "manifest.yaml"), manifestYAML("a", "alpha", "beta"))

	reg, err := NewLoader(root, testRunners(), false, quietLogger()).Initialize(context.Background())
	require.NoError(t, err)

	m, ok := reg.Manifest("a")
	require.True(t, ok)
	m.ProvidesSources[0] = "mutated"

	again, _ := reg.ManifestForSource("alpha")
	assert.Equal(t, []string{"alpha", "beta"}, again.ProvidesSources)
}

func TestRegistryMapsSources(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "jobspy", "manifest.yaml"), manifestYAML("jobspy", "indeed", "linkedin"))
	writeFile(t, filepath.Join(root, "ukvisajobs", "manifest.yaml"), manifestYAML("ukvisajobs", "ukvisajobs"))

	reg, err := NewLoader(root, testRunners(), true, quietLogger()).Initialize(context.Background())
	require.NoError(t, err)

	assert.Len(t, reg.Manifests(), 2)
	m, ok := reg.ManifestForSource("linkedin")
	require.True(t, ok)
	assert.Equal(t, "jobspy", m.ID)
	m, ok = reg.ManifestForSource("ukvisajobs")
	require.True(t, ok)
	assert.Equal(t, "ukvisajobs", m.ID)
	assert.Equal(t, []string{"indeed", "linkedin", "ukvisajobs"}, reg.Sources())
}

func TestRegistryDuplicateSourceLenientKeepsFirst(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a-first", "manifest.yaml"), manifestYAML("first", "linkedin", "indeed"))
	writeFile(t, filepath.Join(root, "b-second", "manifest.yaml"), manifestYAML("second", "linkedin", "glassdoor"))

	reg, err := NewLoader(root, testRunners(), false, quietLogger()).Initialize(context.Background())
	require.NoError(t, err)

	m, _ := reg.ManifestForSource("linkedin")
	assert.Equal(t, "first", m.ID)
	m, _ = reg.ManifestForSource("glassdoor")
	assert.Equal(t, "second", m.ID)
}

func TestRegistryDuplicateSourceStrictFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a-first", "manifest.yaml"), manifestYAML("first", "linkedin"))
	writeFile(t, filepath.Join(root, "b-second", "manifest.yaml"), manifestYAML("second", "linkedin"))

	_, err := NewLoader(root, testRunners(), true, quietLogger()).Initialize(context.Background())
	assert.ErrorIs(t, err, ErrDuplicateSource)
}

func TestRegistryMalformedManifestPolicy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good", "manifest.yaml"), manifestYAML("good", "good"))
	writeFile(t, filepath.Join(root, "bad", "manifest.yaml"), "id: bad\n")

	reg, err := NewLoader(root, testRunners(), false, quietLogger()).Initialize(context.Background())
	require.NoError(t, err)
	assert.Len(t, reg.Manifests(), 1)

	_, err = NewLoader(root, testRunners(), true, quietLogger()).Initialize(context.Background())
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestLoaderCachesUntilReset(t *testing.T) {
	calls := 0
	loader := NewLoader("unused", testRunners(), false, quietLogger())
	loader.discover = func(string) ([]string, error) {
		calls++
		return []string{"one"}, nil
	}
	loader.load = func(path string, runners map[string]Runner) (Manifest, error) {
		return Manifest{ID: "one", DisplayName: "One", ProvidesSources: []string{"one"}, Run: noopRunner}, nil
	}

	first, err := loader.Initialize(context.Background())
	require.NoError(t, err)
	second, err := loader.Initialize(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	loader.ResetForTests()
	third, err := loader.Initialize(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, calls)
}

func TestLoaderDoesNotCacheFailure(t *testing.T) {
	fail := true
	loader := NewLoader("unused", testRunners(), false, quietLogger())
	loader.discover = func(string) ([]string, error) {
		if fail {
			return nil, errors.New("disk on fire")
		}
		return nil, nil
	}

	_, err := loader.Initialize(context.Background())
	require.Error(t, err)

	fail = false
	reg, err := loader.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reg.Manifests())
}

func TestManifestMissingEnvVars(t *testing.T) {
	m := Manifest{RequiredEnvVars: []string{"ADZUNA_APP_ID", "ADZUNA_APP_KEY", "BLANK"}}
	env := map[string]string{"ADZUNA_APP_ID": "id", "BLANK": " "}

	missing := m.MissingEnvVars(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, []string{"ADZUNA_APP_KEY", "BLANK"}, missing)
}
