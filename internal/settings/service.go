package settings

import (
	"context"
	"fmt"
	"os"
)

// Store is the slice of the settings repository this package needs.
type Store interface {
	GetAllSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key string, value *string) error
}

type Service struct {
	store Store
	env   EnvLookup
}

func NewService(store Store) *Service {
	return &Service{store: store, env: os.LookupEnv}
}

// WithEnv swaps the environment lookup, mainly for tests.
func (s *Service) WithEnv(env EnvLookup) *Service {
	return &Service{store: s.store, env: env}
}

// Snapshot re-reads stored overrides on every call.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	overrides, err := s.store.GetAllSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return NewSnapshot(overrides, s.env), nil
}

// Describe resolves a single key against the stored state.
func (s *Service) Describe(ctx context.Context, key string) (Description, error) {
	def, ok := Lookup(key)
	if !ok {
		return Description{}, fmt.Errorf("unknown setting %q", key)
	}
	overrides, err := s.store.GetAllSettings(ctx)
	if err != nil {
		return Description{}, fmt.Errorf("load settings: %w", err)
	}
	var raw *string
	if v, ok := overrides[key]; ok {
		raw = &v
	}
	return def.Describe(raw, s.env), nil
}

// Set validates raw and stores its canonical form.
func (s *Service) Set(ctx context.Context, key, raw string) (string, error) {
	def, ok := Lookup(key)
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	canonical, err := def.Canonicalize(raw)
	if err != nil {
		return "", err
	}
	if err := s.store.SetSetting(ctx, key, &canonical); err != nil {
		return "", fmt.Errorf("store setting %s: %w", key, err)
	}
	return canonical, nil
}

// Clear removes the stored override so the environment or built-in default applies.
func (s *Service) Clear(ctx context.Context, key string) error {
	if _, ok := Lookup(key); !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	return s.store.SetSetting(ctx, key, nil)
}
