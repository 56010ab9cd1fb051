// Package settings resolves tunables from three tiers: stored override, environment
// default and built-in default. Stored values stay strings; everything above the
// serialization boundary is typed.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// EnvLookup matches os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// Resolved carries the three views of one setting. OverrideValue is nil when no
// usable override is stored.
type Resolved[T any] struct {
	OverrideValue *T
	DefaultValue  T
	Value         T
}

// Setting is the untyped face of a Definition, used where keys arrive as strings.
type Setting interface {
	SettingKey() string
	// Canonicalize parses raw and returns its canonical stored form.
	Canonicalize(raw string) (string, error)
	// Describe resolves raw and renders every tier in canonical string form.
	Describe(raw *string, env EnvLookup) Description
}

type Description struct {
	Key      string  `json:"key"`
	Override *string `json:"overrideValue"`
	Default  string  `json:"defaultValue"`
	Value    string  `json:"value"`
}

type Definition[T any] struct {
	Key     string
	EnvKeys []string

	fallback  T
	parse     func(raw string) (T, bool)
	parseEnv  func(raw string) (T, bool)
	serialize func(v T) string
	// overrides reports whether a parsed override replaces the default.
	overrides func(v T) bool
	clone     func(v T) T
}

func (d Definition[T]) SettingKey() string { return d.Key }

// Default resolves the environment tier, then the built-in default.
func (d Definition[T]) Default(env EnvLookup) T {
	if env == nil {
		env = os.LookupEnv
	}
	for _, key := range d.EnvKeys {
		raw, ok := env(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if v, ok := d.parseEnv(raw); ok {
			return v
		}
	}
	return d.copy(d.fallback)
}

// Resolve never fails: malformed overrides fall back to the default.
func (d Definition[T]) Resolve(raw *string, env EnvLookup) Resolved[T] {
	def := d.Default(env)
	res := Resolved[T]{DefaultValue: def, Value: def}
	if raw == nil {
		return res
	}

	v, ok := d.parse(*raw)
	if !ok {
		return res
	}
	res.OverrideValue = &v
	if d.overrides == nil || d.overrides(v) {
		res.Value = d.copy(v)
	}
	return res
}

func (d Definition[T]) Serialize(v T) string {
	return d.serialize(v)
}

func (d Definition[T]) Canonicalize(raw string) (string, error) {
	v, ok := d.parse(raw)
	if !ok {
		return "", fmt.Errorf("invalid value %q for setting %s", raw, d.Key)
	}
	return d.serialize(v), nil
}

func (d Definition[T]) Describe(raw *string, env EnvLookup) Description {
	res := d.Resolve(raw, env)
	desc := Description{
		Key:     d.Key,
		Default: d.serialize(res.DefaultValue),
		Value:   d.serialize(res.Value),
	}
	if res.OverrideValue != nil {
		s := d.serialize(*res.OverrideValue)
		desc.Override = &s
	}
	return desc
}

func (d Definition[T]) copy(v T) T {
	if d.clone == nil {
		return v
	}
	return d.clone(v)
}

// Number declares an integer setting clamped to [lo, hi].
func Number(key, envKey string, def, lo, hi int) Definition[int] {
	parse := func(raw string) (int, bool) {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, false
		}
		return clamp(n, lo, hi), true
	}
	return Definition[int]{
		Key:       key,
		EnvKeys:   envKeys(envKey),
		fallback:  def,
		parse:     parse,
		parseEnv:  parse,
		serialize: strconv.Itoa,
	}
}

// Bool declares a flag stored as "1"/"0".
func Bool(key, envKey string, def bool) Definition[bool] {
	return Definition[bool]{
		Key:      key,
		EnvKeys:  envKeys(envKey),
		fallback: def,
		parse:    ParseBool,
		parseEnv: ParseBool,
		serialize: func(v bool) string {
			if v {
				return "1"
			}
			return "0"
		},
	}
}

// List declares a string list stored as a JSON array. The environment tier uses
// envSep-separated values.
func List(key, envKey, envSep string, def []string) Definition[[]string] {
	return Definition[[]string]{
		Key:      key,
		EnvKeys:  envKeys(envKey),
		fallback: def,
		parse:    parseJSONList,
		parseEnv: func(raw string) ([]string, bool) {
			items := NormalizeStringList(strings.Split(raw, envSep))
			return items, len(items) > 0
		},
		serialize: func(v []string) string {
			if v == nil {
				v = []string{}
			}
			b, _ := json.Marshal(v)
			return string(b)
		},
		clone: func(v []string) []string { return slices.Clone(v) },
	}
}

// String declares a free-form string. A blank override is kept as the override value
// but the default stays effective.
func String(key string, envKeys []string, def string) Definition[string] {
	trimmed := func(raw string) (string, bool) { return strings.TrimSpace(raw), true }
	return Definition[string]{
		Key:       key,
		EnvKeys:   envKeys,
		fallback:  def,
		parse:     func(raw string) (string, bool) { return raw, true },
		parseEnv:  trimmed,
		serialize: func(v string) string { return v },
		overrides: func(v string) bool { return strings.TrimSpace(v) != "" },
	}
}

// ParseBool recognises 1/0, true/false and yes/no, case-insensitively.
func ParseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

// NormalizeStringList trims entries, drops blanks and removes case-sensitive duplicates
// while keeping first-seen order.
func NormalizeStringList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func parseJSONList(raw string) ([]string, bool) {
	var decoded []any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil || decoded == nil {
		return nil, false
	}
	values := make([]string, 0, len(decoded))
	for _, item := range decoded {
		s, ok := item.(string)
		if !ok {
			continue
		}
		values = append(values, s)
	}
	return NormalizeStringList(values), true
}

func envKeys(key string) []string {
	if key == "" {
		return nil
	}
	return []string{key}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
