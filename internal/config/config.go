// Package config holds the three read-only lookup tables a scoring run is
// parameterized by: rule weights, service importance weights, and
// compensating controls. Each is loaded once per run from YAML and never
// mutated afterwards; callers snapshot configuration before invoking the
// scoring engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks configuration validity violations: wrong top-level types,
// non-numeric or negative weights. Distinct from ingest.ErrParse so callers
// can report "bad weights file" vs "bad input file".
var ErrConfig = errors.New("invalid configuration")

// DefaultWeight is the rule weight used when no mapping entry matches.
const DefaultWeight = 1.0

// DefaultServiceWeight is the importance given to a service that appears in
// the scored data but not in the service weight config. Unknown services
// still count, just lightly.
const DefaultServiceWeight = 0.1

// WeightConfig maps rule IDs or ID prefixes to numeric weights.
type WeightConfig struct {
	Weights map[string]float64
}

// Resolve returns the weight for a rule ID. Exact match always outranks any
// prefix match; among prefix matches the longest key wins, with equal-length
// ties broken by the lexicographically smallest key so resolution does not
// depend on map iteration order. An empty ID or no match yields def.
func (c *WeightConfig) Resolve(ruleID string, def float64) float64 {
	if c == nil || len(c.Weights) == 0 || ruleID == "" {
		return def
	}
	if w, ok := c.Weights[ruleID]; ok {
		return w
	}
	best := ""
	found := false
	for key := range c.Weights {
		if len(key) > len(ruleID) || ruleID[:len(key)] != key {
			continue
		}
		if !found || len(key) > len(best) || (len(key) == len(best) && key < best) {
			best = key
			found = true
		}
	}
	if !found {
		return def
	}
	return c.Weights[best]
}

// ServiceWeightConfig maps service names to importance weights in [0,1].
// Values are advisory and need not sum to 1; the scoring engine normalizes
// by the realized sum.
type ServiceWeightConfig struct {
	Weights map[string]float64
}

// Importance returns the configured weight for a service, or
// DefaultServiceWeight when the service is not configured.
func (c *ServiceWeightConfig) Importance(service string) float64 {
	if c == nil {
		return DefaultServiceWeight
	}
	if w, ok := c.Weights[service]; ok {
		return w
	}
	return DefaultServiceWeight
}

// DefaultServiceWeights returns the built-in Google Workspace importance
// split used when no service weight file is supplied.
func DefaultServiceWeights() *ServiceWeightConfig {
	return &ServiceWeightConfig{Weights: map[string]float64{
		"gmail":     0.20,
		"drive":     0.20,
		"common":    0.20,
		"groups":    0.10,
		"chat":      0.10,
		"meet":      0.05,
		"calendar":  0.05,
		"classroom": 0.05,
		"sites":     0.05,
	}}
}

// CompensatingConfig maps rule IDs to compensating control descriptions.
// Presence of an entry, not its content, earns the half-weight credit.
type CompensatingConfig struct {
	Controls map[string]string
}

// Control returns the description for a rule ID and whether one exists.
func (c *CompensatingConfig) Control(ruleID string) (string, bool) {
	if c == nil {
		return "", false
	}
	desc, ok := c.Controls[ruleID]
	return desc, ok
}

// LoadWeights reads a weight mapping from a YAML file. The mapping may sit
// under a top-level "weights" key or be supplied bare. An empty path yields
// an empty config (every rule resolves to the default weight).
func LoadWeights(path string) (*WeightConfig, error) {
	raw, err := loadYAMLMap(path, "weights")
	if err != nil {
		return nil, err
	}
	weights, err := toWeightMap(raw, "weight")
	if err != nil {
		return nil, err
	}
	for key, w := range weights {
		if w > 10 {
			warnf("unusually high weight for %q: %g", key, w)
		}
	}
	return &WeightConfig{Weights: weights}, nil
}

// LoadServiceWeights reads a service importance mapping from a YAML file,
// optionally nested under "service_weights". An empty path or empty file
// yields the built-in defaults.
func LoadServiceWeights(path string) (*ServiceWeightConfig, error) {
	raw, err := loadYAMLMap(path, "service_weights")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return DefaultServiceWeights(), nil
	}
	weights, err := toWeightMap(raw, "service weight")
	if err != nil {
		return nil, err
	}
	total := 0.0
	for service, w := range weights {
		if w > 1.0 {
			warnf("service weight for %q is greater than 1.0: %g", service, w)
		}
		total += w
	}
	if total > 0 && (total < 0.99 || total > 1.01) {
		warnf("service weights sum to %.2f, not 1.0", total)
	}
	return &ServiceWeightConfig{Weights: weights}, nil
}

// LoadCompensating reads compensating control definitions from a YAML file,
// optionally nested under "compensating". Values may be plain strings or
// mappings carrying a rationale/description.
func LoadCompensating(path string) (*CompensatingConfig, error) {
	raw, err := loadYAMLMap(path, "compensating")
	if err != nil {
		return nil, err
	}
	controls := make(map[string]string, len(raw))
	for ruleID, v := range raw {
		switch val := v.(type) {
		case string:
			controls[ruleID] = val
		case map[string]any:
			desc := stringField(val, "rationale")
			if desc == "" {
				desc = stringField(val, "description")
			}
			if desc == "" {
				warnf("compensating control for %q has no rationale/description", ruleID)
				desc = fmt.Sprint(val)
			}
			controls[ruleID] = desc
		case nil:
			// An explicit null does not mark the rule as compensated.
		default:
			return nil, fmt.Errorf("%w: compensating control for %q must be string or mapping, got %T", ErrConfig, ruleID, v)
		}
	}
	return &CompensatingConfig{Controls: controls}, nil
}

// loadYAMLMap reads a YAML file into a string-keyed map, unwrapping the
// given top-level key if present. A missing path returns an empty map.
func loadYAMLMap(path, wrapKey string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: expected a mapping at top level, got %T", ErrConfig, path, doc)
	}
	if inner, ok := m[wrapKey]; ok {
		innerMap, ok := inner.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %q must be a mapping, got %T", ErrConfig, path, wrapKey, inner)
		}
		return innerMap, nil
	}
	return m, nil
}

// toWeightMap coerces raw YAML values to non-negative floats.
func toWeightMap(raw map[string]any, kind string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for key, v := range raw {
		w, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s for %q must be numeric, got %T", ErrConfig, kind, key, v)
		}
		if w < 0 {
			return nil, fmt.Errorf("%w: %s for %q must be non-negative, got %g", ErrConfig, kind, key, w)
		}
		out[key] = w
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// SortedKeys returns the keys of a weight map in lexicographic order.
// Used by reporters and the settings handler for stable output.
func SortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
