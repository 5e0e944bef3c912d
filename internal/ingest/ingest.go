// Package ingest turns raw compliance-scan JSON of unknown shape into
// canonical model.Rule entities. Extraction probes a fixed list of known
// container shapes; normalization maps inconsistent field names and verdict
// spellings onto the canonical representation. Row-level anomalies are data,
// not errors: only a top-level value that is neither object nor array aborts
// a run.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/schmug/scubascore/internal/config"
	"github.com/schmug/scubascore/internal/model"
)

// ErrParse marks malformed top-level input: bytes that do not decode as JSON
// or a document that is neither an object nor an array. Distinct from
// config.ErrConfig so callers can tell a bad input file from a bad weights
// file.
var ErrParse = errors.New("unparseable input")

// Decode parses scan output bytes into a generic JSON document.
func Decode(data []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return doc, nil
}

// LoadFile reads and decodes a scan results file.
func LoadFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrParse, path, err)
	}
	return Decode(data)
}

// ParseResults extracts and normalizes every rule record found in a decoded
// scan document. Individual malformed records are skipped with a warning;
// an input with no extractable rules yields an empty slice, not an error.
func ParseResults(doc any, weights *config.WeightConfig, compensating *config.CompensatingConfig) ([]model.Rule, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is null", ErrParse)
	}
	switch doc.(type) {
	case map[string]any, []any:
	default:
		return nil, fmt.Errorf("%w: expected object or array at top level, got %T", ErrParse, doc)
	}

	records := Extract(doc)
	rules := make([]model.Rule, 0, len(records))
	for _, rec := range records {
		rules = append(rules, normalizeEntry(rec, "", weights, compensating))
	}
	return rules, nil
}
