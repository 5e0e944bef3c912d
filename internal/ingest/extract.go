package ingest

import "sort"

// Record is a raw rule-like record at the ingest boundary. The dynamic
// representation never travels past the normalizer.
type Record = map[string]any

// ruleListKeys are object keys commonly binding a flat rule array,
// probed in order.
var ruleListKeys = []string{"Rules", "rules", "results", "checks", "findings", "items", "controls"}

// recordMarkers identify an array element as rule-like during the
// last-resort scan.
var recordMarkers = []string{"rule_id", "id", "verdict", "result", "status"}

// shapeProbe inspects an object for one known container shape. It returns
// the candidate records and whether the shape matched. Probes are pure;
// the first match wins.
type shapeProbe func(m map[string]any) ([]Record, bool)

// shapeProbes is the ordered shape list. Adding a shape means appending a
// probe, not deepening a conditional tree.
var shapeProbes = []shapeProbe{
	probeRuleListKey,
	probeNestedResults,
	probeServiceKeyedResults,
	probeServicesMap,
	probeAnyRuleArray,
}

// Extract walks a decoded JSON document of unknown provenance and returns
// raw rule records in encounter order. An unrecognized shape yields an empty
// slice: absence of rules is a data-quality condition surfaced downstream,
// not a failure of this stage.
func Extract(doc any) []Record {
	switch v := doc.(type) {
	case []any:
		return collectRecords(v)
	case map[string]any:
		for _, probe := range shapeProbes {
			if records, ok := probe(v); ok {
				return records
			}
		}
	}
	return nil
}

// collectRecords keeps the object elements of a candidate array.
// Non-object elements cannot carry rule fields and are dropped with a
// warning rather than failing the batch.
func collectRecords(items []any) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, m)
		} else {
			warnf("skipping non-object rule entry of type %T", item)
		}
	}
	return records
}

// probeRuleListKey matches {"rules": [...]} and friends.
func probeRuleListKey(m map[string]any) ([]Record, bool) {
	for _, key := range ruleListKeys {
		if arr, ok := m[key].([]any); ok {
			debugf("found rules under key %q", key)
			return collectRecords(arr), true
		}
	}
	return nil, false
}

// probeNestedResults matches {"Results": [{"Rules": [...]}]}. The first
// outer element carrying a rule array wins; later elements are not merged.
func probeNestedResults(m map[string]any) ([]Record, bool) {
	for _, key := range []string{"Results", "results"} {
		arr, ok := m[key].([]any)
		if !ok {
			continue
		}
		for _, item := range arr {
			inner, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, rulesKey := range []string{"Rules", "rules"} {
				if rules, ok := inner[rulesKey].([]any); ok {
					debugf("found rules under %s[*].%s", key, rulesKey)
					return collectRecords(rules), true
				}
			}
		}
	}
	return nil, false
}

// probeServiceKeyedResults matches the ScubaGoggles v0.5.0 layout:
// {"Results": {"<service>": [{"Controls": [...], "GroupReferenceURL": ...}]}}.
// The enclosing service name and group URL are injected into each control
// record when the record does not already carry them. Services are visited
// in name order so extraction is deterministic.
func probeServiceKeyedResults(m map[string]any) ([]Record, bool) {
	results, ok := m["Results"].(map[string]any)
	if !ok {
		results, ok = m["results"].(map[string]any)
	}
	if !ok {
		return nil, false
	}
	debugf("found service-keyed Results structure")

	var records []Record
	for _, service := range sortedKeys(results) {
		groups, ok := results[service].([]any)
		if !ok {
			continue
		}
		for _, g := range groups {
			group, ok := g.(map[string]any)
			if !ok {
				continue
			}
			controls, ok := group["Controls"].([]any)
			if !ok {
				continue
			}
			groupURL, _ := group["GroupReferenceURL"].(string)
			for _, c := range controls {
				control, ok := c.(map[string]any)
				if !ok {
					warnf("skipping non-object control entry of type %T", c)
					continue
				}
				rec := control
				if _, has := rec["service"]; !has {
					rec = cloneWith(rec, "service", service)
				}
				if _, has := rec["GroupReferenceURL"]; !has && groupURL != "" {
					rec = cloneWith(rec, "GroupReferenceURL", groupURL)
				}
				records = append(records, rec)
			}
		}
	}
	return records, true
}

// probeServicesMap matches {"services": {"<name>": {"rules": [...]}}}.
// Every rule-ish key of every service contributes; the service name is
// injected when absent.
func probeServicesMap(m map[string]any) ([]Record, bool) {
	services, ok := m["services"].(map[string]any)
	if !ok {
		services, ok = m["Services"].(map[string]any)
	}
	if !ok {
		return nil, false
	}
	debugf("found service-based structure")

	var records []Record
	for _, service := range sortedKeys(services) {
		svc, ok := services[service].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"rules", "results", "checks"} {
			arr, ok := svc[key].([]any)
			if !ok {
				continue
			}
			for _, item := range arr {
				rec, ok := item.(map[string]any)
				if !ok {
					warnf("skipping non-object rule entry of type %T", item)
					continue
				}
				if _, has := rec["service"]; !has {
					rec = cloneWith(rec, "service", service)
				}
				records = append(records, rec)
			}
		}
	}
	return records, true
}

// probeAnyRuleArray is the last resort: the first non-empty array value
// (keys visited in sorted order) whose first element looks like a rule
// record. Sorted iteration keeps the fallback deterministic where the
// source data format gave no guarantees.
func probeAnyRuleArray(m map[string]any) ([]Record, bool) {
	warnf("no known container shape matched, using fallback rule extraction")
	for _, key := range sortedKeys(m) {
		arr, ok := m[key].([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		first, ok := arr[0].(map[string]any)
		if !ok {
			continue
		}
		for _, marker := range recordMarkers {
			if _, has := first[marker]; has {
				return collectRecords(arr), true
			}
		}
	}
	return nil, false
}

// cloneWith copies a record and sets one key. Source records are never
// mutated; they may alias caller-owned structures.
func cloneWith(rec Record, key string, value any) Record {
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out[key] = value
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
