// Package vscode models editor configuration fragments (settings,
// extension recommendations, launch configurations) and merges freshly
// generated fragments into whatever configuration a project already has.
// Existing user content is never discarded: incoming values win only on
// direct key conflicts, and those conflicts are reported as overrides.
package vscode

import "sort"

// Override records one settings key whose existing value an incoming
// fragment replaced.
type Override struct {
	Old any
	New any
}

// MergeSettings deep-merges incoming into existing. Nested maps merge
// recursively; for any other conflicting key the incoming value wins.
// Neither input map is mutated.
func MergeSettings(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, in := range incoming {
		if ex, ok := merged[k]; ok {
			exMap, exIsMap := ex.(map[string]any)
			inMap, inIsMap := in.(map[string]any)
			if exIsMap && inIsMap {
				merged[k] = MergeSettings(exMap, inMap)
				continue
			}
		}
		merged[k] = in
	}
	return merged
}

// MergeExtensions unions two recommendation lists, keeping the order of
// first appearance with existing entries ahead of incoming ones.
func MergeExtensions(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, id := range append(append([]string{}, existing...), incoming...) {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}

// MergeLaunchConfigs merges launch configuration lists keyed by the
// "name" field. An incoming entry replaces the same-named existing entry
// in place; new entries append in their incoming order. Unnamed existing
// entries are preserved.
func MergeLaunchConfigs(existing, incoming []map[string]any) []map[string]any {
	position := make(map[string]int, len(existing))
	merged := make([]map[string]any, 0, len(existing)+len(incoming))
	for _, cfg := range existing {
		if name, ok := cfg["name"].(string); ok {
			position[name] = len(merged)
		}
		merged = append(merged, cfg)
	}
	for _, cfg := range incoming {
		name, ok := cfg["name"].(string)
		if ok {
			if at, exists := position[name]; exists {
				merged[at] = cfg
				continue
			}
			position[name] = len(merged)
		}
		merged = append(merged, cfg)
	}
	return merged
}

// DetectOverrides reports the top-level settings keys whose existing
// values an incoming fragment would replace. Conflicts inside nested
// maps are reported under their top-level key.
func DetectOverrides(existing, incoming map[string]any) map[string]Override {
	overrides := make(map[string]Override)
	for k, in := range incoming {
		ex, ok := existing[k]
		if !ok {
			continue
		}
		exMap, exIsMap := ex.(map[string]any)
		inMap, inIsMap := in.(map[string]any)
		if exIsMap && inIsMap {
			if len(DetectOverrides(exMap, inMap)) > 0 {
				overrides[k] = Override{Old: ex, New: MergeSettings(exMap, inMap)}
			}
			continue
		}
		if !equalValue(ex, in) {
			overrides[k] = Override{Old: ex, New: in}
		}
	}
	return overrides
}

// OverrideKeys returns the overridden keys in sorted order for display.
func OverrideKeys(overrides map[string]Override) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalValue(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !equalValue(av, bv) {
				return false
			}
		}
		return true
	}
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalValue(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}
