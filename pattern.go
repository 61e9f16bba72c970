// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import "strings"

// InferenceRule is a (source-suffix, target-suffix, recipe) triple.
// SourceSuffix == "" means the wildcard form ".TGT:", which matches any
// name ending in the target suffix; no same-stem source file is searched
// for and no dependency is derived from it.
type InferenceRule struct {
	SourceSuffix string
	TargetSuffix string
	Scope        *Scope
	Recipe       []string
}

// parseSuffixHeader recognizes ".SRC.TGT" or ".TGT" suffix-rule headers,
// e.g. ".c.o" or ".o". Both suffixes must start with '.' and contain no
// further '.' within the suffix itself once split; a single-suffix header
// has exactly one dot after the leading one.
func parseSuffixHeader(s string) (source, target string, ok bool) {
	if !strings.HasPrefix(s, ".") {
		return "", "", false
	}
	rest := s[1:]
	if rest == "" {
		return "", "", false
	}
	// Find a second leading suffix boundary: a '.' that starts the target
	// suffix. We scan for exactly one more '.' — suffixes themselves don't
	// contain dots in practice (".tar.gz" style double extensions are not
	// suffix-rule syntax here).
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		src := "." + rest[:idx]
		tgt := "." + rest[idx+1:]
		if tgt == "." || strings.Contains(rest[idx+1:], ".") {
			return "", "", false
		}
		return src, tgt, true
	}
	return "", "." + rest, true
}

// Matches reports whether target's name ends with r's target suffix, and
// if so returns the stem (target name with the suffix removed) and the
// candidate dependency name formed by substituting the source suffix.
func (r *InferenceRule) Matches(target string) (stem, candidate string, ok bool) {
	if !strings.HasSuffix(target, r.TargetSuffix) {
		return "", "", false
	}
	stem = target[:len(target)-len(r.TargetSuffix)]
	if r.SourceSuffix == "" {
		return stem, "", true // wildcard: no candidate dependency name
	}
	return stem, stem + r.SourceSuffix, true
}
