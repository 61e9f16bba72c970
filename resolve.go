// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"os"
	"strings"
)

// Plan is the subset of a Graph that a build actually needs to touch:
// every stale target, with pendingDeps already populated so the scheduler
// can find its initial Ready set by filtering for zero.
type Plan struct {
	Targets map[*Target]bool
	Ready   []*Target
	Parents map[*Target][]*Target
}

type resolver struct {
	graph *Graph
	root  *Scope

	active map[*Target]bool
	stale  map[*Target]bool
	chain  []*Target

	plan map[*Target]bool
}

// Resolve walks the dependency graph from rootNames, matching inference
// rules for targets that have none, detecting cycles, and computing
// mtime-based staleness. The returned Plan is ready for a Scheduler.
func Resolve(g *Graph, root *Scope, rootNames []string) (*Plan, error) {
	r := &resolver{
		graph:  g,
		root:   root,
		active: make(map[*Target]bool),
		stale:  make(map[*Target]bool),
		plan:   make(map[*Target]bool),
	}

	for _, name := range rootNames {
		t := r.lookupRoot(name)
		if _, err := r.visit(t, root); err != nil {
			return nil, err
		}
		r.plan[t] = true // a root is always scheduled, even a no-op grouping target
	}

	parents := make(map[*Target][]*Target)
	for t := range r.plan {
		n := 0
		for _, e := range t.Edges {
			if r.plan[e.Dep] {
				n++
				parents[e.Dep] = append(parents[e.Dep], t)
			}
		}
		t.pendingDeps = n
	}
	var ready []*Target
	for t := range r.plan {
		if t.pendingDeps == 0 {
			ready = append(ready, t)
		}
	}
	return &Plan{Targets: r.plan, Ready: ready, Parents: parents}, nil
}

// lookupRoot resolves a command-line target name: first as a literal (task
// names and already-canonical paths match this way), then as a path
// relative to the process's working directory.
func (r *resolver) lookupRoot(name string) *Target {
	if t, ok := r.graph.Lookup(name); ok {
		return t
	}
	return r.graph.target(canonicalTargetName(name, false))
}

// visit resolves t (applying an inference rule if it is a file target with
// no explicit recipe, whether or not it has declared edges) and returns
// whether it's stale. scope is the
// scope in which t was referenced, used for inference-rule search when t
// has no scope of its own yet.
func (r *resolver) visit(t *Target, scope *Scope) (bool, error) {
	if r.active[t] {
		return false, cycleError(r.chain, t)
	}
	if v, done := r.stale[t]; done {
		return v, nil
	}

	r.active[t] = true
	r.chain = append(r.chain, t)
	defer func() {
		delete(r.active, t)
		r.chain = r.chain[:len(r.chain)-1]
	}()

	if t.Scope == nil {
		t.Scope = scope
	}
	if !t.IsTask && !t.hasExplicitRecipe {
		applyInferenceRule(r.graph, t, scope)
	}

	anyChildStale := false
	for _, e := range t.Edges {
		childStale, err := r.visit(e.Dep, t.Scope)
		if err != nil {
			return false, err
		}
		e.Stale = childStale
		if childStale {
			anyChildStale = true
		}
	}

	stale := anyChildStale
	if !stale {
		fs, err := r.isStale(t)
		if err != nil {
			return false, err
		}
		stale = fs
	}

	r.stale[t] = stale
	if stale {
		r.plan[t] = true
	}
	return stale, nil
}

// applyInferenceRule searches scope's ancestor chain for a suffix rule
// matching t and, if found, attaches its recipe and a synthesized
// dependency edge on the matched source file.
func applyInferenceRule(g *Graph, t *Target, scope *Scope) {
	base := t.Name
	rule, stem, ok := FindInferenceRule(scope, base)
	if !ok {
		return
	}
	t.Recipe = rule.Recipe
	t.Stem = stem
	t.FromRule = rule
	if rule.Scope != nil {
		t.Scope = rule.Scope
	}
	if rule.SourceSuffix != "" {
		dep := g.target(stem + rule.SourceSuffix)
		t.Edges = append(t.Edges, g.arena.new(t, dep))
	}
}

// isStale reports whether t's own file is missing or older than its
// prerequisites. Tasks are always stale; a leaf target with no rule and no
// prerequisites is stale only if the file doesn't exist, and it's an error
// if it doesn't.
func (r *resolver) isStale(t *Target) (bool, error) {
	if t.IsTask {
		return true, nil
	}
	info, err := os.Stat(t.Name)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, resourceError("stat %s: %v", t.Name, err)
		}
		if !t.hasExplicitRecipe && t.FromRule == nil && len(t.Edges) == 0 {
			return false, semanticError("", 0, "no rule to make target %q", t.Name)
		}
		return true, nil
	}
	for _, e := range t.Edges {
		if e.Dep.IsTask {
			return true, nil
		}
		depInfo, err := os.Stat(e.Dep.Name)
		if err != nil {
			continue // the dependency's own staleness was already resolved in the recursive visit
		}
		if depInfo.ModTime().After(info.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}

func cycleError(chain []*Target, closing *Target) error {
	var names []string
	start := 0
	for i, t := range chain {
		if t == closing {
			start = i
			break
		}
	}
	for _, t := range chain[start:] {
		names = append(names, t.Name)
	}
	names = append(names, closing.Name)
	return semanticError("", 0, "dependency cycle: %s", strings.Join(names, " -> "))
}
