// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"path/filepath"
)

// Edge is one prerequisite link: Dep must be built (or found to be
// up-to-date) before Owner can be considered current.
type Edge struct {
	Owner *Target
	Dep   *Target
	Stale bool // populated by Resolve: whether Dep turned out to need rebuilding
}

// edgeArena bump-allocates Edge values in slabs so building a large target
// graph doesn't scatter one *Edge allocation per dependency across the
// heap. Edges are never freed individually — the whole arena is dropped
// with the Graph.
type edgeArena struct {
	slabs [][]Edge
}

const edgeSlabSize = 256

func (a *edgeArena) new(owner, dep *Target) *Edge {
	if len(a.slabs) == 0 || len(a.slabs[len(a.slabs)-1]) == cap(a.slabs[len(a.slabs)-1]) {
		a.slabs = append(a.slabs, make([]Edge, 0, edgeSlabSize))
	}
	slab := a.slabs[len(a.slabs)-1]
	slab = slab[:len(slab)+1]
	e := &slab[len(slab)-1]
	a.slabs[len(a.slabs)-1] = slab
	e.Owner, e.Dep = owner, dep
	return e
}

// Target is one node of the dependency graph: a file or task name together
// with the rule that builds it (if any) and its resolved dependency edges.
type Target struct {
	Name   string
	IsTask bool

	Scope  *Scope // the scope active when the rule that builds this target was declared
	Recipe []string

	// Stem and FromRule record the inference-rule match that produced this
	// target's recipe, when it wasn't given one explicitly.
	Stem      string
	FromRule  *InferenceRule

	Edges []*Edge // outgoing: this target's prerequisites, populated by Finalize

	rawPrereqs []string // expanded prereq names awaiting resolution in Finalize

	hasExplicitRecipe bool
	declFile          string
	declLine          int

	// pendingDeps counts not-yet-finished prerequisites during a build; the
	// target is scheduler-ready once it reaches zero.
	pendingDeps int
}

// Graph is the full set of known targets plus the inference rules visible
// while resolving unbuilt ones. Construction only registers rules; it
// performs no file-system I/O and no dependency walking (that's
// resolve.go's job).
type Graph struct {
	targets   map[string]*Target
	taskNames map[string]bool // every name ever declared as a task ("!name:"), by its bare literal
	arena     edgeArena

	// FirstTarget is the canonical name of the first non-task target
	// declared, used as the default build target when none is named on
	// the command line.
	FirstTarget string
}

func NewGraph() *Graph {
	return &Graph{targets: make(map[string]*Target), taskNames: make(map[string]bool)}
}

// target returns the named target, creating an empty placeholder if this
// is the first reference to it (e.g. as a prerequisite of something else).
func (g *Graph) target(name string) *Target {
	if t, ok := g.targets[name]; ok {
		return t
	}
	t := &Target{Name: name}
	g.targets[name] = t
	return t
}

func (g *Graph) Lookup(name string) (*Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// AddRule registers an explicit "target: prereqs" rule, declared in scope
// and originating from file/line. It is a semantic error for any target,
// task or file, to receive a second recipe.
func (g *Graph) AddRule(scope *Scope, r Rule, file string) error {
	for _, name := range r.Targets {
		if r.IsTask {
			g.taskNames[name] = true
		}
		canon := canonicalTargetName(name, r.IsTask)
		if g.FirstTarget == "" && !r.IsTask {
			g.FirstTarget = canon
		}
		t := g.target(canon)
		t.IsTask = t.IsTask || r.IsTask
		if len(r.Recipe) > 0 {
			if t.hasExplicitRecipe {
				return semanticError(file, r.Line, "target %q already has a recipe (declared at %s:%d)", name, t.declFile, t.declLine)
			}
			t.Recipe = r.Recipe
			t.Scope = scope
			t.hasExplicitRecipe = true
			t.declFile = file
			t.declLine = r.Line
		} else if t.Scope == nil {
			t.Scope = scope
		}
		for _, pr := range r.Prereqs {
			if !containsString(t.rawPrereqs, pr) {
				t.rawPrereqs = append(t.rawPrereqs, pr)
			}
		}
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// Finalize resolves every target's raw prerequisite names into Edges, once
// the whole makefile (and any includes) has been preprocessed. Deferring
// this until here — rather than resolving prerequisites as each rule is
// seen — is what lets a prerequisite name forward-reference a task that's
// declared with "!" later in the same file: task-vs-file status for a bare
// name can only be known once every rule has been read.
func (g *Graph) Finalize() {
	for _, t := range g.targets {
		for _, raw := range t.rawPrereqs {
			var dep *Target
			if g.taskNames[raw] {
				dep = g.target(raw)
			} else {
				dep = g.target(canonicalTargetName(raw, false))
			}
			t.Edges = append(t.Edges, g.arena.new(t, dep))
		}
		t.rawPrereqs = nil
	}
}

// AddSuffixRule registers an inference rule in scope.
func (g *Graph) AddSuffixRule(scope *Scope, s SuffixRule) {
	scope.AddRule(&InferenceRule{
		SourceSuffix: s.SourceSuffix,
		TargetSuffix: s.TargetSuffix,
		Scope:        scope,
		Recipe:       s.Recipe,
	})
}

// canonicalTargetName normalizes a target/prerequisite name. Task names
// are left bare (they have no on-disk identity). File names are resolved
// to an absolute path against the process's working directory: a name's
// task-vs-file status is only known once the whole makefile has been
// read (see Finalize), so this never varies by declaring scope — that
// would make the same file resolve to different Targets depending on
// which scope mentioned it first.
func canonicalTargetName(name string, isTask bool) string {
	if isTask {
		return name
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return filepath.Clean(name)
	}
	return abs
}

// FindInferenceRule searches scope, then each ancestor in turn, for a
// suffix rule whose target suffix matches targetBase. Rules within a single
// scope are tried in declaration order and the first suffix match is
// returned; whether the rule's source candidate exists, as a file or as a
// target, is not checked.
func FindInferenceRule(scope *Scope, targetBase string) (*InferenceRule, string, bool) {
	for sc := scope; sc != nil; sc = sc.Parent {
		for _, r := range sc.Rules() {
			if stem, _, ok := r.Matches(targetBase); ok {
				return r, stem, true
			}
		}
	}
	return nil, "", false
}
