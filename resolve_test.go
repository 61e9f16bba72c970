// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, when time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// buildGraph wires up a.o <- a.c and all <- a.o entirely through real
// files in dir.
func buildGraph(t *testing.T, dir string) (*Graph, *Scope) {
	t.Helper()
	scope := NewRootScope(dir)
	g := NewGraph()

	if err := g.AddRule(scope, Rule{
		Targets: []string{"all"}, Prereqs: []string{filepath.Join(dir, "a.o")}, IsTask: true,
		Recipe: []string{"echo link"},
	}, "test.mk"); err != nil {
		t.Fatalf("AddRule(all): %v", err)
	}
	if err := g.AddRule(scope, Rule{
		Targets: []string{filepath.Join(dir, "a.o")}, Prereqs: []string{filepath.Join(dir, "a.c")},
		Recipe: []string{"echo cc a"},
	}, "test.mk"); err != nil {
		t.Fatalf("AddRule(a.o): %v", err)
	}
	g.Finalize()
	return g, scope
}

func TestResolveRebuildsWhenSourceNewer(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	touch(t, filepath.Join(dir, "a.c"), base)
	touch(t, filepath.Join(dir, "a.o"), base.Add(time.Minute)) // newer than a.c: up to date

	g, scope := buildGraph(t, dir)
	plan, err := Resolve(g, scope, []string{"all"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	aO, _ := g.Lookup(filepath.Join(dir, "a.o"))
	if plan.Targets[aO] {
		t.Error("a.o should be up to date, not in plan")
	}

	// Now make a.c newer than a.o: a.o (and all, a task) must be in plan.
	touch(t, filepath.Join(dir, "a.c"), base.Add(2*time.Minute))
	plan2, err := Resolve(g, scope, []string{"all"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !plan2.Targets[aO] {
		t.Error("a.o should be stale after touching a.c")
	}
}

func TestResolveCycleDetected(t *testing.T) {
	dir := t.TempDir()
	scope := NewRootScope(dir)
	g := NewGraph()
	if err := g.AddRule(scope, Rule{Targets: []string{"a"}, Prereqs: []string{"b"}, IsTask: true}, "test.mk"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddRule(scope, Rule{Targets: []string{"b"}, Prereqs: []string{"a"}, IsTask: true}, "test.mk"); err != nil {
		t.Fatal(err)
	}
	g.Finalize()
	_, err := Resolve(g, scope, []string{"a"})
	if err == nil {
		t.Fatal("expected a cycle error, got nil")
	}
}

func TestResolveMissingSourceIsError(t *testing.T) {
	dir := t.TempDir()
	scope := NewRootScope(dir)
	g := NewGraph()
	if err := g.AddRule(scope, Rule{
		Targets: []string{filepath.Join(dir, "out")}, Prereqs: []string{filepath.Join(dir, "missing.c")},
		Recipe: []string{"echo build"},
	}, "test.mk"); err != nil {
		t.Fatal(err)
	}
	g.Finalize()
	_, err := Resolve(g, scope, []string{filepath.Join(dir, "out")})
	if err == nil {
		t.Fatal("expected an error for a missing leaf source with no rule")
	}
}

// A target with a declared dependency edge but no explicit recipe (e.g.
// "foo.o: extra.h" relying on a ".c.o:" suffix rule for its commands) must
// still be inference-matched, not left with an empty recipe.
func TestResolveAppliesInferenceRuleDespiteDeclaredEdge(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	touch(t, filepath.Join(dir, "foo.c"), base)
	touch(t, filepath.Join(dir, "extra.h"), base)

	scope := NewRootScope(dir)
	scope.AddRule(&InferenceRule{SourceSuffix: ".c", TargetSuffix: ".o", Scope: scope, Recipe: []string{"echo cc $<"}})

	g := NewGraph()
	if err := g.AddRule(scope, Rule{
		Targets: []string{filepath.Join(dir, "foo.o")}, Prereqs: []string{filepath.Join(dir, "extra.h")},
	}, "test.mk"); err != nil {
		t.Fatal(err)
	}
	g.Finalize()

	if _, err := Resolve(g, scope, []string{filepath.Join(dir, "foo.o")}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	fooO, _ := g.Lookup(filepath.Join(dir, "foo.o"))
	if len(fooO.Recipe) == 0 {
		t.Error("foo.o should have acquired a recipe from the suffix rule despite its declared extra.h edge")
	}
}

func TestResolveDuplicateRecipeIsError(t *testing.T) {
	dir := t.TempDir()
	scope := NewRootScope(dir)
	g := NewGraph()
	if err := g.AddRule(scope, Rule{Targets: []string{"x"}, IsTask: true, Recipe: []string{"echo 1"}}, "test.mk"); err != nil {
		t.Fatal(err)
	}
	err := g.AddRule(scope, Rule{Targets: []string{"x"}, IsTask: true, Recipe: []string{"echo 2"}}, "test.mk")
	if err == nil {
		t.Fatal("expected a duplicate-recipe error")
	}
}
