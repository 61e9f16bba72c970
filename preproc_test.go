// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPreprocEngine(dir string) (*Engine, *bytes.Buffer) {
	var stderr bytes.Buffer
	e := NewEngine(Options{Jobs: 1, Stdout: discard{}, Stderr: &stderr})
	e.graph = NewGraph()
	e.ppcache = LoadPreprocessorCache(filepath.Join(dir, "build.mk"))
	return e, &stderr
}

func writeMakefile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPreprocessorAssignmentVisibleToLaterCondition(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `
X = 1
!if $(X) == 1
Y = yes
!endif
`)
	require.NoError(t, e.processFile(mk, scope))
	require.Equal(t, "yes", scope.Get("Y"))
}

func TestPreprocessorFalseBranchSkipsNestedConditional(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `
!if 0
!if 1
Z = bad
!endif
!endif
`)
	require.NoError(t, e.processFile(mk, scope))
	require.False(t, scope.IsDefined("Z"))
}

func TestPreprocessorElseifChain(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `
!if 0
A = first
!elseif 1
A = second
!else
A = third
!endif
`)
	require.NoError(t, e.processFile(mk, scope))
	require.Equal(t, "second", scope.Get("A"))
}

func TestPreprocessorElseBranchTaken(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `
!if 0
A = first
!elseif 0
A = second
!else
A = third
!endif
`)
	require.NoError(t, e.processFile(mk, scope))
	require.Equal(t, "third", scope.Get("A"))
}

func TestPreprocessorIfdefIfndef(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)
	scope.Set("DEFINED_VAR", "1", PrecMakefile)

	mk := writeMakefile(t, dir, "build.mk", `
!ifdef DEFINED_VAR
A = yes
!endif
!ifndef MISSING_VAR
B = yes
!endif
!ifdef MISSING_VAR
C = bad
!endif
`)
	require.NoError(t, e.processFile(mk, scope))
	require.Equal(t, "yes", scope.Get("A"))
	require.Equal(t, "yes", scope.Get("B"))
	require.False(t, scope.IsDefined("C"))
}

func TestPreprocessorUndefRetainsPrecedenceRecord(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)
	scope.Set("X", "cli-value", PrecCommandLine)

	mk := writeMakefile(t, dir, "build.mk", `
!undef X
X = makefile-value
`)
	require.NoError(t, e.processFile(mk, scope))
	// The command-line precedence record survives !undef, so a later
	// makefile-level assignment still cannot override it: X stays undefined.
	require.Equal(t, "", scope.Get("X"))
}

func TestPreprocessorErrorDirectiveAborts(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `!error something went wrong`)
	err := e.processFile(mk, scope)
	require.Error(t, err)
	require.Contains(t, err.Error(), "something went wrong")
}

func TestPreprocessorMessageWritesToStderr(t *testing.T) {
	dir := t.TempDir()
	e, stderr := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `!message hello there`)
	require.NoError(t, e.processFile(mk, scope))
	require.Contains(t, stderr.String(), "hello there")
}

func TestPreprocessorPlainIncludeSplicesIntoCurrentScope(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)
	e.scopes[dir] = scope

	writeMakefile(t, dir, "common.mk", `SHARED = 1`)
	mk := writeMakefile(t, dir, "build.mk", `!include common.mk`)

	require.NoError(t, e.processFile(mk, scope))
	require.Equal(t, "1", scope.Get("SHARED"))
}

func TestPreprocessorIncludeAsAliasExportsPrefixedVars(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)
	e.scopes[dir] = scope

	writeMakefile(t, sub, "lib.mk", `VERSION = 2`)
	mk := writeMakefile(t, dir, "build.mk", `!include sub/lib.mk as LIB`)

	require.NoError(t, e.processFile(mk, scope))
	require.Equal(t, "2", scope.Get("LIB.VERSION"))
}

func TestPreprocessorRuleRegistersTargetWithExpandedPrereqs(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	outPath := filepath.Join(dir, "all")
	scope.Set("OUT", outPath, PrecMakefile)
	mk := writeMakefile(t, dir, "build.mk", `
DEP = clean
$(OUT): $(DEP)
	echo building

!clean:
	rm -rf out
`)
	require.NoError(t, e.processFile(mk, scope))
	e.graph.Finalize()

	all, ok := e.graph.Lookup(filepath.Join(dir, "all"))
	require.True(t, ok)
	require.Len(t, all.Edges, 1)
	clean, ok := e.graph.Lookup("clean")
	require.True(t, ok)
	require.Same(t, clean, all.Edges[0].Dep)
}

func TestPreprocessorUnterminatedIfIsError(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `
!if 1
A = 1
`)
	err := e.processFile(mk, scope)
	require.Error(t, err)
}

func TestPreprocessorElseWithoutIfIsError(t *testing.T) {
	dir := t.TempDir()
	e, _ := newTestPreprocEngine(dir)
	scope := NewRootScope(dir)

	mk := writeMakefile(t, dir, "build.mk", `!else`)
	err := e.processFile(mk, scope)
	require.Error(t, err)
}
