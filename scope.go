// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"os"
	"path/filepath"
)

// Precedence orders where a variable's value came from. A lower-precedence
// write never overrides a higher-precedence one already recorded for the
// same name in the same scope.
type Precedence int

const (
	PrecPredefined Precedence = iota
	PrecMakefile
	PrecEnvironment
	PrecCommandLine
)

type variable struct {
	value      string
	undefined  bool
	precedence Precedence
}

// Scope is a directory-aligned container of variables and inference rules.
// Scopes form a tree via Parent and are cached by the Engine keyed on
// canonical directory path, so re-entering a directory finds the same
// Scope rather than creating a duplicate.
type Scope struct {
	Dir    string
	Parent *Scope

	vars  map[string]*variable
	rules []*InferenceRule
}

// NewRootScope creates the root scope for directory dir with no parent.
func NewRootScope(dir string) *Scope {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &Scope{
		Dir:  abs,
		vars: make(map[string]*variable),
	}
}

// NewChildScope creates a scope for a subdirectory, linked to parent for
// variable lookup but carrying its own local variable map and rule list.
func NewChildScope(parent *Scope, dir string) *Scope {
	return &Scope{
		Dir:    dir,
		Parent: parent,
		vars:   make(map[string]*variable),
	}
}

// SeedEnv populates the scope with the process environment at
// PrecEnvironment, above makefile assignments and below command-line values.
func (s *Scope) SeedEnv() {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				s.Set(kv[:i], kv[i+1:], PrecEnvironment)
				break
			}
		}
	}
}

// SetPredefined sets a built-in default, overridable by anything.
func (s *Scope) SetPredefined(name, value string) {
	s.Set(name, value, PrecPredefined)
}

// Set assigns name=value in this scope at the given precedence. A write at
// precedence P only takes effect if no existing record at this scope has
// precedence > P.
func (s *Scope) Set(name, value string, prec Precedence) {
	if existing, ok := s.vars[name]; ok && existing.precedence > prec {
		return
	}
	s.vars[name] = &variable{value: value, precedence: prec}
}

// Undef marks name undefined in this scope without discarding its
// precedence record, so a later Set at this scope still respects it.
func (s *Scope) Undef(name string) {
	if v, ok := s.vars[name]; ok {
		v.undefined = true
		return
	}
	s.vars[name] = &variable{undefined: true}
}

// Lookup walks from this scope toward the root, returning the first
// scope holding a live (non-undefined) definition of name.
func (s *Scope) Lookup(name string) (string, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if v, ok := sc.vars[name]; ok {
			if v.undefined {
				continue
			}
			return v.value, true
		}
	}
	return "", false
}

// Get returns the value of name, or "" if undefined anywhere in the chain.
func (s *Scope) Get(name string) string {
	v, _ := s.Lookup(name)
	return v
}

// IsDefined reports whether defined(name) should be true: a live value
// exists somewhere in the scope chain.
func (s *Scope) IsDefined(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// AddRule registers an inference rule owned by this scope.
func (s *Scope) AddRule(r *InferenceRule) {
	s.rules = append(s.rules, r)
}

// Rules returns this scope's own inference rules, declaration order.
func (s *Scope) Rules() []*InferenceRule { return s.rules }
