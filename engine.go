// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Options configures an Engine. Command-line parsing itself lives in
// cmd/ymake, not here — Options is the boundary between that thin CLI
// layer and the build core.
type Options struct {
	Jobs      int
	KeepGoing bool
	Silent    bool
	Vars      map[string]string

	// PersistCache controls whether the preprocessor cache is written back
	// when Build finishes. A cache file already present is always loaded
	// and consulted; this only gates the write-back, which the CLI's "-pru"
	// flag turns on.
	PersistCache bool

	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o Options) stderr() io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return os.Stderr
}

// Engine ties the preprocessor, target graph, resolver, and scheduler
// together into the single entry point cmd/ymake drives.
type Engine struct {
	opts    Options
	graph   *Graph
	ppcache *PreprocessorCache
	scopes  map[string]*Scope
	root    *Scope
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		opts:   opts,
		graph:  NewGraph(),
		scopes: make(map[string]*Scope),
	}
}

// LoadMakefile preprocesses path, populating the Engine's target graph.
// It must be called exactly once before Build.
func (e *Engine) LoadMakefile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return resourceError("resolve path %s: %v", path, err)
	}
	dir := filepath.Dir(abs)

	root := NewRootScope(dir)
	root.SeedEnv()
	for k, v := range e.opts.Vars {
		root.Set(k, v, PrecCommandLine)
	}
	e.root = root
	e.scopes[dir] = root
	e.ppcache = LoadPreprocessorCache(abs)

	if err := e.processFile(abs, root); err != nil {
		return err
	}
	e.graph.Finalize()
	return nil
}

func (e *Engine) processFile(path string, scope *Scope) error {
	f, err := os.Open(path)
	if err != nil {
		return resourceError("open %s: %v", path, err)
	}
	defer f.Close()

	lines, err := readLogicalLines(f)
	if err != nil {
		return resourceError("read %s: %v", path, err)
	}
	p := newPreprocessor(e, scope, path, lines)
	if err := p.run(); err != nil {
		return err
	}
	if raw, ok := p.peek(); ok {
		// run only stops early at a conditional terminator with no open !if.
		return p.handleDirective(strings.TrimSpace(raw), p.pos+1)
	}
	return nil
}

// processInclude handles both include forms. A plain "!include PATH"
// continues processing PATH's content directly into scope, as if its text
// had been spliced in place. "!include PATH as ALIAS" processes PATH in
// its own scope (cached by directory, so re-including the same directory
// reuses one scope tree) and re-exports its makefile-level variables into
// scope under "ALIAS.name".
func (e *Engine) processInclude(scope *Scope, mkPath string, inc Include) error {
	dir := filepath.Dir(mkPath)
	incPath := inc.Path
	if !filepath.IsAbs(incPath) {
		incPath = filepath.Join(dir, incPath)
	}
	incPath = filepath.Clean(incPath)

	if inc.Alias == "" {
		return e.processFile(incPath, scope)
	}

	childDir := filepath.Dir(incPath)
	child, ok := e.scopes[childDir]
	if !ok {
		child = NewChildScope(scope, childDir)
		e.scopes[childDir] = child
	}
	if err := e.processFile(incPath, child); err != nil {
		return err
	}
	exportAlias(scope, child, inc.Alias)
	return nil
}

func exportAlias(parent, child *Scope, alias string) {
	for name, v := range child.vars {
		if v.undefined {
			continue
		}
		parent.Set(alias+"."+name, v.value, PrecMakefile)
	}
}

// Build resolves and runs targets (or the graph's default target, if none
// are named) to completion.
func (e *Engine) Build(ctx context.Context, targets []string) error {
	if len(targets) == 0 {
		if e.graph.FirstTarget == "" {
			return semanticError("", 0, "no targets and no makefile rules found")
		}
		targets = []string{e.graph.FirstTarget}
	}

	plan, err := Resolve(e.graph, e.root, targets)
	if err != nil {
		return err
	}
	buildErr := NewScheduler(e, plan).Run(ctx)
	var flushErr error
	if e.opts.PersistCache {
		flushErr = e.ppcache.Flush()
	}
	if buildErr != nil {
		return buildErr
	}
	return flushErr
}
