// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/shlex"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"
)

// Scheduler runs a Plan's targets to completion, dispatching up to Jobs
// recipes concurrently. It is a single cooperative goroutine that owns the
// Ready/Waiting/Finished bookkeeping; each in-flight recipe runs in its own
// throwaway goroutine whose only job is to execute the commands and report
// back on a channel, which stands in for a native multi-handle wait.
type Scheduler struct {
	engine *Engine
	plan   *Plan
	sem    *semaphore.Weighted
}

func NewScheduler(e *Engine, plan *Plan) *Scheduler {
	jobs := e.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU() + 1
	}
	return &Scheduler{engine: e, plan: plan, sem: semaphore.NewWeighted(int64(jobs))}
}

type taskResult struct {
	target *Target
	err    error
}

// Run dispatches the plan's Ready targets and, as each finishes, any
// parent whose last pending dependency just completed. With KeepGoing
// false, a failure stops new dispatches but lets already-running recipes
// finish; with KeepGoing true, everything not downstream of the failure
// still runs, and all failures are returned together.
func (s *Scheduler) Run(ctx context.Context) error {
	ready := append([]*Target(nil), s.plan.Ready...)
	results := make(chan taskResult)
	inFlight := 0
	var merr *multierror.Error
	failed := false
	cancelled := false

	dispatch := func() {
		for len(ready) > 0 {
			if failed && !s.engine.opts.KeepGoing {
				return
			}
			if err := ctx.Err(); err != nil {
				if !cancelled {
					cancelled = true
					merr = multierror.Append(merr, cancelledError(err))
				}
				return
			}
			if !s.sem.TryAcquire(1) {
				return
			}
			t := ready[0]
			ready = ready[1:]
			inFlight++
			go func(t *Target) {
				results <- taskResult{target: t, err: s.build(ctx, t)}
			}(t)
		}
	}

	dispatch()
	for inFlight > 0 {
		r := <-results
		inFlight--
		s.sem.Release(1)
		if r.err != nil {
			merr = multierror.Append(merr, r.err)
			failed = true
		} else {
			for _, parent := range s.plan.Parents[r.target] {
				parent.pendingDeps--
				if parent.pendingDeps == 0 {
					ready = append(ready, parent)
				}
			}
		}
		dispatch()
	}
	return merr.ErrorOrNil()
}

// build runs t's recipe lines in order, honoring the "@" (suppress echo)
// and "-" (tolerate failure) prefixes. A target with no recipe (a pure
// grouping node, or a task declared with no commands) completes as soon as
// its dependencies do.
func (s *Scheduler) build(ctx context.Context, t *Target) error {
	if len(t.Recipe) == 0 {
		return nil
	}
	rc := recipeContext(t)
	for _, raw := range t.Recipe {
		echo, tolerate, body := splitRecipePrefix(raw)
		line := ExpandRecipe(t.Scope, rc, body)
		if line == "" {
			continue
		}
		if echo && !s.engine.opts.Silent {
			fmt.Fprintln(s.engine.opts.stdout(), line)
		}
		if err := s.runLine(ctx, line); err != nil {
			if tolerate {
				continue
			}
			return commandError(t.Name, err)
		}
	}
	return nil
}

func splitRecipePrefix(line string) (echo, tolerate bool, body string) {
	echo = true
	for len(line) > 0 && (line[0] == '@' || line[0] == '-') {
		if line[0] == '@' {
			echo = false
		} else {
			tolerate = true
		}
		line = line[1:]
	}
	return echo, tolerate, line
}

func recipeContext(t *Target) RecipeContext {
	var all, changed []string
	for _, e := range t.Edges {
		all = append(all, e.Dep.Name)
		if e.Stale {
			changed = append(changed, e.Dep.Name)
		}
	}
	first := ""
	if len(t.Edges) > 0 {
		first = t.Edges[0].Dep.Name
	}
	return RecipeContext{
		Target:  t.Name,
		Stem:    t.Stem,
		All:     strings.Join(all, " "),
		Changed: strings.Join(changed, " "),
		First:   first,
	}
}

// runLine dispatches one already-expanded command line. Lines free of
// shell metacharacters whose first word is a program found on PATH skip
// the shell entirely via shlex, which avoids a fork+exec of /bin/sh for the
// common case of a plain compiler or tool invocation; anything else
// (including shell builtins such as "exit" or "cd") goes through "sh -c"
// for full shell semantics.
func (s *Scheduler) runLine(ctx context.Context, line string) error {
	var cmd *exec.Cmd
	if fields, ok := shellFreeSplit(line); ok {
		if _, err := exec.LookPath(fields[0]); err == nil {
			cmd = exec.CommandContext(ctx, fields[0], fields[1:]...)
		}
	}
	if cmd == nil {
		cmd = exec.CommandContext(ctx, "sh", "-c", line)
	}
	cmd.Stdout = s.engine.opts.stdout()
	cmd.Stderr = s.engine.opts.stderr()
	return cmd.Run()
}

const shellMetachars = "|&;<>(){}$`*?[]~\"'\\\n"

func shellFreeSplit(line string) ([]string, bool) {
	if strings.ContainsAny(line, shellMetachars) {
		return nil, false
	}
	fields, err := shlex.Split(line)
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	return fields, true
}
