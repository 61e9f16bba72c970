// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yori-build/ymake"
)

func defaultJobs() int {
	if v := os.Getenv("YMAKE_JOB_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU() + 1
}

func defaultMakefile() string {
	for _, name := range []string{"makefile", "Makefile", "YMkFile"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return "Makefile"
}

func main() {
	var (
		file      = flag.String("f", defaultMakefile(), "makefile to read")
		jobs      = flag.Int("j", defaultJobs(), "number of recipes to run in parallel")
		keepGoing = flag.Bool("k", false, "keep going after a recipe fails")
		silent    = flag.Bool("s", false, "don't echo recipe lines before running them")
		merge     = flag.Bool("m", false, "accepted for compatibility; no effect")
		mergeAll  = flag.Bool("mm", false, "accepted for compatibility; no effect")
		perf      = flag.Bool("perf", false, "print phase timing on completion")
		pru       = flag.Bool("pru", false, "enable the persistent preprocessor cache")
	)
	flag.Parse()
	_, _ = merge, mergeAll // job-object/process-group plumbing is out of scope; flags are accepted and ignored

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err := run(ctx, *file, *jobs, *keepGoing, *silent, *pru, flag.Args())
	if *perf {
		fmt.Fprintf(os.Stderr, "ymake: %s in %s\n", *file, time.Since(start))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ymake: %s\n", err)
		var buildErr *ymake.BuildError
		if errors.As(err, &buildErr) && buildErr.Kind == ymake.KindCancelled {
			os.Exit(130) // conventional exit code for a SIGINT-terminated build
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, file string, jobs int, keepGoing, silent, persistCache bool, args []string) error {
	vars := map[string]string{}
	var targets []string
	for _, arg := range args {
		if arg == "--" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok && isAssignment(name) {
			vars[name] = value
			continue
		}
		targets = append(targets, arg)
	}

	e := ymake.NewEngine(ymake.Options{
		Jobs:         jobs,
		KeepGoing:    keepGoing,
		Silent:       silent,
		Vars:         vars,
		PersistCache: persistCache,
	})
	if err := e.LoadMakefile(file); err != nil {
		return err
	}
	return e.Build(ctx, targets)
}

// isAssignment reports whether name matches the "NAME=VALUE" override
// syntax [A-Za-z_][A-Za-z0-9_]*, as opposed to a target name that happens
// to contain an '=' elsewhere.
func isAssignment(name string) bool {
	isStart := func(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' }
	isCont := func(c byte) bool { return isStart(c) || c >= '0' && c <= '9' }
	if name == "" || !isStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isCont(name[i]) {
			return false
		}
	}
	return true
}
