// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

// cacheEntry is one memoized backtick-command result.
type cacheEntry struct {
	Output      string `json:"output"`
	ExitCode    int    `json:"exit_code"`
	ToolModTime int64  `json:"tool_mod_time"`
}

// PreprocessorCache memoizes backtick-command invocations made while
// evaluating !if/!elseif conditions, keyed on the makefile that invoked
// them plus the literal command string. It is functionally separate from
// build-staleness tracking: it never consults or stores target mtimes,
// only the mtime of the invoked tool itself.
type PreprocessorCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]cacheEntry
	dirty   bool
}

// LoadPreprocessorCache opens the cache file next to mkPath, tolerating a
// missing or corrupt file by starting from an empty cache.
func LoadPreprocessorCache(mkPath string) *PreprocessorCache {
	c := &PreprocessorCache{path: mkPath + ".ppcache.json", entries: make(map[string]cacheEntry)}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return c
	}
	var m map[string]cacheEntry
	if err := json.Unmarshal(data, &m); err == nil {
		c.entries = m
	}
	return c
}

// Run executes cmd under a shell, or returns the memoized result if the
// invoked tool's mtime hasn't changed since the entry was recorded.
func (c *PreprocessorCache) Run(mkPath, cmd string) (string, int, error) {
	mtime := toolModTime(cmd)
	key := mkPath + "\x00" + cmd

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.ToolModTime == mtime {
		c.mu.Unlock()
		return e.Output, e.ExitCode, nil
	}
	c.mu.Unlock()

	out, code, err := runCapture(cmd)
	if err != nil {
		return out, code, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{Output: out, ExitCode: code, ToolModTime: mtime}
	c.dirty = true
	c.mu.Unlock()
	return out, code, nil
}

// Flush persists the cache if it has unwritten changes, via an atomic
// rename so a crash mid-write never leaves a truncated cache file.
func (c *PreprocessorCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(c.path, data, 0o644); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func toolModTime(cmd string) int64 {
	tool := firstToken(cmd)
	if tool == "" {
		return 0
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.ModTime().UnixNano()
}

func firstToken(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		return cmd[:i]
	}
	return cmd
}

// runCapture runs cmd under "sh -c", capturing its stdout (stderr passes
// through to the process's own stderr), and returns its exit code rather
// than treating a nonzero exit as a Go error.
func runCapture(cmd string) (string, int, error) {
	c := exec.Command("sh", "-c", cmd)
	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = os.Stderr
	err := c.Run()
	if err == nil {
		return buf.String(), 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return buf.String(), exitErr.ExitCode(), nil
	}
	return buf.String(), -1, err
}
