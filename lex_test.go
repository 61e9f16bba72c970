// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"strings"
	"testing"
)

func TestReadLogicalLinesJoinsBackslashContinuation(t *testing.T) {
	lines, err := readLogicalLines(strings.NewReader("all: a.o \\\n    b.o\nnext line\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %#v", len(lines), lines)
	}
	if lines[0] != "all: a.o     b.o" {
		t.Errorf("joined line = %q", lines[0])
	}
	if lines[1] != "next line" {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestReadLogicalLinesTrailingEscapedBackslashIsLiteral(t *testing.T) {
	lines, err := readLogicalLines(strings.NewReader(`path\\` + "\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != `path\\` {
		t.Errorf("got %#v, want one unjoined line ending in a literal backslash pair", lines)
	}
}

func TestStripCommentOutsideQuotes(t *testing.T) {
	got := stripComment(`FOO = bar # a comment`)
	if got != "FOO = bar " {
		t.Errorf("stripComment = %q", got)
	}
}

func TestStripCommentIgnoresHashInsideQuotes(t *testing.T) {
	got := stripComment(`FOO = "a # b"`)
	if got != `FOO = "a # b"` {
		t.Errorf("stripComment stripped inside a quoted string: %q", got)
	}
}

func TestClassifyDirective(t *testing.T) {
	if classify("!if 1") != kindDirective {
		t.Error("expected kindDirective")
	}
}

func TestClassifyRuleOverAssignWhenColonPrecedes(t *testing.T) {
	if classify("out: FLAG=1") != kindRule {
		t.Error("expected kindRule")
	}
}

func TestClassifyAssign(t *testing.T) {
	if classify("X = 1") != kindAssign {
		t.Error("expected kindAssign")
	}
}

func TestClassifyBareTargetWithNoColonIsRule(t *testing.T) {
	if classify("allofthem") != kindRule {
		t.Error("expected a bare name with no colon or '=' to classify as kindRule")
	}
}

func TestHasUnquotedRuneSkipsQuotedRegions(t *testing.T) {
	if hasUnquotedRune(`"a:b"`, ':') {
		t.Error("colon inside quotes should not count")
	}
	if !hasUnquotedRune(`a:b`, ':') {
		t.Error("bare colon should count")
	}
}
