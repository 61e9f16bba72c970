// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"fmt"
	"strings"
)

// parseRuleOrSuffixRule classifies and parses a rule-header line (already
// known to contain an unquoted ':'), producing either a Rule or a
// SuffixRule, and consumes its recipe body from lines starting at *pos.
func parseRuleOrSuffixRule(lines []string, pos *int, trimmed string, lineNum int) (Node, error) {
	isTask := false
	header := trimmed
	if strings.HasPrefix(header, "!") {
		isTask = true
		header = header[1:]
	}

	colonIdx := indexUnquoted(header, ':')
	if colonIdx < 0 {
		return nil, fmt.Errorf("line %d: expected ':' in rule: %s", lineNum, trimmed)
	}
	targetStr := strings.TrimSpace(header[:colonIdx])
	prereqStr := strings.TrimSpace(header[colonIdx+1:])

	if !isTask {
		if src, tgt, ok := parseSuffixHeader(targetStr); ok && prereqStr == "" {
			recipe := parseRecipe(lines, pos)
			return SuffixRule{SourceSuffix: src, TargetSuffix: tgt, Recipe: recipe, Line: lineNum}, nil
		}
	}

	if targetStr == "" {
		return nil, fmt.Errorf("line %d: rule has no target", lineNum)
	}
	targets := strings.Fields(targetStr)
	var prereqs []string
	if prereqStr != "" {
		prereqs = strings.Fields(prereqStr)
	}
	recipe := parseRecipe(lines, pos)
	return Rule{Targets: targets, Prereqs: prereqs, Recipe: recipe, IsTask: isTask, Line: lineNum}, nil
}

// parseRecipe consumes consecutive indented lines starting at *pos as a
// recipe body, stopping at the first blank or unindented line. The
// indentation of the first recipe line is stripped from every line.
func parseRecipe(lines []string, pos *int) []string {
	var out []string
	indent := ""
	for *pos < len(lines) {
		raw := lines[*pos]
		if strings.TrimSpace(raw) == "" {
			break
		}
		if raw[0] != ' ' && raw[0] != '\t' {
			break
		}
		*pos++
		if indent == "" {
			indent = raw[:len(raw)-len(strings.TrimLeft(raw, " \t"))]
		}
		out = append(out, strings.TrimPrefix(raw, indent))
	}
	return out
}

func indexUnquoted(s string, r byte) int {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == r:
			return i
		}
	}
	return -1
}

func parseAssignLine(trimmed string, lineNum int) (name string, op AssignOp, value string, err error) {
	if idx := strings.Index(trimmed, "?="); idx >= 0 && !hasColonBefore(trimmed, idx) {
		return validateName(strings.TrimSpace(trimmed[:idx]), lineNum, OpCondSet, strings.TrimSpace(trimmed[idx+2:]))
	}
	if idx := strings.Index(trimmed, "+="); idx >= 0 && !hasColonBefore(trimmed, idx) {
		return validateName(strings.TrimSpace(trimmed[:idx]), lineNum, OpAppend, strings.TrimSpace(trimmed[idx+2:]))
	}
	idx := indexUnquoted(trimmed, '=')
	if idx < 0 {
		return "", 0, "", fmt.Errorf("line %d: malformed assignment: %s", lineNum, trimmed)
	}
	return validateName(strings.TrimSpace(trimmed[:idx]), lineNum, OpSet, strings.TrimSpace(trimmed[idx+1:]))
}

// hasColonBefore guards against "target:=value"-style rule/assignment
// ambiguity by rejecting an operator whose left-hand side contains an
// unquoted colon (that line is a rule, not an assignment).
func hasColonBefore(s string, idx int) bool {
	return indexUnquoted(s[:idx], ':') >= 0
}

func validateName(name string, lineNum int, op AssignOp, value string) (string, AssignOp, string, error) {
	if !isValidVarName(name) {
		return "", 0, "", fmt.Errorf("line %d: invalid variable name: %q", lineNum, name)
	}
	return name, op, value, nil
}

func isValidVarName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if i == 0 && !isVarNameStart(c) {
			return false
		}
		if i > 0 && !isVarNameCont(c) {
			return false
		}
	}
	return true
}

func parseIncludeDirective(trimmed string, lineNum int) (Include, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "!include"))
	if rest == "" {
		return Include{}, fmt.Errorf("line %d: !include requires a path", lineNum)
	}
	parts := strings.Fields(rest)
	inc := Include{Path: parts[0], Line: lineNum}
	if len(parts) >= 3 && parts[1] == "as" {
		inc.Alias = parts[2]
	}
	return inc, nil
}
