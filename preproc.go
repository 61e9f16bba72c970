// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import (
	"fmt"
	"strings"
)

// Preprocessor drives a single makefile through a line-oriented state
// machine: directives, conditionals, assignments, and rules are all
// handled in one left-to-right pass, with
// !if/!elseif conditions evaluated against the live scope as they're
// reached rather than against a separately-built syntax tree. This is
// what lets a variable defined earlier in the same pass affect a later
// conditional, and what lets an unselected branch's lines be skipped
// outright instead of parsed and discarded.
type Preprocessor struct {
	engine *Engine
	scope  *Scope
	mkPath string
	lines  []string
	pos    int
}

func newPreprocessor(e *Engine, scope *Scope, mkPath string, lines []string) *Preprocessor {
	return &Preprocessor{engine: e, scope: scope, mkPath: mkPath, lines: lines}
}

func (p *Preprocessor) peek() (string, bool) {
	if p.pos >= len(p.lines) {
		return "", false
	}
	return p.lines[p.pos], true
}

// run processes statements until EOF or an unconsumed conditional
// terminator (!else, !elseif, !endif) belonging to an enclosing !if that a
// caller further up the call stack is handling.
func (p *Preprocessor) run() error {
	for {
		raw, ok := p.peek()
		if !ok {
			return nil
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			p.pos++
			continue
		}
		if isCondTerminator(trimmed) {
			return nil
		}

		lineNum := p.pos + 1
		switch classify(trimmed) {
		case kindDirective:
			if err := p.handleDirective(trimmed, lineNum); err != nil {
				return err
			}
		case kindAssign:
			p.pos++
			name, op, value, err := parseAssignLine(trimmed, lineNum)
			if err != nil {
				return syntaxError(p.mkPath, lineNum, "%v", err)
			}
			p.applyAssign(name, op, p.scope.Expand(value))
		default:
			node, err := parseRuleOrSuffixRule(p.lines, &p.pos, trimmed, lineNum)
			if err != nil {
				return syntaxError(p.mkPath, lineNum, "%v", err)
			}
			if err := p.emit(node); err != nil {
				return err
			}
		}
	}
}

func isCondTerminator(trimmed string) bool {
	return trimmed == "!else" || trimmed == "!endif" || strings.HasPrefix(trimmed, "!elseif ") || strings.HasPrefix(trimmed, "!elseif\t")
}

func (p *Preprocessor) applyAssign(name string, op AssignOp, value string) {
	switch op {
	case OpSet:
		p.scope.Set(name, value, PrecMakefile)
	case OpAppend:
		cur := p.scope.Get(name)
		if cur != "" {
			cur += " "
		}
		p.scope.Set(name, cur+value, PrecMakefile)
	case OpCondSet:
		if !p.scope.IsDefined(name) {
			p.scope.Set(name, value, PrecMakefile)
		}
	}
}

func (p *Preprocessor) emit(node Node) error {
	switch n := node.(type) {
	case Rule:
		expanded := Rule{IsTask: n.IsTask, Recipe: n.Recipe, Line: n.Line}
		for _, t := range n.Targets {
			expanded.Targets = append(expanded.Targets, p.scope.Expand(t))
		}
		for _, pr := range n.Prereqs {
			expanded.Prereqs = append(expanded.Prereqs, p.scope.Expand(pr))
		}
		return p.engine.graph.AddRule(p.scope, expanded, p.mkPath)
	case SuffixRule:
		p.engine.graph.AddSuffixRule(p.scope, n)
		return nil
	default:
		return semanticError(p.mkPath, node.line(), "internal: unexpected node %T", node)
	}
}

func (p *Preprocessor) handleDirective(trimmed string, lineNum int) error {
	switch {
	case matchDirective(trimmed, "!include"):
		p.pos++
		inc, err := parseIncludeDirective(trimmed, lineNum)
		if err != nil {
			return syntaxError(p.mkPath, lineNum, "%v", err)
		}
		return p.engine.processInclude(p.scope, p.mkPath, inc)

	case matchDirective(trimmed, "!if"):
		rest := strings.TrimSpace(trimmed[len("!if"):])
		expr, err := ParseCondExpr(p.scope.Expand(rest), p.scope)
		if err != nil {
			return syntaxError(p.mkPath, lineNum, "%v", err)
		}
		return p.handleConditional(expr)

	case matchDirective(trimmed, "!ifdef"):
		name := strings.TrimSpace(trimmed[len("!ifdef"):])
		return p.handleConditional(definedExpr{name: name})

	case matchDirective(trimmed, "!ifndef"):
		name := strings.TrimSpace(trimmed[len("!ifndef"):])
		return p.handleConditional(notExpr{x: definedExpr{name: name}})

	case trimmed == "!else", strings.HasPrefix(trimmed, "!elseif"):
		return syntaxError(p.mkPath, lineNum, "%s without matching !if", strings.Fields(trimmed)[0])
	case trimmed == "!endif":
		return syntaxError(p.mkPath, lineNum, "!endif without matching !if")

	case matchDirective(trimmed, "!error"):
		msg := strings.TrimSpace(trimmed[len("!error"):])
		return semanticError(p.mkPath, lineNum, "%s", p.scope.Expand(msg))

	case matchDirective(trimmed, "!message"):
		p.pos++
		msg := strings.TrimSpace(trimmed[len("!message"):])
		fmt.Fprintln(p.engine.opts.stderr(), p.scope.Expand(msg))
		return nil

	case matchDirective(trimmed, "!undef"):
		p.pos++
		name := strings.TrimSpace(trimmed[len("!undef"):])
		p.scope.Undef(name)
		return nil
	}
	return syntaxError(p.mkPath, lineNum, "unrecognized directive: %s", trimmed)
}

func matchDirective(trimmed, name string) bool {
	return trimmed == name || strings.HasPrefix(trimmed, name+" ") || strings.HasPrefix(trimmed, name+"\t")
}

// handleConditional consumes the opening "!if ..." line (already identified
// by the caller, not yet consumed) and runs exactly one branch's body.
func (p *Preprocessor) handleConditional(first Expr) error {
	p.pos++
	matched, err := EvalBool(first, p.scope, p.engine.ppcache, p.mkPath)
	if err != nil {
		return err
	}
	if matched {
		if err := p.run(); err != nil {
			return err
		}
		return p.skipRemainingBranches()
	}
	return p.tryNextBranch()
}

// tryNextBranch scans forward, at the current conditional's nesting depth,
// past the untaken body that precedes the cursor (which may itself contain
// whole nested !if/!endif blocks) until it reaches this conditional's next
// !elseif, !else, or !endif.
func (p *Preprocessor) tryNextBranch() error {
	kind, expr, lineNum, err := p.scanToBranch()
	if err != nil {
		return err
	}
	switch kind {
	case "endif":
		return nil
	case "else":
		if err := p.run(); err != nil {
			return err
		}
		return p.expectEndif()
	case "elseif":
		matched, err := EvalBool(expr, p.scope, p.engine.ppcache, p.mkPath)
		if err != nil {
			return syntaxError(p.mkPath, lineNum, "%v", err)
		}
		if matched {
			if err := p.run(); err != nil {
				return err
			}
			return p.skipRemainingBranches()
		}
		return p.tryNextBranch()
	}
	return nil
}

// scanToBranch skips lines (tracking nested conditional depth) until it
// finds, at depth 0, an !elseif/!else/!endif and consumes that line.
func (p *Preprocessor) scanToBranch() (kind string, expr Expr, lineNum int, err error) {
	depth := 0
	for {
		raw, ok := p.peek()
		if !ok {
			return "", nil, 0, fmt.Errorf("unterminated !if (missing !endif)")
		}
		trimmed := strings.TrimSpace(raw)
		lineNum = p.pos + 1
		switch {
		case matchDirective(trimmed, "!if"), matchDirective(trimmed, "!ifdef"), matchDirective(trimmed, "!ifndef"):
			depth++
			p.pos++
		case trimmed == "!endif":
			p.pos++
			if depth == 0 {
				return "endif", nil, lineNum, nil
			}
			depth--
		case trimmed == "!else":
			p.pos++
			if depth == 0 {
				return "else", nil, lineNum, nil
			}
		case strings.HasPrefix(trimmed, "!elseif"):
			if depth == 0 {
				rest := strings.TrimSpace(trimmed[len("!elseif"):])
				e, perr := ParseCondExpr(p.scope.Expand(rest), p.scope)
				if perr != nil {
					return "", nil, lineNum, syntaxError(p.mkPath, lineNum, "%v", perr)
				}
				p.pos++
				return "elseif", e, lineNum, nil
			}
			p.pos++
		default:
			p.pos++
		}
	}
}

func (p *Preprocessor) expectEndif() error {
	raw, ok := p.peek()
	if !ok || strings.TrimSpace(raw) != "!endif" {
		return fmt.Errorf("unterminated !if (missing !endif)")
	}
	p.pos++
	return nil
}

// skipRemainingBranches is called after a taken branch's body has run and
// p.run() stopped at its terminator; it discards any further !elseif/!else
// arms without evaluating them, up through the matching !endif.
func (p *Preprocessor) skipRemainingBranches() error {
	depth := 0
	for {
		raw, ok := p.peek()
		if !ok {
			return fmt.Errorf("unterminated !if (missing !endif)")
		}
		trimmed := strings.TrimSpace(raw)
		switch {
		case matchDirective(trimmed, "!if"), matchDirective(trimmed, "!ifdef"), matchDirective(trimmed, "!ifndef"):
			depth++
			p.pos++
		case trimmed == "!endif":
			if depth == 0 {
				p.pos++
				return nil
			}
			depth--
			p.pos++
		case trimmed == "!else", strings.HasPrefix(trimmed, "!elseif"):
			p.pos++
		default:
			p.pos++
		}
	}
}
