// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import "strings"

// RecipeContext supplies the five target-context variables available only
// during recipe-line expansion.
type RecipeContext struct {
	Target  string // $@ — the target name
	Stem    string // $*  — the stem captured by an inference rule
	All     string // $** — all prerequisites, declaration order
	Changed string // $?  — out-of-date prerequisites
	First   string // $<  — the first prerequisite
}

// Expand replaces $(NAME), $X, and $(NAME:SEARCH=REPLACE) references in s
// using this scope's lookup chain. Outside of recipe expansion, the
// target-context sequences $@ $* $** $? $< and $$ all expand to themselves
// unchanged.
func (s *Scope) Expand(str string) string {
	return expand(s, nil, str)
}

// ExpandRecipe is like Expand but resolves the five target-context
// sequences against rc, and rewrites $$ to a literal $ before any other
// substitution is attempted, so a literal "$" in a recipe line can never be
// mistaken for the start of a reference.
func ExpandRecipe(s *Scope, rc RecipeContext, str string) string {
	str = strings.ReplaceAll(str, "$$", "\x00") // placeholder, restored to "$" at the end
	out := expand(s, &rc, str)
	return strings.ReplaceAll(out, "\x00", "$")
}

func expand(s *Scope, rc *RecipeContext, in string) string {
	var b strings.Builder
	i := 0
	for i < len(in) {
		c := in[i]
		if c != '$' {
			b.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(in) {
			b.WriteByte('$')
			break
		}
		switch {
		case in[i] == '$':
			if rc == nil {
				b.WriteByte('$')
				b.WriteByte('$')
			} else {
				b.WriteByte('$')
			}
			i++

		case in[i] == '(':
			end := matchingParen(in, i)
			if end < 0 {
				b.WriteByte('$')
				b.WriteByte('(')
				i++
				continue
			}
			inner := in[i+1 : end]
			b.WriteString(expandParenRef(s, inner))
			i = end + 1

		case isAutoVar(in[i:]):
			sym, n := autoVarSymbol(in[i:])
			b.WriteString(resolveAutoVar(rc, sym))
			i += n

		case isVarNameStart(in[i]):
			start := i
			for i < len(in) && isVarNameCont(in[i]) {
				i++
			}
			name := in[start:i]
			b.WriteString(s.Get(name))

		default:
			// $X single-character reference.
			name := string(in[i])
			b.WriteString(s.Get(name))
			i++
		}
	}
	return b.String()
}

// expandParenRef handles the body of a $(...) reference: either a bare
// name or "NAME:SEARCH=REPLACE".
func expandParenRef(s *Scope, inner string) string {
	name := inner
	if idx := strings.IndexByte(inner, ':'); idx >= 0 {
		name = inner[:idx]
		rest := inner[idx+1:]
		if eq := strings.IndexByte(rest, '='); eq >= 0 {
			search := rest[:eq]
			replace := rest[eq+1:]
			value := s.Get(strings.TrimSpace(name))
			return strings.ReplaceAll(value, search, replace)
		}
	}
	return s.Get(strings.TrimSpace(name))
}

func matchingParen(s string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isVarNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isVarNameCont(c byte) bool {
	return isVarNameStart(c) || c >= '0' && c <= '9'
}

// autoVars lists the recognized target-context sequences, longest first
// so "$**" is matched before "$*".
var autoVars = []string{"**", "*", "?", "<", "@"}

func isAutoVar(rest string) bool {
	for _, v := range autoVars {
		if strings.HasPrefix(rest, v) {
			return true
		}
	}
	return false
}

func autoVarSymbol(rest string) (string, int) {
	for _, v := range autoVars {
		if strings.HasPrefix(rest, v) {
			return v, len(v)
		}
	}
	return "", 0
}

// resolveAutoVar returns rc's value for sym, or the literal "$sym" when rc
// is nil (i.e. expansion is happening outside recipe context).
func resolveAutoVar(rc *RecipeContext, sym string) string {
	if rc == nil {
		return "$" + sym
	}
	switch sym {
	case "@":
		return rc.Target
	case "*":
		return rc.Stem
	case "**":
		return rc.All
	case "?":
		return rc.Changed
	case "<":
		return rc.First
	}
	return "$" + sym
}
