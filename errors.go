// Copyright 2026 The ymake Authors
// SPDX-License-Identifier: Apache-2.0

package ymake

import "fmt"

// ErrorKind classifies a BuildError for callers that branch on failure mode
// (e.g. deciding an exit code) without string-matching messages.
type ErrorKind int

const (
	KindSyntax ErrorKind = iota
	KindSemantic
	KindCommand
	KindResource
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindSemantic:
		return "semantic"
	case KindCommand:
		return "command"
	case KindResource:
		return "resource"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// BuildError is the structured error value most package-level failures are
// reported with: a kind, the makefile location it originated from (when
// known), and the underlying cause. A few lower-level failures are returned
// as plain errors instead: an unterminated !if, a backtick command in a
// taken !if that cannot be started, and a failed cache write.
type BuildError struct {
	Kind ErrorKind
	File string
	Line int
	Msg  string
	Err  error
}

func (e *BuildError) Error() string {
	loc := ""
	if e.File != "" {
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d: ", e.File, e.Line)
		} else {
			loc = e.File + ": "
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %v", loc, e.Msg, e.Err)
	}
	return loc + e.Msg
}

func (e *BuildError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, file string, line int, msg string, cause error) *BuildError {
	return &BuildError{Kind: kind, File: file, Line: line, Msg: msg, Err: cause}
}

func syntaxError(file string, line int, format string, args ...any) *BuildError {
	return newError(KindSyntax, file, line, fmt.Sprintf(format, args...), nil)
}

func semanticError(file string, line int, format string, args ...any) *BuildError {
	return newError(KindSemantic, file, line, fmt.Sprintf(format, args...), nil)
}

func commandError(target string, cause error) *BuildError {
	return newError(KindCommand, "", 0, "recipe for "+target+" failed", cause)
}

func resourceError(format string, args ...any) *BuildError {
	return newError(KindResource, "", 0, fmt.Sprintf(format, args...), nil)
}

func cancelledError(cause error) *BuildError {
	return newError(KindCancelled, "", 0, "build cancelled", cause)
}
