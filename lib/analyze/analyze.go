// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package analyze

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// ModuleFilename is the file name the scanner recognizes as a carton
// module. Only module files get static import analysis; every other
// file's dependencies come from its sidecar.
const ModuleFilename = "carton.ts"

// ImportKind distinguishes how an import specifier appeared in the
// source.
type ImportKind uint8

const (
	// ImportStatic is a top-level import or re-export declaration.
	ImportStatic ImportKind = iota + 1
	// ImportDynamic is a call-form import("...") with a literal
	// specifier.
	ImportDynamic
)

// String returns the kind's lowercase name.
func (k ImportKind) String() string {
	switch k {
	case ImportStatic:
		return "static"
	case ImportDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Import is one extracted import specifier.
type Import struct {
	Specifier string
	Kind      ImportKind
	Line      int
}

// Severity classifies a diagnostic.
type Severity uint8

const (
	SeverityWarning Severity = iota + 1
	SeverityError
)

// String returns the severity's lowercase name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Diagnostic is one analysis problem. Diagnostics never abort
// scanning — they surface through the sink and scanning continues.
type Diagnostic struct {
	Severity Severity
	Message  string
	Line     int
}

// Sink receives diagnostics from the scanner and analyzer.
type Sink interface {
	Emit(severity Severity, message string)
}

// SlogSink forwards diagnostics to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// Emit implements [Sink].
func (s SlogSink) Emit(severity Severity, message string) {
	switch severity {
	case SeverityError:
		s.Logger.Error(message)
	default:
		s.Logger.Warn(message)
	}
}

// Analyzer extracts import specifiers from module source. Analyze is
// restartable: implementations retain no state between calls.
type Analyzer interface {
	Analyze(path string, source []byte) ([]Import, []Diagnostic)
}

// Import declaration forms recognized by the static analyzer. The
// grammar is deliberately line-oriented: carton modules keep import
// and re-export declarations on their own lines, and anything more
// exotic belongs in the module evaluator, not here.
var (
	// import defaultExport from "spec"; import * as ns from "spec";
	// import { a, b } from "spec"; export { a } from "spec";
	// export * from "spec"; import "spec";
	staticImportPattern = regexp.MustCompile(
		`^\s*(?:import|export)\s+(?:[^"']*?\s+from\s+)?["']([^"']+)["']`)

	// import("spec") with a literal specifier, anywhere on the line.
	dynamicImportPattern = regexp.MustCompile(
		`\bimport\s*\(\s*["']([^"']+)["']\s*\)`)

	// Declarations that look like imports but did not match the
	// static form — usually an unterminated or non-literal specifier.
	importishPattern = regexp.MustCompile(
		`^\s*(?:import|export)\s+.*\bfrom\b`)
)

// Module is the static analyzer for carton module files. Stateless.
type Module struct{}

// Analyze implements [Analyzer]: scan the source line by line for
// import and re-export declarations with literal specifiers. Lines
// that look like imports but cannot be parsed produce a warning
// diagnostic and are otherwise skipped.
func (Module) Analyze(path string, source []byte) ([]Import, []Diagnostic) {
	var (
		imports     []Import
		diagnostics []Diagnostic
		seen        = make(map[string]bool)
	)

	for lineNumber, line := range strings.Split(string(source), "\n") {
		if match := staticImportPattern.FindStringSubmatch(line); match != nil {
			specifier := match[1]
			if !seen[specifier] {
				seen[specifier] = true
				imports = append(imports, Import{
					Specifier: specifier,
					Kind:      ImportStatic,
					Line:      lineNumber + 1,
				})
			}
			continue
		}

		if match := dynamicImportPattern.FindStringSubmatch(line); match != nil {
			specifier := match[1]
			if !seen[specifier] {
				seen[specifier] = true
				imports = append(imports, Import{
					Specifier: specifier,
					Kind:      ImportDynamic,
					Line:      lineNumber + 1,
				})
			}
			continue
		}

		if importishPattern.MatchString(line) {
			diagnostics = append(diagnostics, Diagnostic{
				Severity: SeverityWarning,
				Message: fmt.Sprintf("%s:%d: cannot extract import specifier from %q",
					path, lineNumber+1, strings.TrimSpace(line)),
				Line: lineNumber + 1,
			})
		}
	}

	return imports, diagnostics
}
