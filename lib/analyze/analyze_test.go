// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package analyze

import "testing"

func TestAnalyzeStaticForms(t *testing.T) {
	source := `
import defaultExport from "./a.ts";
import * as ns from "./b.ts";
import { one, two } from "std@^1";
export { three } from "../c.ts";
export * from "dir_0000000000000000000000000000000000000000000000000000000000000000";
import "./side-effect.ts";
`
	imports, diagnostics := Module{}.Analyze("carton.ts", []byte(source))
	if len(diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}

	want := []string{
		"./a.ts",
		"./b.ts",
		"std@^1",
		"../c.ts",
		"dir_0000000000000000000000000000000000000000000000000000000000000000",
		"./side-effect.ts",
	}
	if len(imports) != len(want) {
		t.Fatalf("got %d imports, want %d: %+v", len(imports), len(want), imports)
	}
	for i, specifier := range want {
		if imports[i].Specifier != specifier {
			t.Errorf("imports[%d] = %q, want %q", i, imports[i].Specifier, specifier)
		}
		if imports[i].Kind != ImportStatic {
			t.Errorf("imports[%d] kind = %s, want static", i, imports[i].Kind)
		}
	}
}

func TestAnalyzeDynamicImport(t *testing.T) {
	source := `const mod = await import("./lazy.ts");`
	imports, _ := Module{}.Analyze("carton.ts", []byte(source))
	if len(imports) != 1 || imports[0].Specifier != "./lazy.ts" || imports[0].Kind != ImportDynamic {
		t.Fatalf("dynamic import not recognized: %+v", imports)
	}
}

func TestAnalyzeDeduplicatesSpecifiers(t *testing.T) {
	source := `
import { a } from "./x.ts";
import { b } from "./x.ts";
`
	imports, _ := Module{}.Analyze("carton.ts", []byte(source))
	if len(imports) != 1 {
		t.Fatalf("got %d imports for a repeated specifier, want 1", len(imports))
	}
}

func TestAnalyzeWarnsOnImportishLines(t *testing.T) {
	source := `import { broken } from somewhere`
	imports, diagnostics := Module{}.Analyze("mod.ts", []byte(source))
	if len(imports) != 0 {
		t.Fatalf("unparseable import produced imports: %+v", imports)
	}
	if len(diagnostics) != 1 || diagnostics[0].Severity != SeverityWarning {
		t.Fatalf("expected one warning, got %+v", diagnostics)
	}
}

func TestAnalyzeRecordsLineNumbers(t *testing.T) {
	source := "// header\n\nimport { x } from \"./x.ts\";\n"
	imports, _ := Module{}.Analyze("mod.ts", []byte(source))
	if len(imports) != 1 || imports[0].Line != 3 {
		t.Fatalf("line number wrong: %+v", imports)
	}
}

func TestAnalyzeIgnoresOrdinaryCode(t *testing.T) {
	source := `
const exporter = 1;
function important(from) { return from; }
`
	imports, diagnostics := Module{}.Analyze("mod.ts", []byte(source))
	if len(imports) != 0 || len(diagnostics) != 0 {
		t.Fatalf("ordinary code produced output: %+v %+v", imports, diagnostics)
	}
}
