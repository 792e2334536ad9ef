package imports

import (
	"context"
	"path"
	"testing"

	"fathom/internal/config"
	"fathom/internal/engine"
	"fathom/internal/fsys"
	"fathom/internal/model"
	"fathom/internal/slogutil"
)

func newTestContext(t *testing.T, tree *model.FileSystemTree) *engine.Context {
	t.Helper()
	cfg := config.DefaultConfig()
	u := model.NewUnderstanding("/repo")
	u.FileSystem = tree
	return engine.NewContext(context.Background(), fsys.NewMemFS(nil), u,
		engine.OptionsFromConfig(cfg), cfg.Thresholds, config.DefaultVocab(), slogutil.NewDiscardLogger())
}

func fileRoot(p string) *model.CodeNode {
	return &model.CodeNode{ID: "node:" + p, Type: model.NodeFile, Name: path.Base(p), Path: p}
}

func runAnalysis(t *testing.T, a *Analyzer, ac *engine.Context, files map[string]string) {
	t.Helper()
	for p, src := range files {
		if err := a.AnalyzeFile(ac, &model.FileNode{Path: p, Name: path.Base(p)}, []byte(src)); err != nil {
			t.Fatalf("AnalyzeFile(%s): %v", p, err)
		}
	}
	if err := a.ProcessRelationships(ac); err != nil {
		t.Fatalf("ProcessRelationships: %v", err)
	}
}

func depBySpec(t *testing.T, u *model.UnifiedUnderstanding, sourcePath, spec string) *model.Dependency {
	t.Helper()
	for _, d := range u.Dependencies {
		if d.SourcePath == sourcePath && d.ModuleSpecifier == spec {
			return d
		}
	}
	t.Fatalf("no dependency %s -> %s", sourcePath, spec)
	return nil
}

func hasDep(u *model.UnifiedUnderstanding, sourcePath, spec string) bool {
	for _, d := range u.Dependencies {
		if d.SourcePath == sourcePath && d.ModuleSpecifier == spec {
			return true
		}
	}
	return false
}

func hasEdge(u *model.UnifiedUnderstanding, rt model.RelationshipType, src, dst string) bool {
	for _, r := range u.Relationships {
		if r.Type == rt && r.SourceID == src && r.TargetID == dst {
			return true
		}
	}
	return false
}

func TestAnalyzerIdentity(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	if a.ID() != "imports" {
		t.Errorf("ID = %q", a.ID())
	}
	if a.Priority() != 30 {
		t.Errorf("Priority = %d", a.Priority())
	}
	if len(a.Dependencies()) != 1 || a.Dependencies()[0] != "structure" {
		t.Errorf("Dependencies = %v", a.Dependencies())
	}
}

func TestRelativeImportsResolveToEdges(t *testing.T) {
	ac := newTestContext(t, testTree("x.js", "y.js", "z.js"))
	for _, p := range []string{"x.js", "y.js", "z.js"} {
		ac.AddCodeNode(fileRoot(p))
	}

	a := NewAnalyzer(slogutil.NewDiscardLogger())
	runAnalysis(t, a, ac, map[string]string{
		"x.js": "import a from './y';\nimport b from './z';\n",
		"y.js": "export const a = 1;\n",
		"z.js": "export const b = 2;\n",
	})
	u := ac.Understanding()

	if len(a.patterns) != 1 {
		t.Fatalf("induced %d patterns, want 1", len(a.patterns))
	}
	if p := a.patterns[0]; p.Keyword != "import" || p.Count != 2 {
		t.Errorf("pattern keyword %q count %d", p.Keyword, p.Count)
	}

	if len(u.Dependencies) != 2 {
		t.Fatalf("got %d dependencies, want 2", len(u.Dependencies))
	}
	dep := depBySpec(t, u, "x.js", "./y")
	if dep.Type != model.DepLocalFile || dep.ResolvedPath != "y.js" || dep.Confidence != 0.95 {
		t.Errorf("./y classified %s %q %v", dep.Type, dep.ResolvedPath, dep.Confidence)
	}
	if dep.ID != "dep:x.js->./y" {
		t.Errorf("dependency ID %q", dep.ID)
	}
	if dep.ContentHash == "" {
		t.Error("dependency has no content hash")
	}

	if len(u.Relationships) != 2 {
		t.Fatalf("got %d edges, want 2", len(u.Relationships))
	}
	if !hasEdge(u, model.RelImports, "node:x.js", "node:y.js") {
		t.Error("missing x.js -> y.js import edge")
	}
	if !hasEdge(u, model.RelImports, "node:x.js", "node:z.js") {
		t.Error("missing x.js -> z.js import edge")
	}

	// Evidence lands in the file root node so later rebuilds can replay it.
	root := u.CodeNodes["node:x.js"]
	if got := decodeCandidates(root.Metadata[metaImportLines]); len(got) != 2 {
		t.Errorf("persisted %d sampled lines, want 2", len(got))
	}
	if u.CodeNodes["node:y.js"].Metadata[metaImportLines] != "" {
		t.Error("y.js has import evidence but no imports")
	}
}

const groupedGoSrc = `package main

import (
	"fmt"
	"net/http"
)
`

func TestGroupedImportsAndCorpusClassification(t *testing.T) {
	ac := newTestContext(t, testTree("cmd/g.go", "pkg/h.go"))
	ac.AddCodeNode(fileRoot("cmd/g.go"))
	ac.AddCodeNode(fileRoot("pkg/h.go"))

	a := NewAnalyzer(slogutil.NewDiscardLogger())
	runAnalysis(t, a, ac, map[string]string{
		"cmd/g.go": groupedGoSrc,
		"pkg/h.go": "package h\n\nimport \"fmt\"\n",
	})
	u := ac.Understanding()

	// The grouped lines share one shape, the single-line import is its own.
	if len(a.patterns) != 2 {
		t.Fatalf("induced %d patterns, want 2", len(a.patterns))
	}
	if a.patterns[0].Count != 2 || a.patterns[1].Count != 1 {
		t.Errorf("pattern counts %d, %d", a.patterns[0].Count, a.patterns[1].Count)
	}
	if got := a.patterns[0].Score[".go"]; got != 2 {
		t.Errorf("grouped pattern scored %d matches on .go", got)
	}

	if len(u.Dependencies) != 3 {
		t.Fatalf("got %d dependencies, want 3", len(u.Dependencies))
	}
	// fmt is imported from two directories and resolves nowhere in the tree.
	dep := depBySpec(t, u, "cmd/g.go", "fmt")
	if dep.Type != model.DepStandardLibrary || dep.Confidence != 0.7 {
		t.Errorf("fmt classified %s %v", dep.Type, dep.Confidence)
	}
	dep = depBySpec(t, u, "pkg/h.go", "fmt")
	if dep.Type != model.DepStandardLibrary {
		t.Errorf("fmt classified %s from pkg", dep.Type)
	}
	dep = depBySpec(t, u, "cmd/g.go", "net/http")
	if dep.Type != model.DepExternalPackage || dep.Confidence != 0.5 {
		t.Errorf("net/http classified %s %v", dep.Type, dep.Confidence)
	}

	if len(u.Relationships) != 0 {
		t.Errorf("unresolved dependencies produced %d edges", len(u.Relationships))
	}
}

func TestReExportsProduceExportEdges(t *testing.T) {
	ac := newTestContext(t, testTree("index.js", "a.js", "b.js"))
	for _, p := range []string{"index.js", "a.js", "b.js"} {
		ac.AddCodeNode(fileRoot(p))
	}

	a := NewAnalyzer(slogutil.NewDiscardLogger())
	runAnalysis(t, a, ac, map[string]string{
		"index.js": "export { A } from './a';\nexport { B } from './b';\n",
		"a.js":     "const A = 1;\n",
		"b.js":     "const B = 2;\n",
	})
	u := ac.Understanding()

	if len(a.patterns) != 1 {
		t.Fatalf("induced %d patterns, want 1", len(a.patterns))
	}
	if p := a.patterns[0]; p.Keyword != "export" || p.Count != 2 {
		t.Errorf("pattern keyword %q count %d", p.Keyword, p.Count)
	}

	// A re-export is still a dependency on its source.
	if len(u.Dependencies) != 2 {
		t.Fatalf("got %d dependencies, want 2", len(u.Dependencies))
	}
	dep := depBySpec(t, u, "index.js", "./a")
	if dep.Type != model.DepLocalFile || dep.ResolvedPath != "a.js" || dep.Confidence != 0.95 {
		t.Errorf("./a classified %s %q %v", dep.Type, dep.ResolvedPath, dep.Confidence)
	}

	if len(u.Relationships) != 2 {
		t.Fatalf("got %d edges, want 2", len(u.Relationships))
	}
	if !hasEdge(u, model.RelExports, "node:index.js", "node:a.js") {
		t.Error("missing index.js -> a.js export edge")
	}
	if !hasEdge(u, model.RelExports, "node:index.js", "node:b.js") {
		t.Error("missing index.js -> b.js export edge")
	}
	if hasEdge(u, model.RelImports, "node:index.js", "node:a.js") {
		t.Error("re-export produced an import edge")
	}
}

func TestRebuildDropsStaleEvidence(t *testing.T) {
	ac := newTestContext(t, testTree("x.js", "w.js", "y.js", "z.js"))
	for _, p := range []string{"x.js", "w.js", "y.js", "z.js"} {
		ac.AddCodeNode(fileRoot(p))
	}

	a := NewAnalyzer(slogutil.NewDiscardLogger())
	runAnalysis(t, a, ac, map[string]string{
		"x.js": "import a from './y';\nimport b from './z';\n",
		"w.js": "import c from './y';\n",
		"y.js": "export const a = 1;\n",
		"z.js": "export const b = 2;\n",
	})
	u := ac.Understanding()
	if len(u.Dependencies) != 3 || len(u.Relationships) != 3 {
		t.Fatalf("first run: %d dependencies, %d edges", len(u.Dependencies), len(u.Relationships))
	}

	// x.js drops its z import. w.js is not re-analyzed; its evidence replays
	// from node metadata. The reset mirrors the relationship mapping phase,
	// where edges are rebuilt from scratch.
	ac.ResetRelationships()
	runAnalysis(t, a, ac, map[string]string{
		"x.js": "import a from './y';\n",
	})

	if hasDep(u, "x.js", "./z") {
		t.Error("stale ./z dependency survived rebuild")
	}
	if hasEdge(u, model.RelImports, "node:x.js", "node:z.js") {
		t.Error("stale x.js -> z.js edge survived rebuild")
	}
	if len(u.Dependencies) != 2 || len(u.Relationships) != 2 {
		t.Fatalf("after rebuild: %d dependencies, %d edges", len(u.Dependencies), len(u.Relationships))
	}
	dep := depBySpec(t, u, "w.js", "./y")
	if dep.ResolvedPath != "y.js" {
		t.Errorf("w.js ./y resolved to %q", dep.ResolvedPath)
	}
	if !hasEdge(u, model.RelImports, "node:x.js", "node:y.js") {
		t.Error("missing x.js -> y.js edge after rebuild")
	}
}
