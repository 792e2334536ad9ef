package structure

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"fathom/internal/config"
	"fathom/internal/engine"
	"fathom/internal/fsys"
	"fathom/internal/model"
	"fathom/internal/slogutil"
)

func newTestContext(t *testing.T) *engine.Context {
	t.Helper()
	cfg := config.DefaultConfig()
	return engine.NewContext(context.Background(), fsys.NewMemFS(nil), model.NewUnderstanding("/repo"),
		engine.OptionsFromConfig(cfg), cfg.Thresholds, config.DefaultVocab(), slogutil.NewDiscardLogger())
}

func nodeByName(t *testing.T, u *model.UnifiedUnderstanding, nodeType model.NodeType, name string) *model.CodeNode {
	t.Helper()
	for _, n := range u.CodeNodes {
		if n.Type == nodeType && n.Name == name {
			return n
		}
	}
	t.Fatalf("no %s node named %q", nodeType, name)
	return nil
}

func findRel(t *testing.T, u *model.UnifiedUnderstanding, rt model.RelationshipType, src, dst string) *model.Relationship {
	t.Helper()
	for _, r := range u.Relationships {
		if r.Type == rt && r.SourceID == src && r.TargetID == dst {
			return r
		}
	}
	t.Fatalf("no %s edge %s -> %s", rt, src, dst)
	return nil
}

func hasRel(u *model.UnifiedUnderstanding, rt model.RelationshipType, src, dst string) bool {
	for _, r := range u.Relationships {
		if r.Type == rt && r.SourceID == src && r.TargetID == dst {
			return true
		}
	}
	return false
}

const animalSrc = `public class Animal {
    public String name;

    public String speak() {
        return makeSound();
    }
}
`

const dogSrc = `public class Dog extends Animal {
    public String makeSound() {
        return name;
    }
}
`

func TestAnalyzerIdentity(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	if a.ID() != "structure" {
		t.Errorf("ID = %q", a.ID())
	}
	if a.Priority() != 20 {
		t.Errorf("Priority = %d", a.Priority())
	}
	if len(a.Dependencies()) != 1 || a.Dependencies()[0] != "language" {
		t.Errorf("Dependencies = %v", a.Dependencies())
	}
}

func TestAnalyzeFileAndRelationships(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	ac := newTestContext(t)
	if err := a.Initialize(ac); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	files := map[string]string{"Animal.java": animalSrc, "Dog.java": dogSrc}
	for path, src := range files {
		file := &model.FileNode{Path: path, Name: path}
		if err := a.AnalyzeFile(ac, file, []byte(src)); err != nil {
			t.Fatalf("AnalyzeFile(%s): %v", path, err)
		}
	}

	u := ac.Understanding()
	if len(u.CodeNodes) != 7 {
		t.Errorf("expected 7 nodes, got %d", len(u.CodeNodes))
	}

	speak := nodeByName(t, u, model.NodeMethod, "speak")
	if speak.Metadata[metaCalls] != "makeSound" {
		t.Errorf("speak calls = %q", speak.Metadata[metaCalls])
	}
	if speak.Metadata[metaRefs] != "makeSound=1" {
		t.Errorf("speak refs = %q", speak.Metadata[metaRefs])
	}
	dog := nodeByName(t, u, model.NodeClass, "Dog")
	if dog.Metadata[metaExtends] != "Animal" {
		t.Errorf("dog extends = %q", dog.Metadata[metaExtends])
	}
	for _, n := range u.CodeNodes {
		if n.ContentHash == "" {
			t.Errorf("node %s has no content hash", n.ID)
		}
	}

	if err := a.ProcessRelationships(ac); err != nil {
		t.Fatalf("ProcessRelationships: %v", err)
	}

	animal := nodeByName(t, u, model.NodeClass, "Animal")
	makeSound := nodeByName(t, u, model.NodeMethod, "makeSound")

	if got := len(u.Relationships); got != 9 {
		for _, r := range u.Relationships {
			t.Logf("  %s: %s -> %s", r.Type, r.SourceID, r.TargetID)
		}
		t.Errorf("expected 9 edges, got %d", got)
	}

	extends := findRel(t, u, model.RelExtends, dog.ID, animal.ID)
	if extends.Confidence != inheritConfidence {
		t.Errorf("extends confidence = %v", extends.Confidence)
	}
	calls := findRel(t, u, model.RelCalls, speak.ID, makeSound.ID)
	if calls.Confidence != callConfidence {
		t.Errorf("calls confidence = %v", calls.Confidence)
	}
	refs := findRel(t, u, model.RelReferences, dog.ID, animal.ID)
	if refs.Weight != 0.2 {
		t.Errorf("reference weight = %v, want 0.2", refs.Weight)
	}
	findRel(t, u, model.RelContains, animal.ID, speak.ID)

	for _, r := range u.Relationships {
		if r.SourceID == r.TargetID {
			t.Errorf("self edge %s on %s", r.Type, r.SourceID)
		}
		if r.ContentHash == "" {
			t.Errorf("edge %s has no content hash", r.ID)
		}
	}
}

// A changed file is removed and re-analyzed; the rebuild must drop edges
// whose evidence is gone and keep edges grounded in untouched files.
func TestRelationshipsRebuildAfterChange(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	ac := newTestContext(t)
	if err := a.Initialize(ac); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for path, src := range map[string]string{"Animal.java": animalSrc, "Dog.java": dogSrc} {
		if err := a.AnalyzeFile(ac, &model.FileNode{Path: path, Name: path}, []byte(src)); err != nil {
			t.Fatalf("AnalyzeFile: %v", err)
		}
	}
	if err := a.ProcessRelationships(ac); err != nil {
		t.Fatalf("ProcessRelationships: %v", err)
	}

	u := ac.Understanding()
	dog := nodeByName(t, u, model.NodeClass, "Dog")
	animal := nodeByName(t, u, model.NodeClass, "Animal")
	findRel(t, u, model.RelExtends, dog.ID, animal.ID)

	rewritten := `public class Dog {
    public String makeSound() {
        return "woof";
    }
}
`
	ac.RemoveFileEntities([]string{"Dog.java"})
	if err := a.AnalyzeFile(ac, &model.FileNode{Path: "Dog.java", Name: "Dog.java"}, []byte(rewritten)); err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	if err := a.ProcessRelationships(ac); err != nil {
		t.Fatalf("ProcessRelationships: %v", err)
	}

	dog = nodeByName(t, u, model.NodeClass, "Dog")
	if hasRel(u, model.RelExtends, dog.ID, animal.ID) {
		t.Error("stale extends edge survived the rebuild")
	}
	// speak's call evidence lives in Animal.java, which was not re-analyzed.
	speak := nodeByName(t, u, model.NodeMethod, "speak")
	makeSound := nodeByName(t, u, model.NodeMethod, "makeSound")
	findRel(t, u, model.RelCalls, speak.ID, makeSound.ID)
}

func classAt(path, name string) *model.CodeNode {
	return &model.CodeNode{
		ID:       nodeID(path, model.NodeClass, name, 1),
		Type:     model.NodeClass,
		Name:     name,
		Path:     path,
		Location: model.Location{StartLine: 1, EndLine: 1},
		Metadata: map[string]string{},
	}
}

func TestAmbiguousNamesDropped(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())

	run := func(t *testing.T, declarations int) []*model.Relationship {
		t.Helper()
		ac := newTestContext(t)
		for i := 0; i < declarations; i++ {
			ac.AddCodeNode(classAt(fmt.Sprintf("w%d.go", i), "Widget"))
		}
		user := &model.CodeNode{
			ID:       nodeID("use.go", model.NodeFunction, "useWidget", 1),
			Type:     model.NodeFunction,
			Name:     "useWidget",
			Path:     "use.go",
			Location: model.Location{StartLine: 1, EndLine: 3},
			Metadata: map[string]string{metaRefs: "Widget=2"},
		}
		ac.AddCodeNode(user)
		if err := a.ProcessRelationships(ac); err != nil {
			t.Fatalf("ProcessRelationships: %v", err)
		}
		var refs []*model.Relationship
		for _, r := range ac.Understanding().Relationships {
			if r.Type == model.RelReferences {
				refs = append(refs, r)
			}
		}
		return refs
	}

	t.Run("three declarations resolve", func(t *testing.T) {
		refs := run(t, 3)
		if len(refs) != 3 {
			t.Fatalf("expected 3 reference edges, got %d", len(refs))
		}
		for _, r := range refs {
			if r.Confidence != referenceConfidence/3 {
				t.Errorf("confidence = %v, want %v", r.Confidence, referenceConfidence/3)
			}
			if r.Weight != 0.4 {
				t.Errorf("weight = %v, want 0.4", r.Weight)
			}
		}
	})

	t.Run("four declarations are ambiguous", func(t *testing.T) {
		if refs := run(t, maxNameTargets+1); len(refs) != 0 {
			t.Errorf("expected no reference edges, got %d", len(refs))
		}
	})
}

func TestPerFileEdgeCap(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	ac := newTestContext(t)

	var refs strings.Builder
	for i := 0; i < maxEdgesPerFile+50; i++ {
		name := fmt.Sprintf("fn%03d", i)
		ac.AddCodeNode(&model.CodeNode{
			ID:       nodeID(name+".go", model.NodeFunction, name, 1),
			Type:     model.NodeFunction,
			Name:     name,
			Path:     name + ".go",
			Location: model.Location{StartLine: 1, EndLine: 1},
			Metadata: map[string]string{},
		})
		fmt.Fprintf(&refs, "%s=1 ", name)
	}
	hub := &model.CodeNode{
		ID:       nodeID("hub.go", model.NodeFunction, "dispatch", 1),
		Type:     model.NodeFunction,
		Name:     "dispatch",
		Path:     "hub.go",
		Location: model.Location{StartLine: 1, EndLine: 1},
		Metadata: map[string]string{metaRefs: strings.TrimSpace(refs.String())},
	}
	ac.AddCodeNode(hub)

	if err := a.ProcessRelationships(ac); err != nil {
		t.Fatalf("ProcessRelationships: %v", err)
	}
	fromHub := 0
	for _, r := range ac.Understanding().Relationships {
		if r.SourceID == hub.ID && r.Type == model.RelReferences {
			fromHub++
		}
	}
	if fromHub != maxEdgesPerFile {
		t.Errorf("expected %d edges from hub.go, got %d", maxEdgesPerFile, fromHub)
	}
}

func TestImplPairsAndEmbeds(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	ac := newTestContext(t)

	queue := classAt("queue.rs", "Queue")
	pushable := &model.CodeNode{
		ID:       nodeID("push.rs", model.NodeInterface, "Pushable", 1),
		Type:     model.NodeInterface,
		Name:     "Pushable",
		Path:     "push.rs",
		Location: model.Location{StartLine: 1, EndLine: 3},
		Metadata: map[string]string{},
	}
	fileRoot := &model.CodeNode{
		ID:       fileNodeID("queue.rs"),
		Type:     model.NodeFile,
		Name:     "queue.rs",
		Path:     "queue.rs",
		Location: model.Location{StartLine: 1, EndLine: 10},
		Metadata: map[string]string{metaImpls: "Queue>Pushable"},
	}
	base := classAt("base.go", "Base")
	embedder := classAt("embed.go", "Wrapper")
	embedder.Metadata[metaEmbeds] = "Base"

	for _, n := range []*model.CodeNode{queue, pushable, fileRoot, base, embedder} {
		ac.AddCodeNode(n)
	}
	if err := a.ProcessRelationships(ac); err != nil {
		t.Fatalf("ProcessRelationships: %v", err)
	}

	u := ac.Understanding()
	impl := findRel(t, u, model.RelImplements, queue.ID, pushable.ID)
	if impl.Confidence != inheritConfidence {
		t.Errorf("impl confidence = %v", impl.Confidence)
	}
	embed := findRel(t, u, model.RelExtends, embedder.ID, base.ID)
	if embed.Confidence != embedConfidence {
		t.Errorf("embed confidence = %v", embed.Confidence)
	}
}

func TestScanIdentifiers(t *testing.T) {
	collect := func(line string) []string {
		var got []string
		scanIdentifiers(line, func(name string, called bool) {
			if called {
				name += "()"
			}
			got = append(got, name)
		})
		return got
	}

	tests := []struct {
		line string
		want []string
	}{
		{"foo(bar)", []string{"foo()", "bar"}},
		{"obj.method(x)", []string{"obj", "method()", "x"}},
		{"result = compute (a, b)", []string{"result", "compute()", "a", "b"}},
		{"123abc rest", []string{"rest"}},
		{"x_1 += y2", []string{"x_1", "y2"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := collect(tt.line)
		if len(got) != len(tt.want) {
			t.Errorf("%q: got %v, want %v", tt.line, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%q: got %v, want %v", tt.line, got, tt.want)
				break
			}
		}
	}
}

func TestFormatAndParseCounts(t *testing.T) {
	s := formatCounts(map[string]int{"beta": 2, "alpha": 2, "gamma": 5})
	if s != "gamma=5 alpha=2 beta=2" {
		t.Errorf("formatCounts = %q", s)
	}

	parsed := parseCounts("gamma=5 alpha=2 broken bad=x zero=0")
	if len(parsed) != 2 {
		t.Fatalf("parseCounts kept %d entries", len(parsed))
	}
	if parsed[0].name != "gamma" || parsed[0].count != 5 {
		t.Errorf("first entry = %+v", parsed[0])
	}
	if parsed[1].name != "alpha" || parsed[1].count != 2 {
		t.Errorf("second entry = %+v", parsed[1])
	}
}

func TestEvidenceExclusiveSpans(t *testing.T) {
	content := []byte(`func outer() {
  helperA(x)
  func inner() {
    helperB(y)
  }
}
`)
	root := &model.CodeNode{
		ID: fileNodeID("a.x"), Type: model.NodeFile, Name: "a.x", Path: "a.x",
		Location: model.Location{StartLine: 1, EndLine: 7},
		Metadata: map[string]string{},
	}
	outer := &model.CodeNode{
		ID: nodeID("a.x", model.NodeFunction, "outer", 1), Type: model.NodeFunction,
		Name: "outer", Path: "a.x",
		Location: model.Location{StartLine: 1, EndLine: 6},
		Metadata: map[string]string{},
	}
	inner := &model.CodeNode{
		ID: nodeID("a.x", model.NodeFunction, "inner", 3), Type: model.NodeFunction,
		Name: "inner", Path: "a.x",
		Location: model.Location{StartLine: 3, EndLine: 5},
		Metadata: map[string]string{},
	}
	root.Children = []*model.CodeNode{outer}
	outer.Children = []*model.CodeNode{inner}
	ex := &extraction{Root: root, Nodes: []*model.CodeNode{root, outer, inner}}

	annotateEvidence(ex, content, config.DefaultVocab().StopwordSet())

	if outer.Metadata[metaCalls] != "helperA" {
		t.Errorf("outer calls = %q", outer.Metadata[metaCalls])
	}
	if inner.Metadata[metaCalls] != "helperB" {
		t.Errorf("inner calls = %q", inner.Metadata[metaCalls])
	}
	if strings.Contains(outer.Metadata[metaRefs], "helperB") {
		t.Errorf("outer refs leaked into child span: %q", outer.Metadata[metaRefs])
	}
}

func TestOwnNameCountedOnce(t *testing.T) {
	content := []byte(`func retry() {
  retry()
  retry()
}
`)
	root := &model.CodeNode{
		ID: fileNodeID("r.x"), Type: model.NodeFile, Name: "r.x", Path: "r.x",
		Location: model.Location{StartLine: 1, EndLine: 5},
		Metadata: map[string]string{},
	}
	fn := &model.CodeNode{
		ID: nodeID("r.x", model.NodeFunction, "retry", 1), Type: model.NodeFunction,
		Name: "retry", Path: "r.x",
		Location: model.Location{StartLine: 1, EndLine: 4},
		Metadata: map[string]string{},
	}
	root.Children = []*model.CodeNode{fn}
	ex := &extraction{Root: root, Nodes: []*model.CodeNode{root, fn}}

	annotateEvidence(ex, content, config.DefaultVocab().StopwordSet())

	// Three mentions, one of them the declaration itself.
	if fn.Metadata[metaRefs] != "retry=2" {
		t.Errorf("refs = %q, want retry=2", fn.Metadata[metaRefs])
	}
	// Recursive calls are not call evidence.
	if fn.Metadata[metaCalls] != "" {
		t.Errorf("calls = %q, want empty", fn.Metadata[metaCalls])
	}
}
