package dataflow

import (
	"context"
	"math"
	"path"
	"testing"

	"fathom/internal/config"
	"fathom/internal/engine"
	"fathom/internal/fsys"
	"fathom/internal/incremental"
	"fathom/internal/model"
	"fathom/internal/slogutil"
)

func newTestContext(t *testing.T, cfg *config.Config) *engine.Context {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return engine.NewContext(context.Background(), fsys.NewMemFS(nil), model.NewUnderstanding("/repo"),
		engine.OptionsFromConfig(cfg), cfg.Thresholds, config.DefaultVocab(), slogutil.NewDiscardLogger())
}

func fileRoot(p string) *model.CodeNode {
	return &model.CodeNode{ID: "node:" + p, Type: model.NodeFile, Name: path.Base(p), Path: p}
}

func runDataflow(t *testing.T, a *Analyzer, ac *engine.Context, files map[string]string) {
	t.Helper()
	for p, src := range files {
		if err := a.AnalyzeFile(ac, &model.FileNode{Path: p, Name: path.Base(p)}, []byte(src)); err != nil {
			t.Fatalf("AnalyzeFile(%s): %v", p, err)
		}
	}
	if err := a.ProcessRelationships(ac); err != nil {
		t.Fatalf("ProcessRelationships: %v", err)
	}
	if err := a.IntegrateAnalysis(ac); err != nil {
		t.Fatalf("IntegrateAnalysis: %v", err)
	}
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestAnalyzerIdentity(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	if a.ID() != "dataflow" {
		t.Errorf("ID = %q", a.ID())
	}
	if a.Priority() != 40 {
		t.Errorf("Priority = %d", a.Priority())
	}
	if len(a.Dependencies()) != 1 || a.Dependencies()[0] != "structure" {
		t.Errorf("Dependencies = %v", a.Dependencies())
	}
}

func TestPipelineFlowsAndPaths(t *testing.T) {
	ac := newTestContext(t, nil)
	ac.AddCodeNode(fileRoot("pipe.js"))

	a := NewAnalyzer(slogutil.NewDiscardLogger())
	runDataflow(t, a, ac, map[string]string{
		"pipe.js": "const raw = readInput(stream);\n" +
			"const parsed = decodeBody(raw);\n" +
			"writeResult(parsed);\n",
	})

	g := ac.Understanding().DataFlow
	if g == nil {
		t.Fatal("no data flow graph written")
	}
	if len(g.Nodes) != 3 {
		t.Fatalf("got %d nodes: %v", len(g.Nodes), g.Nodes)
	}

	readID := "data:pipe.js#source:readInput@1"
	decodeID := "data:pipe.js#transformer:decodeBody@2"
	writeID := "data:pipe.js#sink:writeResult@3"
	for _, id := range []string{readID, decodeID, writeID} {
		if g.Nodes[id] == nil {
			t.Fatalf("missing node %s", id)
		}
	}
	if !closeTo(g.Nodes[readID].Confidence, 0.6) {
		t.Errorf("node confidence = %v", g.Nodes[readID].Confidence)
	}

	// raw links read to decode, parsed links decode to write.
	if len(g.Flows) != 2 {
		t.Fatalf("got %d flows: %+v", len(g.Flows), g.Flows)
	}
	for _, f := range g.Flows {
		if f.Async || f.Conditional {
			t.Errorf("flow %s has unexpected flags", f.ID)
		}
		if !closeTo(f.Confidence, 0.75) {
			t.Errorf("flow %s confidence = %v", f.ID, f.Confidence)
		}
		if f.ContentHash == "" {
			t.Errorf("flow %s has no content hash", f.ID)
		}
	}

	if len(g.Paths) != 1 {
		t.Fatalf("got %d paths: %+v", len(g.Paths), g.Paths)
	}
	p := g.Paths[0]
	if len(p.NodeIDs) != 3 || p.NodeIDs[0] != readID || p.NodeIDs[1] != decodeID || p.NodeIDs[2] != writeID {
		t.Errorf("path = %v", p.NodeIDs)
	}
	if !closeTo(p.Confidence, 0.75) {
		t.Errorf("path confidence = %v", p.Confidence)
	}
}

func TestChainFlowWithoutSharedIdentifiers(t *testing.T) {
	ac := newTestContext(t, nil)
	ac.AddCodeNode(fileRoot("a.go"))

	a := NewAnalyzer(slogutil.NewDiscardLogger())
	runDataflow(t, a, ac, map[string]string{
		"a.go": "cfg = loadConfig(file)\nflushOutput(buf)\n",
	})

	g := ac.Understanding().DataFlow
	if len(g.Flows) != 1 {
		t.Fatalf("got %d flows: %+v", len(g.Flows), g.Flows)
	}
	// Line order alone carries less confidence than a shared identifier.
	if !closeTo(g.Flows[0].Confidence, 0.6) {
		t.Errorf("chain flow confidence = %v", g.Flows[0].Confidence)
	}
}

func TestFlowGates(t *testing.T) {
	asyncSrc := "data = readQueue(conn)\ngo sendData(data)\n"
	condSrc := "if ok {\n\tv = parseBody(req)\n\tstoreResult(v)\n}\n"

	t.Run("async", func(t *testing.T) {
		ac := newTestContext(t, nil)
		ac.AddCodeNode(fileRoot("w.go"))
		a := NewAnalyzer(slogutil.NewDiscardLogger())
		runDataflow(t, a, ac, map[string]string{"w.go": asyncSrc})
		g := ac.Understanding().DataFlow
		if len(g.Flows) != 1 || !g.Flows[0].Async {
			t.Fatalf("flows = %+v", g.Flows)
		}

		cfg := config.DefaultConfig()
		cfg.Analysis.IncludeAsyncFlows = false
		ac = newTestContext(t, cfg)
		ac.AddCodeNode(fileRoot("w.go"))
		a = NewAnalyzer(slogutil.NewDiscardLogger())
		runDataflow(t, a, ac, map[string]string{"w.go": asyncSrc})
		g = ac.Understanding().DataFlow
		if len(g.Flows) != 0 {
			t.Fatalf("async gate kept %d flows", len(g.Flows))
		}
		if len(g.Nodes) != 2 {
			t.Errorf("gate dropped nodes too: %d", len(g.Nodes))
		}
	})

	t.Run("conditional", func(t *testing.T) {
		ac := newTestContext(t, nil)
		ac.AddCodeNode(fileRoot("c.go"))
		a := NewAnalyzer(slogutil.NewDiscardLogger())
		runDataflow(t, a, ac, map[string]string{"c.go": condSrc})
		g := ac.Understanding().DataFlow
		if len(g.Flows) != 1 || !g.Flows[0].Conditional {
			t.Fatalf("flows = %+v", g.Flows)
		}

		cfg := config.DefaultConfig()
		cfg.Analysis.IncludeConditionalFlow = false
		ac = newTestContext(t, cfg)
		ac.AddCodeNode(fileRoot("c.go"))
		a = NewAnalyzer(slogutil.NewDiscardLogger())
		runDataflow(t, a, ac, map[string]string{"c.go": condSrc})
		g = ac.Understanding().DataFlow
		if len(g.Flows) != 0 {
			t.Fatalf("conditional gate kept %d flows", len(g.Flows))
		}
	})
}

func TestRebuildReplacesGraph(t *testing.T) {
	ac := newTestContext(t, nil)
	ac.AddCodeNode(fileRoot("pipe.js"))

	a := NewAnalyzer(slogutil.NewDiscardLogger())
	runDataflow(t, a, ac, map[string]string{
		"pipe.js": "const raw = readInput(stream);\n" +
			"const parsed = decodeBody(raw);\n" +
			"writeResult(parsed);\n",
	})
	if g := ac.Understanding().DataFlow; len(g.Nodes) != 3 || len(g.Flows) != 2 {
		t.Fatalf("first run: %d nodes, %d flows", len(g.Nodes), len(g.Flows))
	}

	runDataflow(t, a, ac, map[string]string{
		"pipe.js": "writeResult(parsed);\n",
	})
	g := ac.Understanding().DataFlow
	if len(g.Nodes) != 1 || len(g.Flows) != 0 || len(g.Paths) != 0 {
		t.Fatalf("after rebuild: %d nodes, %d flows, %d paths", len(g.Nodes), len(g.Flows), len(g.Paths))
	}
}

func mkDataNode(id string, role model.DataRole) *model.DataNode {
	return &model.DataNode{ID: id, Name: id, Path: "f", Line: 1, Role: role, Confidence: 0.6}
}

func TestBuildPathsBranching(t *testing.T) {
	nodes := map[string]*model.DataNode{
		"src": mkDataNode("src", model.RoleSource),
		"mid": mkDataNode("mid", model.RoleTransformer),
		"s1":  mkDataNode("s1", model.RoleSink),
		"s2":  mkDataNode("s2", model.RoleStore),
	}
	flows := []*model.DataFlow{
		{FromID: "src", ToID: "mid", Confidence: 0.8},
		{FromID: "mid", ToID: "s2", Confidence: 0.7},
		{FromID: "mid", ToID: "s1", Confidence: 0.6},
	}
	paths := buildPaths(nodes, flows, incremental.NewHasher())
	if len(paths) != 2 {
		t.Fatalf("got %d paths: %+v", len(paths), paths)
	}
	// Neighbors are visited in id order.
	if paths[0].NodeIDs[2] != "s1" || paths[1].NodeIDs[2] != "s2" {
		t.Errorf("path order: %v, %v", paths[0].NodeIDs, paths[1].NodeIDs)
	}
	if !closeTo(paths[0].Confidence, 0.7) || !closeTo(paths[1].Confidence, 0.75) {
		t.Errorf("path confidences: %v, %v", paths[0].Confidence, paths[1].Confidence)
	}
	if len(paths[0].ID) != len("path:")+12 {
		t.Errorf("path id = %q", paths[0].ID)
	}
}

func TestBuildPathsDepthBound(t *testing.T) {
	chain := func(n int) (map[string]*model.DataNode, []*model.DataFlow) {
		nodes := map[string]*model.DataNode{}
		var flows []*model.DataFlow
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
			role := model.RoleTransformer
			switch i {
			case 0:
				role = model.RoleSource
			case n - 1:
				role = model.RoleSink
			}
			nodes[ids[i]] = mkDataNode(ids[i], role)
			if i > 0 {
				flows = append(flows, &model.DataFlow{FromID: ids[i-1], ToID: ids[i], Confidence: 0.5})
			}
		}
		return nodes, flows
	}

	nodes, flows := chain(maxPathDepth)
	if paths := buildPaths(nodes, flows, incremental.NewHasher()); len(paths) != 1 {
		t.Errorf("chain at depth bound: %d paths", len(paths))
	}
	nodes, flows = chain(maxPathDepth + 1)
	if paths := buildPaths(nodes, flows, incremental.NewHasher()); len(paths) != 0 {
		t.Errorf("chain past depth bound: %d paths", len(paths))
	}
}
