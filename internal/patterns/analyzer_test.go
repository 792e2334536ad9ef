package patterns

import (
	"context"
	"fmt"
	"math"
	"path"
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

func fileRoot(p string) *model.CodeNode {
	return &model.CodeNode{ID: "node:" + p, Type: model.NodeFile, Name: path.Base(p), Path: p}
}

// addTypeNodes registers one node per name, all of the given type.
func addTypeNodes(ac *engine.Context, typ model.NodeType, p string, names ...string) {
	for i, name := range names {
		ac.AddCodeNode(&model.CodeNode{
			ID:       fmt.Sprintf("node:%s#%s:%s@%d", p, typ, name, i+1),
			Type:     typ,
			Name:     name,
			Path:     p,
			Location: model.Location{StartLine: i + 1, EndLine: i + 1},
		})
	}
}

func runDiscover(t *testing.T, ac *engine.Context) []*model.CodePattern {
	t.Helper()
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	if err := a.Initialize(ac); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := a.DiscoverPatterns(ac); err != nil {
		t.Fatalf("DiscoverPatterns: %v", err)
	}
	return ac.Understanding().Patterns
}

func findPattern(t *testing.T, patterns []*model.CodePattern, id string) *model.CodePattern {
	t.Helper()
	for _, p := range patterns {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("pattern %s not registered, have %d patterns", id, len(patterns))
	return nil
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestAnalyzerIdentity(t *testing.T) {
	a := NewAnalyzer(slogutil.NewDiscardLogger())
	if a.ID() != "patterns" {
		t.Errorf("ID = %q", a.ID())
	}
	if a.Priority() != 50 {
		t.Errorf("Priority = %d", a.Priority())
	}
	if len(a.Dependencies()) != 1 || a.Dependencies()[0] != "structure" {
		t.Errorf("Dependencies = %v", a.Dependencies())
	}
}

func TestNamingConventionCensus(t *testing.T) {
	t.Run("dominant convention registers", func(t *testing.T) {
		ac := newTestContext(t)
		addTypeNodes(ac, model.NodeClass, "src/app.js",
			"UserService", "OrderService", "PaymentGateway", "InvoiceStore",
			"AccountManager", "TokenIssuer", "ReportBuilder", "SessionPool",
			"legacy_handler", "old_parser")

		patterns := runDiscover(t, ac)
		if len(patterns) != 1 {
			t.Fatalf("got %d patterns, want 1: %v", len(patterns), patterns)
		}
		p := findPattern(t, patterns, "pat:naming:class:PascalCase")
		if p.Type != model.PatternNaming {
			t.Errorf("Type = %q", p.Type)
		}
		if !closeTo(p.Confidence, 0.8) {
			t.Errorf("Confidence = %v, want 0.8", p.Confidence)
		}
		if p.Frequency != 8 || len(p.Instances) != 8 {
			t.Errorf("Frequency = %d, instances = %d, want 8/8", p.Frequency, len(p.Instances))
		}
		if p.Signature.NodeType != model.NodeClass || p.Signature.Convention != "PascalCase" {
			t.Errorf("Signature = %+v", p.Signature)
		}
		for _, inst := range p.Instances {
			if inst.MatchScore != 1 {
				t.Errorf("instance %s matchScore = %v", inst.NodeID, inst.MatchScore)
			}
		}
		if p.ContentHash == "" {
			t.Error("pattern not hashed")
		}
	})

	t.Run("below dominance", func(t *testing.T) {
		ac := newTestContext(t)
		addTypeNodes(ac, model.NodeClass, "src/app.js",
			"UserGate", "OrderRig", "TokenJar", "ReportBin",
			"legacy_handler", "old_parser", "raw_feed",
			"Tmp_Shim", "Big_Blob", "Odd_Duck")

		if patterns := runDiscover(t, ac); len(patterns) != 0 {
			t.Fatalf("got %d patterns, want none: %v", len(patterns), patterns)
		}
	})

	t.Run("small population", func(t *testing.T) {
		ac := newTestContext(t)
		addTypeNodes(ac, model.NodeClass, "src/app.js", "UserService", "OrderService")

		if patterns := runDiscover(t, ac); len(patterns) != 0 {
			t.Fatalf("got %d patterns, want none: %v", len(patterns), patterns)
		}
	})
}

// File names census their stem, so extensions never skew the convention and
// dotfiles stay out of the population.
func TestFileNameCensus(t *testing.T) {
	ac := newTestContext(t)
	for _, p := range []string{"src/user-profile.js", "src/order-form.js", "src/cart-view.js", "src/api-client.js"} {
		ac.AddCodeNode(fileRoot(p))
	}
	ac.AddCodeNode(fileRoot("src/.env"))

	patterns := runDiscover(t, ac)
	p := findPattern(t, patterns, "pat:naming:file:kebab-case")
	if !closeTo(p.Confidence, 1.0) {
		t.Errorf("Confidence = %v, want 1.0", p.Confidence)
	}
	if p.Frequency != 4 {
		t.Errorf("Frequency = %d, want 4", p.Frequency)
	}
}

func TestAffixCensus(t *testing.T) {
	ac := newTestContext(t)
	addTypeNodes(ac, model.NodeClass, "src/services.js",
		"UserService", "OrderService", "PaymentService", "AuthService")

	patterns := runDiscover(t, ac)
	if len(patterns) != 2 {
		t.Fatalf("got %d patterns, want naming + affix: %v", len(patterns), patterns)
	}
	p := findPattern(t, patterns, "pat:affix:class:suffix:service")
	if p.Type != model.PatternNaming {
		t.Errorf("Type = %q", p.Type)
	}
	if p.Name != `class names with suffix "service"` {
		t.Errorf("Name = %q", p.Name)
	}
	if !closeTo(p.Confidence, 1.0) || p.Frequency != 4 {
		t.Errorf("Confidence = %v, Frequency = %d", p.Confidence, p.Frequency)
	}
	if p.Signature.Affix != "service" || p.Signature.AffixKind != model.AffixSuffix {
		t.Errorf("Signature = %+v", p.Signature)
	}
}

func TestStructuralCensus(t *testing.T) {
	ac := newTestContext(t)
	mkClass := func(name string, childTypes ...model.NodeType) {
		n := &model.CodeNode{
			ID:   "node:src/app.js#class:" + name + "@1",
			Type: model.NodeClass, Name: name, Path: "src/app.js",
		}
		for i, ct := range childTypes {
			n.Children = append(n.Children, &model.CodeNode{
				ID:   fmt.Sprintf("%s/%s@%d", n.ID, ct, i),
				Type: ct, Name: "m", Path: n.Path,
			})
		}
		ac.AddCodeNode(n)
	}
	mkClass("Alpha", model.NodeMethod, model.NodeProperty)
	mkClass("Beta", model.NodeMethod, model.NodeProperty)
	mkClass("Gamma", model.NodeProperty, model.NodeMethod)
	mkClass("Delta", model.NodeMethod)

	patterns := runDiscover(t, ac)
	p := findPattern(t, patterns, "pat:structure:class:method+property")
	if p.Type != model.PatternStructural {
		t.Errorf("Type = %q", p.Type)
	}
	if !closeTo(p.Confidence, 0.75) {
		t.Errorf("Confidence = %v, want 0.75", p.Confidence)
	}
	if p.Frequency != 3 || len(p.Instances) != 3 {
		t.Errorf("Frequency = %d, instances = %d, want 3/3", p.Frequency, len(p.Instances))
	}
	if len(p.Signature.ChildTypes) != 2 || p.Signature.ChildTypes[0] != "method" || p.Signature.ChildTypes[1] != "property" {
		t.Errorf("ChildTypes = %v", p.Signature.ChildTypes)
	}
	if p.Name != "class containing method, property" {
		t.Errorf("Name = %q", p.Name)
	}
}

func TestOrganizationCensus(t *testing.T) {
	ac := newTestContext(t)
	u := ac.Understanding()

	mkFile := func(p string, declTypes ...model.NodeType) *model.FileNode {
		root := fileRoot(p)
		for i, dt := range declTypes {
			root.Children = append(root.Children, &model.CodeNode{
				ID:   fmt.Sprintf("%s#%s:d%d@%d", root.ID, dt, i, i+1),
				Type: dt, Name: fmt.Sprintf("d%d", i), Path: p,
			})
		}
		ac.AddCodeNode(root)
		return &model.FileNode{Path: p, Name: path.Base(p)}
	}

	records := &model.DirectoryNode{Path: "records", Name: "records", Files: []*model.FileNode{
		mkFile("records/r1.js", model.NodeClass),
		mkFile("records/r2.js", model.NodeClass),
		mkFile("records/r3.js", model.NodeClass),
	}}
	mixed := &model.DirectoryNode{Path: "mixed", Name: "mixed", Files: []*model.FileNode{
		mkFile("mixed/x1.js", model.NodeClass),
		mkFile("mixed/x2.js", model.NodeFunction),
		mkFile("mixed/x3.js", model.NodeVariable),
	}}
	u.FileSystem = &model.FileSystemTree{
		Root:      &model.DirectoryNode{Path: ".", Name: ".", Directories: []*model.DirectoryNode{mixed, records}},
		FileCount: 6,
		DirCount:  2,
	}

	patterns := runDiscover(t, ac)
	p := findPattern(t, patterns, "pat:org:records:class")
	if p.Type != model.PatternOrganization {
		t.Errorf("Type = %q", p.Type)
	}
	if !closeTo(p.Confidence, 1.0) || p.Frequency != 3 {
		t.Errorf("Confidence = %v, Frequency = %d", p.Confidence, p.Frequency)
	}
	if p.Signature.Directory != "records" || p.Signature.NodeType != model.NodeClass {
		t.Errorf("Signature = %+v", p.Signature)
	}
	for _, pat := range patterns {
		if pat.Type == model.PatternOrganization && pat.Signature.Directory == "mixed" {
			t.Errorf("mixed directory registered: %+v", pat)
		}
	}
}

func newArchContext(t *testing.T) *engine.Context {
	t.Helper()
	ac := newTestContext(t)
	u := ac.Understanding()

	mkDir := func(name string, paths ...string) *model.DirectoryNode {
		d := &model.DirectoryNode{Path: name, Name: name}
		for _, p := range paths {
			ac.AddCodeNode(fileRoot(p))
			d.Files = append(d.Files, &model.FileNode{Path: p, Name: path.Base(p)})
		}
		return d
	}
	controllers := mkDir("controllers", "controllers/c1.js", "controllers/c2.js")
	models := mkDir("models", "models/m1.js", "models/m2.js")
	u.FileSystem = &model.FileSystemTree{
		Root:      &model.DirectoryNode{Path: ".", Name: ".", Directories: []*model.DirectoryNode{controllers, models}},
		FileCount: 4,
		DirCount:  2,
	}
	return ac
}

func addImportEdge(ac *engine.Context, from, to string) {
	ac.AddRelationship(&model.Relationship{
		ID:       "rel:imports:node:" + from + "->node:" + to,
		Type:     model.RelImports,
		SourceID: "node:" + from,
		TargetID: "node:" + to,
		Weight:   1, Confidence: 0.9,
	})
}

func TestArchitectureCensus(t *testing.T) {
	uncorroborated := archBaseConfidence + archHitWeight*2.0/3.0

	t.Run("one way imports corroborate", func(t *testing.T) {
		ac := newArchContext(t)
		addImportEdge(ac, "controllers/c1.js", "models/m1.js")
		addImportEdge(ac, "controllers/c2.js", "models/m2.js")

		p := findPattern(t, runDiscover(t, ac), "pat:arch:mvc")
		if p.Type != model.PatternArchitecture || p.Signature.Style != "mvc" {
			t.Errorf("Type = %q, Signature = %+v", p.Type, p.Signature)
		}
		if !closeTo(p.Confidence, uncorroborated+archCorroborationBonus) {
			t.Errorf("Confidence = %v, want %v", p.Confidence, uncorroborated+archCorroborationBonus)
		}
		if p.Frequency != 2 {
			t.Errorf("Frequency = %d, want 2 layer directories", p.Frequency)
		}
		if len(p.Instances) != 4 {
			t.Errorf("got %d instances, want the 4 layer files", len(p.Instances))
		}
	})

	t.Run("two way traffic is no corroboration", func(t *testing.T) {
		ac := newArchContext(t)
		addImportEdge(ac, "controllers/c1.js", "models/m1.js")
		addImportEdge(ac, "models/m2.js", "controllers/c2.js")

		p := findPattern(t, runDiscover(t, ac), "pat:arch:mvc")
		if !closeTo(p.Confidence, uncorroborated) {
			t.Errorf("Confidence = %v, want %v", p.Confidence, uncorroborated)
		}
	})

	t.Run("no cross imports", func(t *testing.T) {
		ac := newArchContext(t)

		p := findPattern(t, runDiscover(t, ac), "pat:arch:mvc")
		if !closeTo(p.Confidence, uncorroborated) {
			t.Errorf("Confidence = %v, want %v", p.Confidence, uncorroborated)
		}
	})
}

func TestRediscoverReplacesPatterns(t *testing.T) {
	ac := newTestContext(t)
	addTypeNodes(ac, model.NodeClass, "src/services.js",
		"UserService", "OrderService", "PaymentService", "AuthService")

	first := runDiscover(t, ac)
	second := runDiscover(t, ac)
	if len(first) != len(second) {
		t.Fatalf("rediscovery changed pattern count: %d then %d", len(first), len(second))
	}
}

func TestDominantGroupTie(t *testing.T) {
	a := &model.CodeNode{ID: "n1"}
	b := &model.CodeNode{ID: "n2"}
	key, members := dominantGroup(map[string][]*model.CodeNode{
		"beta":  {b},
		"alpha": {a},
	})
	if key != "alpha" || len(members) != 1 {
		t.Errorf("tie broke to %q with %d members, want alpha", key, len(members))
	}
}
