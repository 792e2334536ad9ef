package cluster

import (
	"math"
	"strings"
	"testing"

	"fathom/internal/model"
)

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestConventionOf(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"UserService", "PascalCase"},
		{"HTTPServer", "PascalCase"},
		{"parseBody", "camelCase"},
		{"m1", "camelCase"},
		{"user_name", "snake_case"},
		{"user-profile", "kebab-case"},
		{"MAX_RETRIES", "CONSTANT_CASE"},
		{"HTTP", "CONSTANT_CASE"},
		{"User_Name", ""},
		{"_private", ""},
		{"user.service", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := conventionOf(tt.name); got != tt.want {
			t.Errorf("conventionOf(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNameTokens(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"UserService", "user service"},
		{"XMLHttpRequest", "xml http request"},
		{"user_name", "user name"},
		{"load2Path", "load path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := strings.Join(nameTokens(tt.name), " "); got != tt.want {
			t.Errorf("nameTokens(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func classNode(id, name string) *model.CodeNode {
	return &model.CodeNode{ID: id, Type: model.NodeClass, Name: name, Path: "src/a.js"}
}

func TestBuildMatrix(t *testing.T) {
	t.Run("identical plain nodes agree on every carried metric", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		m := BuildMatrix(u, []*model.CodeNode{
			classNode("node:1", "UserService"),
			classNode("node:2", "UserService"),
		}, DefaultWeights())

		// Naming, structural and size agree fully; relationship and
		// semantic evidence is absent on both sides.
		want := 0.3 + 0.25 + 0.1
		if got := m.Sim(0, 1); !closeTo(got, want) {
			t.Errorf("Sim = %v, want %v", got, want)
		}
		if got := m.Sim(1, 0); !closeTo(got, want) {
			t.Errorf("matrix not symmetric: %v", got)
		}
		if m.Sim(0, 0) != 1 {
			t.Errorf("diagonal = %v", m.Sim(0, 0))
		}
	})

	t.Run("shared suffix and convention raise the naming metric", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		m := BuildMatrix(u, []*model.CodeNode{
			classNode("node:1", "UserService"),
			classNode("node:2", "OrderService"),
		}, DefaultWeights())

		// Affix and convention match, tokens overlap one in three.
		naming := (1.0 + 1.0 + 1.0/3.0) / 3.0
		want := 0.3*naming + 0.25 + 0.1
		if got := m.Sim(0, 1); !closeTo(got, want) {
			t.Errorf("Sim = %v, want %v", got, want)
		}
	})

	t.Run("relationship evidence requires both sides in the graph", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		u.Relationships = append(u.Relationships,
			&model.Relationship{ID: "r1", Type: model.RelCalls, SourceID: "node:1", TargetID: "node:9"},
			&model.Relationship{ID: "r2", Type: model.RelCalls, SourceID: "node:2", TargetID: "node:8"},
		)
		m := BuildMatrix(u, []*model.CodeNode{
			classNode("node:1", "UserService"),
			classNode("node:2", "UserService"),
			classNode("node:3", "UserService"),
		}, DefaultWeights())

		// Nodes 1 and 2 both make one outgoing call: same type set, same
		// out ratio.
		linked := 0.3 + 0.25 + 0.2 + 0.1
		if got := m.Sim(0, 1); !closeTo(got, linked) {
			t.Errorf("Sim(linked pair) = %v, want %v", got, linked)
		}
		// Node 3 is outside the graph, so the pair carries no evidence.
		unlinked := 0.3 + 0.25 + 0.1
		if got := m.Sim(0, 2); !closeTo(got, unlinked) {
			t.Errorf("Sim(half-linked pair) = %v, want %v", got, unlinked)
		}
	})

	t.Run("shared units and concepts raise the semantic metric", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		u.SemanticUnits = append(u.SemanticUnits, &model.SemanticUnit{
			ID: "unit:dir:src", CodeNodeIDs: []string{"node:1", "node:2"},
		})
		u.Concepts = append(u.Concepts, &model.Concept{
			ID: "concept:user", CodeElements: []string{"node:1", "node:2"},
		})
		m := BuildMatrix(u, []*model.CodeNode{
			classNode("node:1", "UserService"),
			classNode("node:2", "UserService"),
		}, DefaultWeights())

		want := 0.3 + 0.25 + 0.15 + 0.1
		if got := m.Sim(0, 1); !closeTo(got, want) {
			t.Errorf("Sim = %v, want %v", got, want)
		}
	})

	t.Run("span feeds both structural and size metrics", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		long := classNode("node:1", "UserService")
		long.Location = model.Location{StartLine: 1, EndLine: 10}
		short := classNode("node:2", "UserService")
		short.Location = model.Location{StartLine: 1, EndLine: 5}
		m := BuildMatrix(u, []*model.CodeNode{long, short}, DefaultWeights())

		structural := (1.0 + 1.0 + 0.5) / 3.0
		want := 0.3 + 0.25*structural + 0.1*0.5
		if got := m.Sim(0, 1); !closeTo(got, want) {
			t.Errorf("Sim = %v, want %v", got, want)
		}
	})

	t.Run("child composition feeds the structural metric", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		balanced := classNode("node:1", "Alpha")
		balanced.Children = []*model.CodeNode{
			{ID: "node:1.1", Type: model.NodeMethod, Name: "run"},
			{ID: "node:1.2", Type: model.NodeProperty, Name: "state"},
		}
		lean := classNode("node:2", "Alpha")
		lean.Children = []*model.CodeNode{
			{ID: "node:2.1", Type: model.NodeMethod, Name: "run"},
		}
		m := BuildMatrix(u, []*model.CodeNode{balanced, lean}, MetricWeights{Structural: 1})

		// Count ratio one half, half the type distribution shared.
		children := (0.5 + 0.5) / 2.0
		want := (1.0 + children + 1.0) / 3.0
		if got := m.Sim(0, 1); !closeTo(got, want) {
			t.Errorf("Sim = %v, want %v", got, want)
		}
	})

	t.Run("zero weights disable metrics", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		m := BuildMatrix(u, []*model.CodeNode{
			classNode("node:1", "UserService"),
			classNode("node:2", "OrderService"),
		}, MetricWeights{Naming: 1})

		want := (1.0 + 1.0 + 1.0/3.0) / 3.0
		if got := m.Sim(0, 1); !closeTo(got, want) {
			t.Errorf("Sim = %v, want %v", got, want)
		}
	})

	t.Run("nodes are ordered by id", func(t *testing.T) {
		u := model.NewUnderstanding("/repo")
		m := BuildMatrix(u, []*model.CodeNode{
			classNode("node:2", "Beta"),
			classNode("node:1", "Alpha"),
		}, DefaultWeights())

		if m.NodeID(0) != "node:1" || m.NodeID(1) != "node:2" {
			t.Errorf("order = %s, %s", m.NodeID(0), m.NodeID(1))
		}
	})
}
