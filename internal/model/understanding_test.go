package model

import (
	"testing"
	"time"
)

func TestFileNodeExtension(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"simple", "main.go", ".go"},
		{"double", "archive.tar.gz", ".gz"},
		{"dotfile", ".gitignore", ""},
		{"none", "Makefile", ""},
		{"trailing dot name", "a.", "."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &FileNode{Name: tc.file}
			if got := f.Extension(); got != tc.want {
				t.Errorf("Extension(%q) = %q, want %q", tc.file, got, tc.want)
			}
		})
	}
}

func TestSortChildrenStableOrder(t *testing.T) {
	root := &DirectoryNode{
		Name: ".",
		Files: []*FileNode{
			{Name: "zeta.go", Path: "zeta.go"},
			{Name: "alpha.go", Path: "alpha.go"},
		},
		Directories: []*DirectoryNode{
			{Name: "pkg", Files: []*FileNode{
				{Name: "b.go", Path: "pkg/b.go"},
				{Name: "a.go", Path: "pkg/a.go"},
			}},
			{Name: "cmd"},
		},
	}
	root.SortChildren()

	tree := &FileSystemTree{Root: root}
	var order []string
	tree.Walk(func(_ *DirectoryNode, f *FileNode) {
		order = append(order, f.Path)
	})

	want := []string{"alpha.go", "zeta.go", "pkg/a.go", "pkg/b.go"}
	if len(order) != len(want) {
		t.Fatalf("walk visited %d files, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("walk order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if root.Directories[0].Name != "cmd" {
		t.Errorf("directories not sorted: first is %q", root.Directories[0].Name)
	}
}

func TestFileByPath(t *testing.T) {
	tree := &FileSystemTree{Root: &DirectoryNode{
		Name:  ".",
		Files: []*FileNode{{Name: "a.go", Path: "a.go"}},
		Directories: []*DirectoryNode{
			{Name: "sub", Files: []*FileNode{{Name: "b.go", Path: "sub/b.go"}}},
		},
	}}

	if f := tree.FileByPath("sub/b.go"); f == nil || f.Name != "b.go" {
		t.Errorf("FileByPath(sub/b.go) = %v, want b.go", f)
	}
	if f := tree.FileByPath("missing.go"); f != nil {
		t.Errorf("FileByPath(missing.go) = %v, want nil", f)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	u := NewUnderstanding("/repo")
	u.CodeNodes["n1"] = &CodeNode{
		ID: "n1", Type: NodeClass, Name: "UserService", Path: "a.ts",
		Metadata: map[string]string{"exported": "true"},
		Children: []*CodeNode{{ID: "n2", Type: NodeMethod, Name: "save"}},
	}
	u.Relationships = append(u.Relationships, &Relationship{ID: "r1", Type: RelCalls, SourceID: "n1", TargetID: "n2"})
	u.Concepts = append(u.Concepts, &Concept{ID: "c1", Name: "user", CodeElements: []string{"n1"}})
	u.FileSystem = &FileSystemTree{Root: &DirectoryNode{Name: ".", Files: []*FileNode{{Name: "a.ts", Path: "a.ts", ModTime: time.Now()}}}, FileCount: 1}

	clone := u.Clone()

	clone.CodeNodes["n1"].Name = "changed"
	clone.CodeNodes["n1"].Children[0].Name = "changed"
	clone.CodeNodes["n1"].Metadata["exported"] = "false"
	clone.Relationships[0].Type = RelExtends
	clone.Concepts[0].CodeElements[0] = "other"
	clone.FileSystem.Root.Files[0].Name = "b.ts"

	if u.CodeNodes["n1"].Name != "UserService" {
		t.Error("clone shares code node with original")
	}
	if u.CodeNodes["n1"].Children[0].Name != "save" {
		t.Error("clone shares child nodes with original")
	}
	if u.CodeNodes["n1"].Metadata["exported"] != "true" {
		t.Error("clone shares node metadata with original")
	}
	if u.Relationships[0].Type != RelCalls {
		t.Error("clone shares relationships with original")
	}
	if u.Concepts[0].CodeElements[0] != "n1" {
		t.Error("clone shares concept element slice with original")
	}
	if u.FileSystem.Root.Files[0].Name != "a.ts" {
		t.Error("clone shares file tree with original")
	}
}

func TestNodesByPath(t *testing.T) {
	u := NewUnderstanding("/repo")
	u.CodeNodes["a"] = &CodeNode{ID: "a", Path: "x.go"}
	u.CodeNodes["b"] = &CodeNode{ID: "b", Path: "x.go"}
	u.CodeNodes["c"] = &CodeNode{ID: "c", Path: "y.go"}

	byPath := u.NodesByPath()
	if len(byPath["x.go"]) != 2 {
		t.Errorf("x.go has %d nodes, want 2", len(byPath["x.go"]))
	}
	if len(byPath["y.go"]) != 1 {
		t.Errorf("y.go has %d nodes, want 1", len(byPath["y.go"]))
	}
}
