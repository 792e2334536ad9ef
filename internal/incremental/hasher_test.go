package incremental

import (
	"testing"

	"fathom/internal/model"
)

func buildTestTree(contents map[string]string) *model.FileSystemTree {
	h := NewHasher()
	root := &model.DirectoryNode{Path: ".", Name: "."}
	tree := &model.FileSystemTree{Root: root}

	dirs := map[string]*model.DirectoryNode{".": root}
	var ensureDir func(path string) *model.DirectoryNode
	ensureDir = func(path string) *model.DirectoryNode {
		if d, ok := dirs[path]; ok {
			return d
		}
		parent := "."
		name := path
		for i := len(path) - 1; i >= 0; i-- {
			if path[i] == '/' {
				parent = path[:i]
				name = path[i+1:]
				break
			}
		}
		p := ensureDir(parent)
		d := &model.DirectoryNode{Path: path, Name: name}
		p.Directories = append(p.Directories, d)
		dirs[path] = d
		return d
	}

	for path, content := range contents {
		dir := "."
		name := path
		for i := len(path) - 1; i >= 0; i-- {
			if path[i] == '/' {
				dir = path[:i]
				name = path[i+1:]
				break
			}
		}
		d := ensureDir(dir)
		d.Files = append(d.Files, &model.FileNode{
			Path: path, Name: name,
			Size:        int64(len(content)),
			ContentHash: h.HashBytes([]byte(content)),
		})
		tree.FileCount++
	}
	root.SortChildren()
	return tree
}

func TestHashDeterminism(t *testing.T) {
	contents := map[string]string{
		"src/a.go": "package a",
		"src/b.go": "package b",
		"main.go":  "package main",
	}
	h := NewHasher()

	first := h.HashTree(buildTestTree(contents))
	second := h.HashTree(buildTestTree(contents))

	if first == "" {
		t.Fatal("empty root hash")
	}
	if first != second {
		t.Errorf("same content hashed differently: %s vs %s", first, second)
	}
}

func TestHashPropagatesToAncestorsOnly(t *testing.T) {
	h := NewHasher()
	base := map[string]string{
		"src/a.go":   "package a",
		"src/b.go":   "package b",
		"other/c.go": "package c",
	}
	before := buildTestTree(base)
	h.HashTree(before)

	base["src/a.go"] = "package a // changed"
	after := buildTestTree(base)
	h.HashTree(after)

	dirHash := func(tree *model.FileSystemTree, path string) string {
		var find func(d *model.DirectoryNode) string
		find = func(d *model.DirectoryNode) string {
			if d.Path == path {
				return d.ContentHash
			}
			for _, sub := range d.Directories {
				if hash := find(sub); hash != "" {
					return hash
				}
			}
			return ""
		}
		return find(tree.Root)
	}

	if before.Root.ContentHash == after.Root.ContentHash {
		t.Error("root hash did not change after file edit")
	}
	if dirHash(before, "src") == dirHash(after, "src") {
		t.Error("changed file's directory hash did not change")
	}
	if dirHash(before, "other") != dirHash(after, "other") {
		t.Error("sibling directory hash changed without content change")
	}
	if before.FileByPath("src/b.go").ContentHash != after.FileByPath("src/b.go").ContentHash {
		t.Error("untouched sibling file hash changed")
	}
}

func TestHashChildrenOrderIndependent(t *testing.T) {
	h := NewHasher()
	a := h.HashChildren([]string{"h1", "h2", "h3"})
	b := h.HashChildren([]string{"h3", "h1", "h2"})
	if a != b {
		t.Error("child order affected composite hash")
	}
	c := h.HashChildren([]string{"h1", "h2"})
	if a == c {
		t.Error("different child sets hashed identically")
	}
}

func TestHashFieldsBoundaries(t *testing.T) {
	h := NewHasher()
	if h.HashFields("ab", "c") == h.HashFields("a", "bc") {
		t.Error("field boundaries not preserved in hash")
	}
}

func TestUnderstandingHashIgnoresIDs(t *testing.T) {
	build := func() *model.UnifiedUnderstanding {
		u := model.NewUnderstanding("/repo") // fresh uuid each time
		u.CodeNodes["file:a.ts:class:Widget:1"] = &model.CodeNode{
			ID: "file:a.ts:class:Widget:1", Type: model.NodeClass, Name: "Widget",
			Path: "a.ts", Location: model.Location{StartLine: 1, EndLine: 10},
		}
		u.Relationships = append(u.Relationships, &model.Relationship{
			ID: "rel-1", Type: model.RelCalls,
			SourceID: "file:a.ts:class:Widget:1", TargetID: "file:b.ts:function:draw:3",
			Weight: 1,
		})
		u.Concepts = append(u.Concepts, &model.Concept{
			ID: "concept-widget", Name: "widget", CodeElements: []string{"file:a.ts:class:Widget:1"},
		})
		return u
	}

	h := NewHasher()
	first := build()
	second := build()
	if first.ID == second.ID {
		t.Fatal("test needs distinct understanding ids")
	}
	if h.HashUnderstanding(first) != h.HashUnderstanding(second) {
		t.Error("understanding hash depends on run identity")
	}
}

func TestCodeNodeHashCoversChildren(t *testing.T) {
	h := NewHasher()
	node := func(childName string) *model.CodeNode {
		return &model.CodeNode{
			Type: model.NodeClass, Name: "Svc", Path: "svc.ts",
			Location: model.Location{StartLine: 1, EndLine: 20},
			Children: []*model.CodeNode{{
				Type: model.NodeMethod, Name: childName, Path: "svc.ts",
				Location: model.Location{StartLine: 2, EndLine: 5},
			}},
		}
	}

	if h.HashCodeNode(node("save")) == h.HashCodeNode(node("load")) {
		t.Error("child rename did not change parent hash")
	}
	if h.HashCodeNode(node("save")) != h.HashCodeNode(node("save")) {
		t.Error("identical nodes hashed differently")
	}
}
