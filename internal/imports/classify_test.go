package imports

import (
	"strings"
	"testing"

	"fathom/internal/model"
)

// testTree builds a file tree from slash-separated paths.
func testTree(paths ...string) *model.FileSystemTree {
	root := &model.DirectoryNode{}
	for _, p := range paths {
		dir := root
		parts := strings.Split(p, "/")
		for i := 0; i < len(parts)-1; i++ {
			var next *model.DirectoryNode
			for _, d := range dir.Directories {
				if d.Name == parts[i] {
					next = d
					break
				}
			}
			if next == nil {
				next = &model.DirectoryNode{
					Path: strings.Join(parts[:i+1], "/"),
					Name: parts[i],
				}
				dir.Directories = append(dir.Directories, next)
			}
			dir = next
		}
		dir.Files = append(dir.Files, &model.FileNode{Path: p, Name: parts[len(parts)-1]})
	}
	return &model.FileSystemTree{Root: root, FileCount: len(paths)}
}

func testResolver(paths ...string) *resolver {
	u := model.NewUnderstanding("/repo")
	u.FileSystem = testTree(paths...)
	return newResolver(u)
}

func TestClassifyLocal(t *testing.T) {
	r := testResolver("src/app.js", "src/db.js", "src/utils/index.js", "lib/helper.py", "lib/lib.py")

	tests := []struct {
		source, spec string
		wantType     model.DependencyType
		wantResolved string
	}{
		{"src/app.js", "./db", model.DepLocalFile, "src/db.js"},
		{"src/app.js", "./utils", model.DepLocalFile, "src/utils/index.js"},
		{"src/app.js", "../lib/helper", model.DepLocalFile, "lib/helper.py"},
		{"src/app.js", "../lib", model.DepLocalFile, "lib/lib.py"},
		{"src/app.js", "./missing", model.DepLocalFile, ""},
		{"src/app.js", "../../outside", model.DepLocalFile, ""},
	}
	for _, tt := range tests {
		depType, resolved, conf := r.classify(tt.source, tt.spec)
		if depType != tt.wantType || resolved != tt.wantResolved {
			t.Errorf("classify(%s, %s) = %s %q", tt.source, tt.spec, depType, resolved)
		}
		if resolved != "" && conf != 0.95 {
			t.Errorf("resolved local %s has confidence %v", tt.spec, conf)
		}
	}
}

func TestClassifyInternal(t *testing.T) {
	r := testResolver("src/app.js", "src/utils/index.js", "lib/helper.py")

	depType, resolved, conf := r.classify("lib/helper.py", "src/utils")
	if depType != model.DepInternalModule || resolved != "src/utils/index.js" || conf != 0.9 {
		t.Errorf("got %s %q %v", depType, resolved, conf)
	}

	depType, resolved, _ = r.classify("lib/helper.py", "src/nothing/here")
	if depType != model.DepInternalModule || resolved != "" {
		t.Errorf("got %s %q", depType, resolved)
	}

	// A leading slash is treated as tree-rooted.
	depType, resolved, _ = r.classify("lib/helper.py", "/src/app")
	if depType != model.DepInternalModule || resolved != "src/app.js" {
		t.Errorf("got %s %q", depType, resolved)
	}
}

func TestClassifyExternalAndStdlib(t *testing.T) {
	r := testResolver("cmd/main.go", "pkg/server.go")

	if depType, _, _ := r.classify("cmd/main.go", "github.com/spf13/viper"); depType != model.DepExternalPackage {
		t.Errorf("host-shaped specifier = %s", depType)
	}
	if depType, _, _ := r.classify("cmd/main.go", "@scope/pkg"); depType != model.DepExternalPackage {
		t.Errorf("scoped specifier = %s", depType)
	}

	// Imported once: not enough corpus evidence for a standard library call.
	r.record("cmd/main.go", "fmt")
	if depType, _, conf := r.classify("cmd/main.go", "fmt"); depType != model.DepExternalPackage || conf != 0.5 {
		t.Errorf("bare single-importer specifier = %s %v", depType, conf)
	}

	// Imported from two directories with no in-tree resolution.
	r.record("pkg/server.go", "fmt")
	depType, resolved, conf := r.classify("cmd/main.go", "fmt")
	if depType != model.DepStandardLibrary || resolved != "" {
		t.Errorf("got %s %q", depType, resolved)
	}
	if conf != 0.7 {
		t.Errorf("stdlib confidence = %v", conf)
	}
}

func TestResolveFromPrefersCommonExtension(t *testing.T) {
	// Three .ts files and one .js file: the .ts probe must win.
	r := testResolver("a.ts", "b.ts", "c.ts", "util.js", "util.ts")
	if _, resolved, _ := r.classify("a.ts", "./util"); resolved != "util.ts" {
		t.Errorf("resolved %q, want util.ts", resolved)
	}
}
