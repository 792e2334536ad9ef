package imports

import (
	"strings"
	"testing"

	"fathom/internal/incremental"
)

func TestGeneralize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`import "fmt"`, `^\s*import\s+["']([^"']+)["']`},
		{`import React from 'react';`, `^\s*import\s+.+?\s+from\s+["']([^"']+)["'];`},
		{`const db = require('./db');`, `^\s*.+?\s+require\(["']([^"']+)["']\);`},
		{`#include "config.h"`, `^\s*#include\s+["']([^"']+)["']`},
		{`"fmt"`, `^\s*["']([^"']+)["']`},
		{`no path slot here`, ``},
	}
	for _, tt := range tests {
		if got := generalize(tt.raw); got != tt.want {
			t.Errorf("generalize(%q)\n got %q\nwant %q", tt.raw, got, tt.want)
		}
	}
}

func TestGeneralizedPatternMatchesItsOwnShape(t *testing.T) {
	cache := newPatternCache()
	lines := []string{
		`import { a, b } from './other';`,
		`import Single from "pkg";`,
	}
	source := generalize(lines[0])
	re := cache.get(&pattern{ID: "t", Source: source})
	if re == nil {
		t.Fatalf("induced source did not compile: %q", source)
	}
	for _, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			t.Errorf("%q does not match its own generalization %q", line, source)
		}
	}
	if m := re.FindStringSubmatch(lines[0]); m[1] != "./other" {
		t.Errorf("captured %q, want ./other", m[1])
	}
}

func TestInducePatterns(t *testing.T) {
	corpus := map[string][]candidate{
		"a.js": {
			{Line: 1, Keyword: "import", Raw: `import x from './x';`},
			{Line: 2, Keyword: "import", Raw: `import y from './y';`},
		},
		"b.js": {
			{Line: 1, Keyword: "import", Raw: `import z from './z';`},
		},
		"c.rb": {
			{Line: 1, Keyword: "require", Raw: `require 'json'`},
		},
	}
	patterns := inducePatterns(corpus, incremental.NewHasher())

	if len(patterns) != 1 {
		t.Fatalf("got %d patterns: %+v", len(patterns), patterns)
	}
	p := patterns[0]
	if p.Keyword != "import" || p.Count != 3 {
		t.Errorf("pattern = %+v", p)
	}
	if p.Source != `^\s*import\s+.+?\s+from\s+["']([^"']+)["'];` {
		t.Errorf("source = %q", p.Source)
	}
	if !strings.HasPrefix(p.ID, "imp:") || len(p.ID) != len("imp:")+12 {
		t.Errorf("id = %q", p.ID)
	}

	// Same corpus, fresh hasher: ids must be reproducible.
	again := inducePatterns(corpus, incremental.NewHasher())
	if again[0].ID != p.ID {
		t.Errorf("id changed across runs: %q vs %q", again[0].ID, p.ID)
	}
}

func TestInducePatternsCap(t *testing.T) {
	corpus := map[string][]candidate{}
	// Two files per shape so every keyword qualifies, each shape distinct.
	for i := 0; i < maxPatterns+8; i++ {
		suffix := strings.Repeat(";", i+1)
		raw := `import "mod"` + suffix
		name := string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".js"
		corpus[name] = []candidate{
			{Line: 1, Keyword: "import", Raw: raw},
			{Line: 2, Keyword: "import", Raw: raw},
		}
	}
	patterns := inducePatterns(corpus, incremental.NewHasher())
	if len(patterns) != maxPatterns {
		t.Errorf("got %d patterns, want %d", len(patterns), maxPatterns)
	}
}

func TestPatternCache(t *testing.T) {
	cache := newPatternCache()

	ok := &pattern{ID: "ok", Source: `^x(y)`}
	first := cache.get(ok)
	if first == nil {
		t.Fatal("valid pattern did not compile")
	}
	if second := cache.get(ok); second != first {
		t.Error("compiled regexp not reused")
	}

	bad := &pattern{ID: "bad", Source: `(`}
	if cache.get(bad) != nil {
		t.Error("malformed pattern compiled")
	}
	if cache.get(bad) != nil {
		t.Error("failure not remembered")
	}

	empty := &pattern{ID: "empty", Source: ""}
	if cache.get(empty) != nil {
		t.Error("empty source compiled")
	}
}
