package imports

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"fathom/internal/incremental"
)

// pattern is an induced import matcher. Patterns are plain values; their
// regular expressions are compiled on first use and cached by id, and a
// pattern whose source fails to compile is skipped from then on.
//
// Capture group 1 of Source is the module specifier.
type pattern struct {
	ID      string
	Keyword string
	Source  string
	Count   int            // samples supporting this shape
	Score   map[string]int // match successes per file extension
}

// inducePatterns generalizes the most frequent sampled line shapes into
// match patterns. Only keywords seen paired with a quoted path at least
// minPairCount times take part, and at most maxPatterns shapes survive.
func inducePatterns(corpus map[string][]candidate, h *incremental.Hasher) []*pattern {
	paths := make([]string, 0, len(corpus))
	for p := range corpus {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	keywordPairs := map[string]int{}
	for _, p := range paths {
		for _, c := range corpus[p] {
			keywordPairs[c.Keyword]++
		}
	}

	type shapeKey struct{ keyword, source string }
	shapeCount := map[shapeKey]int{}
	for _, p := range paths {
		for _, c := range corpus[p] {
			if keywordPairs[c.Keyword] < minPairCount {
				continue
			}
			source := generalize(c.Raw)
			if source == "" {
				continue
			}
			shapeCount[shapeKey{c.Keyword, source}]++
		}
	}

	shapes := make([]shapeKey, 0, len(shapeCount))
	for k := range shapeCount {
		shapes = append(shapes, k)
	}
	sort.Slice(shapes, func(i, j int) bool {
		if shapeCount[shapes[i]] != shapeCount[shapes[j]] {
			return shapeCount[shapes[i]] > shapeCount[shapes[j]]
		}
		return shapes[i].source < shapes[j].source
	})
	if len(shapes) > maxPatterns {
		shapes = shapes[:maxPatterns]
	}

	out := make([]*pattern, len(shapes))
	for i, k := range shapes {
		out[i] = &pattern{
			ID:      "imp:" + h.HashFields(k.keyword, k.source)[:12],
			Keyword: k.keyword,
			Source:  k.source,
			Count:   shapeCount[k],
			Score:   map[string]int{},
		}
	}
	return out
}

// generalize turns a sampled line into a regular expression: keywords stay
// literal, the quoted path becomes the capture slot, runs of other tokens
// collapse to a lazy wildcard, whitespace is normalized. Returns "" when the
// line has no usable path slot.
func generalize(raw string) string {
	fields := strings.Fields(raw)
	segs := make([]string, 0, len(fields))
	free := false
	slotted := false
	flush := func() {
		if free {
			segs = append(segs, `.+?`)
			free = false
		}
	}
	for _, f := range fields {
		if !slotted {
			if seg, ok := quoteSlot(f); ok {
				flush()
				segs = append(segs, seg)
				slotted = true
				continue
			}
		}
		if w := strings.ToLower(fieldWord(f)); importKeywords[w] || exportKeywords[w] {
			flush()
			segs = append(segs, regexp.QuoteMeta(f))
			continue
		}
		free = true
	}
	if !slotted {
		return ""
	}
	// Tokens after the slot carry no signal and are dropped.
	return `^\s*` + strings.Join(segs, `\s+`)
}

// fieldWord extracts the letter run of a token, skipping a leading marker
// like '#'.
func fieldWord(f string) string {
	i := 0
	for i < len(f) && !isLetter(f[i]) {
		i++
	}
	j := i
	for j < len(f) && isLetter(f[j]) {
		j++
	}
	return f[i:j]
}

// quoteSlot rewrites a token around its quoted path literal, keeping the
// surrounding punctuation literal.
func quoteSlot(field string) (string, bool) {
	token, pos := quotedPathToken(field)
	if token == "" {
		return "", false
	}
	end := pos + len(token) + 2
	return regexp.QuoteMeta(field[:pos]) + `["']([^"']+)["']` + regexp.QuoteMeta(field[end:]), true
}

// patternCache compiles pattern sources on demand and remembers failures, so
// a malformed induced pattern costs one compile attempt per process.
type patternCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
	failed   map[string]bool
}

func newPatternCache() *patternCache {
	return &patternCache{
		compiled: map[string]*regexp.Regexp{},
		failed:   map[string]bool{},
	}
}

func (pc *patternCache) get(p *pattern) *regexp.Regexp {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.failed[p.ID] {
		return nil
	}
	if re, ok := pc.compiled[p.ID]; ok {
		return re
	}
	if p.Source == "" {
		pc.failed[p.ID] = true
		return nil
	}
	re, err := regexp.Compile(p.Source)
	if err != nil {
		pc.failed[p.ID] = true
		return nil
	}
	pc.compiled[p.ID] = re
	return re
}
