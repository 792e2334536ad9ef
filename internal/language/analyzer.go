// Package language groups the scanned files into languages without any
// built-in language registry. Grouping starts from an extension histogram,
// merges related extensions, and names each language after its dominant
// extension stem. Paradigm evidence is tallied from file content during
// content analysis and folded into the result at integration.
package language

import (
	"log/slog"
	"strings"
	"sync"

	"fathom/internal/engine"
	"fathom/internal/model"
)

// Paradigm labels attached to languages when the evidence supports them.
const (
	ParadigmObjectOriented = "object-oriented"
	ParadigmFunctional     = "functional"
)

// paradigmShare is the minimum share of total keyword hits a paradigm needs
// to be reported as dominant.
const paradigmShare = 0.25

// Analyzer implements language detection. It satisfies the coordinator's
// LanguageProvider capability so detection runs during discovery.
type Analyzer struct {
	logger *slog.Logger

	mu      sync.Mutex
	tallies map[string]*paradigmTally // keyed by extension, including the dot
}

type paradigmTally struct {
	objectOriented int
	functional     int
}

// NewAnalyzer creates the language analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

var _ engine.LanguageProvider = (*Analyzer)(nil)

func (a *Analyzer) ID() string             { return "language" }
func (a *Analyzer) Priority() int          { return 10 }
func (a *Analyzer) Dependencies() []string { return nil }

func (a *Analyzer) Initialize(ac *engine.Context) error {
	a.mu.Lock()
	a.tallies = make(map[string]*paradigmTally)
	a.mu.Unlock()
	return nil
}

// DetectLanguages builds the language map from the scanned tree. Called by
// the coordinator during discovery, before content analysis.
func (a *Analyzer) DetectLanguages(ac *engine.Context) (map[string]*model.LanguageStructure, error) {
	tree := ac.Understanding().FileSystem
	langs := detect(tree)
	a.logger.Debug("Languages detected", "count", len(langs))
	return langs, nil
}

// AnalyzeFile tallies paradigm keyword evidence for the file's extension.
func (a *Analyzer) AnalyzeFile(ac *engine.Context, file *model.FileNode, content []byte) error {
	ext := file.Extension()
	if ext == "" {
		return nil
	}
	oo, fn := countParadigmHits(content)
	if oo == 0 && fn == 0 {
		return nil
	}
	a.mu.Lock()
	t, ok := a.tallies[ext]
	if !ok {
		t = &paradigmTally{}
		a.tallies[ext] = t
	}
	t.objectOriented += oo
	t.functional += fn
	a.mu.Unlock()
	return nil
}

func (a *Analyzer) ProcessRelationships(ac *engine.Context) error { return nil }
func (a *Analyzer) DiscoverPatterns(ac *engine.Context) error     { return nil }

// IntegrateAnalysis folds the collected paradigm evidence into the detected
// languages.
func (a *Analyzer) IntegrateAnalysis(ac *engine.Context) error {
	a.mu.Lock()
	tallies := a.tallies
	a.mu.Unlock()

	for _, lang := range ac.Understanding().Languages {
		oo, fn := 0, 0
		for _, ext := range lang.Extensions {
			if t, ok := tallies[ext]; ok {
				oo += t.objectOriented
				fn += t.functional
			}
		}
		lang.DominantParadigms = dominantParadigms(oo, fn)
	}
	return nil
}

func (a *Analyzer) Cleanup(ac *engine.Context) error {
	a.mu.Lock()
	a.tallies = nil
	a.mu.Unlock()
	return nil
}

// Keyword evidence. These are cross-language keyword sets, not a grammar:
// a hit is a whole identifier token equal to the keyword.
var ooKeywords = map[string]bool{
	"class": true, "extends": true, "implements": true,
	"this": true, "self": true, "interface": true, "inherit": true,
}

var fnKeywords = map[string]bool{
	"lambda": true, "func": true, "fn": true, "match": true, "let": true,
}

// fnShapes are substring hits that only make sense in functional call chains
// or arrow syntax.
var fnShapes = []string{"=>", ".map(", ".filter(", ".reduce("}

// countParadigmHits scans the content once, counting identifier tokens that
// match either keyword set, then adds shape hits to the functional side.
func countParadigmHits(content []byte) (oo, fn int) {
	start := -1
	for i := 0; i <= len(content); i++ {
		var c byte
		if i < len(content) {
			c = content[i]
		}
		isWord := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if isWord {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			word := string(content[start:i])
			if ooKeywords[word] {
				oo++
			} else if fnKeywords[word] {
				fn++
			}
			start = -1
		}
	}
	s := string(content)
	for _, shape := range fnShapes {
		fn += strings.Count(s, shape)
	}
	return oo, fn
}

// dominantParadigms reports the paradigms whose evidence share passes the
// threshold, strongest first.
func dominantParadigms(oo, fn int) []string {
	total := oo + fn
	if total == 0 {
		return nil
	}
	var out []string
	if fn > oo {
		if float64(fn)/float64(total) >= paradigmShare {
			out = append(out, ParadigmFunctional)
		}
		if float64(oo)/float64(total) >= paradigmShare {
			out = append(out, ParadigmObjectOriented)
		}
		return out
	}
	if float64(oo)/float64(total) >= paradigmShare {
		out = append(out, ParadigmObjectOriented)
	}
	if float64(fn)/float64(total) >= paradigmShare {
		out = append(out, ParadigmFunctional)
	}
	return out
}
