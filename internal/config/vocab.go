package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// VocabFile is the default filename for vocabulary overrides
const VocabFile = "vocab.toml"

// Vocab carries the word lists evidence-based analysis leans on. The
// built-in defaults cover the common cases; a repository can extend them in
// .fathom/vocab.toml.
type Vocab struct {
	Tokenizer    TokenizerVocab    `toml:"tokenizer"`
	Architecture ArchitectureVocab `toml:"architecture"`
}

// TokenizerVocab extends the identifier tokenizer.
type TokenizerVocab struct {
	// Abbreviations are kept intact during token splitting.
	Abbreviations []string `toml:"abbreviations,omitempty"`
	// Stopwords are excluded from concept extraction.
	Stopwords []string `toml:"stopwords,omitempty"`
}

// ArchitectureVocab maps style names to the directory names that evidence
// them.
type ArchitectureVocab struct {
	Vocabularies map[string][]string `toml:"vocabularies,omitempty"`
}

// builtinAbbreviations are technical terms the tokenizer never splits.
var builtinAbbreviations = []string{
	"API", "CLI", "CPU", "CSS", "CSV", "DB", "DNS", "DTO", "GPU", "GUID",
	"HTML", "HTTP", "HTTPS", "ID", "IO", "IP", "JSON", "JWT", "OS", "PDF",
	"RAM", "REST", "RPC", "SDK", "SQL", "SSH", "SSL", "TCP", "TLS", "TTL",
	"UDP", "UI", "UID", "URI", "URL", "UUID", "XML", "YAML",
}

// builtinStopwords are programming words too generic to be concepts.
var builtinStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "data", "do",
	"for", "from", "func", "get", "has", "have", "if", "in", "into", "is",
	"it", "its", "list", "new", "no", "not", "obj", "object", "of", "on",
	"or", "result", "return", "set", "str", "string", "temp", "test", "that",
	"the", "this", "tmp", "to", "util", "val", "value", "var", "was", "will",
	"with",
}

// builtinArchVocabularies name directory layouts worth recognizing.
var builtinArchVocabularies = map[string][]string{
	"mvc":              {"models", "views", "controllers"},
	"layered":          {"presentation", "business", "domain", "persistence", "infrastructure"},
	"service-oriented": {"services", "handlers", "repositories"},
	"component-based":  {"components", "containers", "hooks"},
	"hexagonal":        {"adapters", "ports", "core"},
}

// DefaultVocab returns the built-in vocabulary with no overrides applied.
func DefaultVocab() *Vocab {
	return (&Vocab{}).withBuiltins()
}

// LoadVocab reads .fathom/vocab.toml and merges it over the built-ins. A
// missing file is not an error; a malformed one is.
func LoadVocab(rootPath string) (*Vocab, error) {
	path := filepath.Join(rootPath, ".fathom", VocabFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultVocab(), nil
		}
		return nil, err
	}

	var v Vocab
	if err := toml.Unmarshal(data, &v); err != nil {
		return nil, &ConfigError{Field: VocabFile, Message: err.Error()}
	}
	return v.withBuiltins(), nil
}

// withBuiltins merges the built-in lists under any user overrides.
func (v *Vocab) withBuiltins() *Vocab {
	v.Tokenizer.Abbreviations = mergeUpper(builtinAbbreviations, v.Tokenizer.Abbreviations)
	v.Tokenizer.Stopwords = mergeLower(builtinStopwords, v.Tokenizer.Stopwords)

	merged := make(map[string][]string, len(builtinArchVocabularies)+len(v.Architecture.Vocabularies))
	for style, words := range builtinArchVocabularies {
		merged[style] = append([]string(nil), words...)
	}
	for style, words := range v.Architecture.Vocabularies {
		merged[strings.ToLower(style)] = mergeLower(merged[strings.ToLower(style)], words)
	}
	v.Architecture.Vocabularies = merged
	return v
}

// AbbreviationSet returns the protected abbreviations as an uppercase set.
func (v *Vocab) AbbreviationSet() map[string]bool {
	set := make(map[string]bool, len(v.Tokenizer.Abbreviations))
	for _, a := range v.Tokenizer.Abbreviations {
		set[strings.ToUpper(a)] = true
	}
	return set
}

// StopwordSet returns the stop-words as a lowercase set.
func (v *Vocab) StopwordSet() map[string]bool {
	set := make(map[string]bool, len(v.Tokenizer.Stopwords))
	for _, s := range v.Tokenizer.Stopwords {
		set[strings.ToLower(s)] = true
	}
	return set
}

func mergeUpper(base, extra []string) []string { return mergeCase(base, extra, strings.ToUpper) }
func mergeLower(base, extra []string) []string { return mergeCase(base, extra, strings.ToLower) }

func mergeCase(base, extra []string, norm func(string) string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	var out []string
	for _, list := range [][]string{base, extra} {
		for _, w := range list {
			w = norm(strings.TrimSpace(w))
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
