package semantic

import (
	"strings"

	"fathom/internal/config"
)

// tokenizer splits names into lowercase tokens and filters them down to the
// ones that can carry meaning. Known technical abbreviations pass the length
// filter that would otherwise drop them.
type tokenizer struct {
	abbreviations map[string]bool
	stopwords     map[string]bool
}

func newTokenizer(v *config.Vocab) *tokenizer {
	return &tokenizer{
		abbreviations: v.AbbreviationSet(),
		stopwords:     v.StopwordSet(),
	}
}

// tokens splits a name on case boundaries, separators and digits. Capital
// runs stay together until a lowercase letter follows, so XMLHttpRequest
// yields [xml http request].
func (tk *tokenizer) tokens(name string) []string {
	var tokens []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			flush()
			continue
		}
		if c >= 'A' && c <= 'Z' {
			prevLower := i > 0 && name[i-1] >= 'a' && name[i-1] <= 'z'
			nextLower := i+1 < len(name) && name[i+1] >= 'a' && name[i+1] <= 'z'
			if prevLower || (nextLower && len(cur) > 0) {
				flush()
			}
		}
		cur = append(cur, c)
	}
	flush()
	return tokens
}

// keep reports whether a token survives filtering: not a stop-word, and long
// enough unless it is a protected abbreviation.
func (tk *tokenizer) keep(tok string) bool {
	if tk.stopwords[tok] {
		return false
	}
	return len(tok) >= minTokenLen || tk.abbreviations[strings.ToUpper(tok)]
}

// significant splits a name and keeps only the meaningful tokens.
func (tk *tokenizer) significant(name string) []string {
	toks := tk.tokens(name)
	out := toks[:0]
	for _, tok := range toks {
		if tk.keep(tok) {
			out = append(out, tok)
		}
	}
	return out
}
