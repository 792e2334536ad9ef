package semantic

import (
	"sort"
	"strconv"
	"strings"
)

// commentText returns the prose of a comment line, or false for code.
// Detection is marker-based and language-agnostic, matching how the rest of
// the pipeline reads content.
func commentText(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#!") {
		return "", false // shebang, not prose
	}
	for _, marker := range []string{"//", "/*", "*", "#", "--", "<!--"} {
		if strings.HasPrefix(trimmed, marker) {
			text := strings.TrimSpace(trimmed[len(marker):])
			text = strings.TrimSuffix(text, "*/")
			text = strings.TrimSuffix(text, "-->")
			return strings.TrimSpace(text), true
		}
	}
	return "", false
}

// extractCommentTerms mines stop-word-filtered word n-grams from a file's
// comment lines. Counts are per term; the census stops admitting new terms
// at the cap but keeps counting known ones.
func extractCommentTerms(content []byte, tk *tokenizer) map[string]int {
	terms := make(map[string]int)
	for _, line := range strings.Split(string(content), "\n") {
		if len(line) > maxCommentLineLen {
			continue
		}
		text, ok := commentText(line)
		if !ok || text == "" {
			continue
		}
		words := commentWords(text, tk)
		for n := 1; n <= maxNGram; n++ {
			for i := 0; i+n <= len(words); i++ {
				term := strings.Join(words[i:i+n], " ")
				if _, known := terms[term]; !known && len(terms) >= maxCommentTermsPerFile {
					continue
				}
				terms[term]++
			}
		}
	}
	return terms
}

// commentWords lowercases the alphabetic runs of a comment and filters them
// like identifier tokens.
func commentWords(text string, tk *tokenizer) []string {
	var words []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			w := strings.ToLower(string(cur))
			if tk.keep(w) {
				words = append(words, w)
			}
			cur = cur[:0]
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			cur = append(cur, c)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// encodeTerms renders a term census as metadata text, sorted for stable
// hashes of anything that embeds it.
func encodeTerms(terms map[string]int) string {
	if len(terms) == 0 {
		return ""
	}
	keys := make([]string, 0, len(terms))
	for t := range terms {
		keys = append(keys, t)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, t := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(t)
		sb.WriteByte('\t')
		sb.WriteString(strconv.Itoa(terms[t]))
	}
	return sb.String()
}

// decodeTerms parses encodeTerms output, dropping anything malformed.
func decodeTerms(encoded string) map[string]int {
	if encoded == "" {
		return nil
	}
	terms := make(map[string]int)
	for _, line := range strings.Split(encoded, "\n") {
		term, countStr, ok := strings.Cut(line, "\t")
		if !ok || term == "" {
			continue
		}
		count, err := strconv.Atoi(countStr)
		if err != nil || count <= 0 {
			continue
		}
		terms[term] = count
	}
	return terms
}
