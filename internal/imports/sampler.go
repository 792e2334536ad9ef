package imports

import (
	"strconv"
	"strings"
)

// importKeywords are the tokens that can introduce an import-like statement.
// Sampling pairs them with quoted path tokens; induction only generalizes
// keywords seen paired with a path more than once.
var importKeywords = map[string]bool{
	"import":  true,
	"require": true,
	"include": true,
	"use":     true,
	"using":   true,
	"from":    true,
	"load":    true,
	"needs":   true,
}

// exportKeywords introduce re-export statements: an export-form keyword
// paired with a module path. Plain value exports carry no quoted path and
// never sample. "export ... from" tags as export because the export keyword
// comes first on the line.
var exportKeywords = map[string]bool{
	"export":  true,
	"exports": true,
}

// candidate is one sampled line: a keyword paired with a quoted path-like
// token, kept raw for pattern induction and matching.
type candidate struct {
	Line    int
	Keyword string
	Raw     string
}

// sampleLines collects the lines of a file that pair an import keyword with a
// quoted path-like token. Lines inside a parenthesized group opened by a
// keyword inherit that keyword, which covers grouped import blocks.
func sampleLines(content []byte) []candidate {
	var out []candidate
	group := ""
	for i, line := range strings.Split(string(content), "\n") {
		if len(out) >= maxSamplesPerFile {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > maxSampleLineLen || strings.HasPrefix(trimmed, "//") {
			continue
		}
		if group != "" && strings.HasPrefix(trimmed, ")") {
			group = ""
			continue
		}

		quoted, quotePos := quotedPathToken(trimmed)
		if group != "" {
			if quoted != "" {
				out = append(out, candidate{Line: i + 1, Keyword: group, Raw: trimmed})
			}
			continue
		}

		bound := len(trimmed)
		if quoted != "" {
			bound = quotePos
		}
		keyword, end := findKeyword(trimmed, bound)
		if keyword == "" {
			continue
		}
		if quoted != "" {
			out = append(out, candidate{Line: i + 1, Keyword: keyword, Raw: trimmed})
			continue
		}
		rest := strings.TrimSpace(trimmed[end:])
		if strings.HasPrefix(rest, "(") && !strings.Contains(rest, ")") {
			group = keyword
		}
	}
	return out
}

// findKeyword scans the letter runs of a line up to bound and returns the
// first known import keyword, with the offset just past it.
func findKeyword(line string, bound int) (string, int) {
	for i := 0; i < bound; {
		if !isLetter(line[i]) {
			i++
			continue
		}
		j := i
		for j < len(line) && isLetter(line[j]) {
			j++
		}
		word := strings.ToLower(line[i:j])
		if importKeywords[word] || exportKeywords[word] {
			return word, j
		}
		i = j
	}
	return "", 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// quotedPathToken returns the first single- or double-quoted token whose
// content looks like a module path, with the offset of its opening quote.
func quotedPathToken(s string) (string, int) {
	for i := 0; i < len(s); i++ {
		q := s[i]
		if q != '"' && q != '\'' {
			continue
		}
		j := strings.IndexByte(s[i+1:], q)
		if j < 0 {
			return "", -1
		}
		token := s[i+1 : i+1+j]
		if isPathLike(token) {
			return token, i
		}
		i += j + 1
	}
	return "", -1
}

// isPathLike accepts tokens made of path characters only: no spaces, no
// interpolation, bounded length.
func isPathLike(s string) bool {
	if s == "" || len(s) > maxSpecifierLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '/' || c == '_' || c == '-' || c == '@' || c == ':' || c == '~' || c == '+':
		default:
			return false
		}
	}
	return true
}

// Sampled lines persist in the file root node's metadata so relationship
// rebuilds see the whole corpus, not just the files of the current run.
// One entry per line: "lineNumber<TAB>keyword<TAB>raw".

func encodeCandidates(cands []candidate) string {
	parts := make([]string, len(cands))
	for i, c := range cands {
		parts[i] = strconv.Itoa(c.Line) + "\t" + c.Keyword + "\t" + c.Raw
	}
	return strings.Join(parts, "\n")
}

func decodeCandidates(s string) []candidate {
	if s == "" {
		return nil
	}
	var out []candidate
	for _, entry := range strings.Split(s, "\n") {
		parts := strings.SplitN(entry, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		line, err := strconv.Atoi(parts[0])
		if err != nil || line <= 0 {
			continue
		}
		out = append(out, candidate{Line: line, Keyword: parts[1], Raw: parts[2]})
	}
	return out
}
