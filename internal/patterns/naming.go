package patterns

import (
	"regexp"
	"strings"
)

// casingConventions in match order. CONSTANT_CASE is tested before
// PascalCase so all-caps names are not claimed by the Pascal form, and the
// separator forms require their separator so plain lowercase words land on
// camelCase.
var casingConventions = []struct {
	name string
	re   *regexp.Regexp
}{
	{"CONSTANT_CASE", regexp.MustCompile(`^[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)*$`)},
	{"PascalCase", regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)},
	{"camelCase", regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)},
	{"snake_case", regexp.MustCompile(`^[a-z][a-z0-9]*(?:_[a-z0-9]+)+$`)},
	{"kebab-case", regexp.MustCompile(`^[a-z][a-z0-9]*(?:-[a-z0-9]+)+$`)},
}

// classifyCasing names the convention a name follows, or "".
func classifyCasing(name string) string {
	for _, c := range casingConventions {
		if c.re.MatchString(name) {
			return c.name
		}
	}
	return ""
}

// nameTokens splits a name on case boundaries, separators and digits into
// lowercase tokens. Capital runs stay together until a lowercase letter
// follows, so HTTPServer yields [http server].
func nameTokens(name string) []string {
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
