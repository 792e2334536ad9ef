package cluster

import "strings"

// conventionOf coarsely classifies a name's casing. It only feeds equality
// checks inside the naming metric, so it trades edge-case fidelity for a
// cheap character scan.
func conventionOf(name string) string {
	if name == "" || !isLetter(name[0]) {
		return ""
	}
	var hasUpper, hasLower, hasUnderscore, hasDash bool
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c == '_':
			hasUnderscore = true
		case c == '-':
			hasDash = true
		case c >= '0' && c <= '9':
			// digits are neutral
		default:
			return ""
		}
	}
	switch {
	case hasDash && !hasUpper && !hasUnderscore:
		return "kebab-case"
	case hasDash:
		return ""
	case hasUnderscore && !hasUpper:
		return "snake_case"
	case hasUnderscore && !hasLower:
		return "CONSTANT_CASE"
	case hasUnderscore:
		return ""
	case hasUpper && !hasLower:
		return "CONSTANT_CASE"
	case name[0] >= 'A' && name[0] <= 'Z':
		return "PascalCase"
	default:
		return "camelCase"
	}
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// nameTokens splits an identifier into lowercase tokens on case boundaries,
// separators and digits. Capital runs stay together until a lowercase letter
// follows.
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
