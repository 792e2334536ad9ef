package dataflow

import (
	"regexp"
	"strconv"
	"strings"

	"fathom/internal/model"
)

// Role keyword tables. An identifier carries a role when one of its name
// tokens matches; the leftmost matching token decides. Bare verbs only count
// in call position and bare store nouns only in receiver or index position,
// which keeps language keywords like Go's map out of the evidence.
var (
	sourceWords = wordSet("read", "load", "fetch", "recv", "receive", "input",
		"parse", "get", "query", "scan", "listen", "accept")
	sinkWords = wordSet("write", "save", "send", "emit", "output", "print",
		"publish", "flush", "render", "respond")
	transformWords = wordSet("map", "convert", "transform", "filter", "encode",
		"decode", "format", "normalize", "merge", "serialize", "translate")
	storeWords = wordSet("store", "cache", "db", "repo", "repository",
		"buffer", "registry", "pool", "queue")

	asyncWords = wordSet("async", "await", "promise", "callback", "goroutine")
	condWords  = wordSet("if", "else", "switch", "case", "try")
)

// codeWords are language keywords too common to link lines by.
var codeWords = wordSet("bool", "break", "byte", "case", "catch", "class",
	"const", "continue", "def", "defer", "elif", "else", "error", "false",
	"final", "finally", "float", "for", "from", "func", "function", "import",
	"int", "interface", "let", "new", "nil", "none", "null", "package",
	"private", "protected", "public", "range", "return", "self", "static",
	"string", "struct", "switch", "this", "throw", "true", "try", "type",
	"var", "void", "while", "with")

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Assignment into a collection marks the collection as a store even when its
// name carries no store noun.
var (
	indexAssignRe = regexp.MustCompile(`\b(\w+)\s*\[[^\]]*\]\s*=(?:[^=]|$)`)
	memberPushRe  = regexp.MustCompile(`\b(\w+)\.(?:push|append|add|put|insert)\s*\(`)
	goAppendRe    = regexp.MustCompile(`=\s*append\s*\(\s*(\w+)`)
)

// observation is one piece of per-file role evidence: an identifier seen
// acting in a role, with the surrounding identifiers that could carry its
// data to another line.
type observation struct {
	Line        int
	Role        model.DataRole
	Name        string
	Async       bool
	Conditional bool
	Ctx         []string
}

type lineIdent struct {
	name string
	next byte // first non-blank byte after the identifier, 0 at end of line
}

// observeFile scans a file for role evidence line by line. String literals
// are masked before scanning and comment lines are skipped so prose never
// becomes evidence.
func observeFile(content []byte) []observation {
	lines := strings.Split(string(content), "\n")
	masked := make([]string, len(lines))
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if isCommentLine(t) {
			// Comment prose is neither evidence nor context.
			continue
		}
		masked[i] = maskStrings(t)
	}

	var out []observation
	for i := range lines {
		if len(out) >= maxObservationsPerFile {
			break
		}
		m := masked[i]
		if m == "" || len(m) > maxLineLen {
			continue
		}
		idents := scanIdents(m)
		if len(idents) == 0 {
			continue
		}

		assigned := collectionTargets(m)
		async := asyncContext(m, idents)
		cond := condContext(masked, i)

		roleNames := map[string]bool{}
		var obs []observation
		for _, id := range idents {
			role := identRole(id)
			if role == "" && assigned[id.name] {
				role = model.RoleStore
			}
			if role == "" || roleNames[id.name] {
				continue
			}
			roleNames[id.name] = true
			obs = append(obs, observation{
				Line:        i + 1,
				Role:        role,
				Name:        id.name,
				Async:       async,
				Conditional: cond,
			})
		}
		if len(obs) == 0 {
			continue
		}

		var ctx []string
		for _, id := range idents {
			if roleNames[id.name] || len(id.name) < 3 {
				continue
			}
			lower := strings.ToLower(id.name)
			if codeWords[lower] {
				continue
			}
			if !contains(ctx, lower) {
				ctx = append(ctx, lower)
			}
			if len(ctx) >= maxCtxIdents {
				break
			}
		}
		for j := range obs {
			obs[j].Ctx = ctx
		}
		out = append(out, obs...)
	}
	if len(out) > maxObservationsPerFile {
		out = out[:maxObservationsPerFile]
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// identRole decides the role of one identifier from its name tokens. Bare
// single-token identifiers need a corroborating usage shape.
func identRole(id lineIdent) model.DataRole {
	tokens := nameTokens(id.name)
	if len(tokens) == 0 {
		return ""
	}
	bare := len(tokens) == 1
	for _, tok := range tokens {
		switch {
		case sourceWords[tok]:
			if !bare || id.next == '(' {
				return model.RoleSource
			}
		case sinkWords[tok]:
			if !bare || id.next == '(' {
				return model.RoleSink
			}
		case transformWords[tok]:
			if !bare || id.next == '(' {
				return model.RoleTransformer
			}
		case storeWords[tok]:
			if !bare || id.next == '.' || id.next == '[' {
				return model.RoleStore
			}
		}
	}
	return ""
}

// nameTokens splits an identifier on case boundaries, underscores and
// digits, lowercasing the parts.
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
		if c == '_' || (c >= '0' && c <= '9') {
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

// collectionTargets returns the identifiers a line assigns into as
// collections.
func collectionTargets(masked string) map[string]bool {
	out := map[string]bool{}
	for _, re := range []*regexp.Regexp{indexAssignRe, memberPushRe, goAppendRe} {
		for _, m := range re.FindAllStringSubmatch(masked, 4) {
			out[m[1]] = true
		}
	}
	return out
}

// asyncContext reports whether the line carries an asynchronous marker. The
// then keyword only counts in promise position, .then(, because shell and
// ruby use it for conditionals.
func asyncContext(masked string, idents []lineIdent) bool {
	if strings.Contains(masked, ".then(") {
		return true
	}
	for i, id := range idents {
		if asyncWords[strings.ToLower(id.name)] {
			return true
		}
		if id.name == "go" && i+1 < len(idents) && idents[i+1].next == '(' {
			return true
		}
	}
	return false
}

// condContext reports whether the line or any of the condLookback lines
// above it opens control flow.
func condContext(masked []string, i int) bool {
	for back := 0; back <= condLookback && i-back >= 0; back++ {
		for _, id := range scanIdents(masked[i-back]) {
			if condWords[strings.ToLower(id.name)] {
				return true
			}
		}
	}
	return false
}

// maskStrings blanks out quoted spans so literal text is never scanned.
func maskStrings(s string) string {
	b := []byte(s)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			b[i] = ' '
			continue
		}
		if c == '"' || c == '\'' || c == '`' {
			quote = c
			b[i] = ' '
		}
	}
	return string(b)
}

func isCommentLine(s string) bool {
	return strings.HasPrefix(s, "//") || strings.HasPrefix(s, "#") ||
		strings.HasPrefix(s, "*") || strings.HasPrefix(s, "/*")
}

func scanIdents(s string) []lineIdent {
	var out []lineIdent
	for i := 0; i < len(s); {
		c := s[i]
		if !isIdentStart(c) {
			if isIdentByte(c) {
				for i < len(s) && isIdentByte(s[i]) {
					i++
				}
				continue
			}
			i++
			continue
		}
		j := i
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		k := j
		for k < len(s) && (s[k] == ' ' || s[k] == '\t') {
			k++
		}
		var next byte
		if k < len(s) {
			next = s[k]
		}
		out = append(out, lineIdent{name: s[i:j], next: next})
		i = j
	}
	return out
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// Observations persist in the file root node's metadata, one entry per line:
// "lineNumber<TAB>role<TAB>name<TAB>flags<TAB>context idents".

func encodeObservations(obs []observation) string {
	parts := make([]string, len(obs))
	for i, o := range obs {
		flags := ""
		if o.Async {
			flags += "a"
		}
		if o.Conditional {
			flags += "c"
		}
		parts[i] = strconv.Itoa(o.Line) + "\t" + string(o.Role) + "\t" + o.Name +
			"\t" + flags + "\t" + strings.Join(o.Ctx, " ")
	}
	return strings.Join(parts, "\n")
}

func decodeObservations(s string) []observation {
	if s == "" {
		return nil
	}
	var out []observation
	for _, entry := range strings.Split(s, "\n") {
		parts := strings.SplitN(entry, "\t", 5)
		if len(parts) != 5 {
			continue
		}
		line, err := strconv.Atoi(parts[0])
		if err != nil || line <= 0 {
			continue
		}
		role := model.DataRole(parts[1])
		switch role {
		case model.RoleSource, model.RoleSink, model.RoleTransformer, model.RoleStore:
		default:
			continue
		}
		o := observation{Line: line, Role: role, Name: parts[2]}
		o.Async = strings.Contains(parts[3], "a")
		o.Conditional = strings.Contains(parts[3], "c")
		if parts[4] != "" {
			o.Ctx = strings.Fields(parts[4])
		}
		out = append(out, o)
	}
	return out
}
