package structure

import (
	"fmt"
	"regexp"
	"strings"

	"fathom/internal/model"
)

// maxNodesPerFile bounds extraction so a generated or minified file cannot
// dominate the understanding.
const maxNodesPerFile = 200

// declMatcher recognizes one declaration shape on a single line. Matchers
// are fixed-form and language-agnostic; the first match on a line wins.
type declMatcher struct {
	nodeType  model.NodeType
	re        *regexp.Regexp
	classOnly bool // only matches inside a class-like container
}

var matchers = []declMatcher{
	{nodeType: model.NodeNamespace, re: regexp.MustCompile(`^\s*(?:export\s+)?(?:declare\s+)?(?:module|namespace)\s+([A-Za-z_][\w.]*)`)},
	{nodeType: model.NodeModule, re: regexp.MustCompile(`^package\s+([A-Za-z_][\w.]*)`)},

	// Go type declarations before the generic class/interface keywords.
	{nodeType: model.NodeInterface, re: regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+interface\b`)},
	{nodeType: model.NodeClass, re: regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+struct\b`)},
	{nodeType: model.NodeMethod, re: regexp.MustCompile(`^func\s+\([^)]*\)\s+([A-Za-z_]\w*)\s*\(`)},
	{nodeType: model.NodeFunction, re: regexp.MustCompile(`^func\s+([A-Za-z_]\w*)\s*\(`)},

	{nodeType: model.NodeInterface, re: regexp.MustCompile(`^\s*(?:export\s+)?(?:pub(?:\([^)]*\))?\s+|public\s+|abstract\s+)*(?:interface|trait|protocol)\s+([A-Za-z_]\w*)`)},
	{nodeType: model.NodeEnum, re: regexp.MustCompile(`^\s*(?:export\s+)?(?:pub(?:\([^)]*\))?\s+|public\s+)?enum\s+(?:class\s+|struct\s+)?([A-Za-z_]\w*)`)},
	{nodeType: model.NodeClass, re: regexp.MustCompile(`^\s*(?:export\s+)?(?:public\s+|private\s+|protected\s+|abstract\s+|final\s+|static\s+|data\s+|sealed\s+|open\s+)*class\s+([A-Za-z_]\w*)`)},
	{nodeType: model.NodeClass, re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+([A-Za-z_]\w*)`)},
	{nodeType: model.NodeTypeDef, re: regexp.MustCompile(`^\s*(?:export\s+)?type\s+([A-Za-z_]\w*)\s*=`)},

	{nodeType: model.NodeFunction, re: regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_]\w*)`)},
	{nodeType: model.NodeFunction, re: regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+([A-Za-z_]\w*)`)},
	{nodeType: model.NodeFunction, re: regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)`)},
	// Arrow functions bound to a name, before the plain variable matcher.
	{nodeType: model.NodeFunction, re: regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let)\s+([A-Za-z_]\w*)\s*=\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_]\w*)\s*(?::\s*[\w<>\[\].,|&\s]+)?\s*=>`)},
	// Modifier-anchored method shape (Java, C#, Kotlin bodies).
	{nodeType: model.NodeMethod, re: regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+|final\s+|abstract\s+|synchronized\s+|override\s+)*[\w<>\[\],\s]*?\s([A-Za-z_]\w*)\s*\(`), classOnly: true},
	{nodeType: model.NodeProperty, re: regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+|final\s+|readonly\s+)*[\w<>\[\]]+\s+([A-Za-z_]\w*)\s*[;=]`), classOnly: true},
	// TypeScript-style modifier field: "private db: Database".
	{nodeType: model.NodeProperty, re: regexp.MustCompile(`^\s*(?:public|private|protected)\s+(?:static\s+|readonly\s+)*([A-Za-z_]\w*)\s*[:;=]`), classOnly: true},
	// Bare method shape inside a class body: "name(...) {". Keyword names
	// are rejected in matchLine so "if (...) {" never becomes a node.
	{nodeType: model.NodeMethod, re: regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+)?(?:async\s+)?(?:static\s+)?([A-Za-z_]\w*)\s*\([^)]*\)\s*(?::\s*[^{;]+)?\{`), classOnly: true},
	// C-style return-type function at file level.
	{nodeType: model.NodeFunction, re: regexp.MustCompile(`^(?:static\s+|inline\s+)?(?:unsigned\s+|signed\s+)?(?:void|int|long|short|char|float|double|bool|size_t)\s*\**\s*([A-Za-z_]\w*)\s*\(`)},

	{nodeType: model.NodeVariable, re: regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_]\w*)`)},
	{nodeType: model.NodeVariable, re: regexp.MustCompile(`^([A-Z][A-Z0-9_]{2,})\s*=`)},
	{nodeType: model.NodeProperty, re: regexp.MustCompile(`^\s*(?:self|this)\.([A-Za-z_]\w*)\s*=`)},
	// Typed field inside a class body: "name: Type".
	{nodeType: model.NodeProperty, re: regexp.MustCompile(`^\s*(?:readonly\s+)?([A-Za-z_]\w*)\s*:\s*[\w\[\]<>.|&'" ]+[,;]?\s*$`), classOnly: true},
}

// goFieldRe matches a "name Type" field line inside a Go struct body. No end
// anchor, so struct tags after the type are tolerated.
var goFieldRe = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s+\*?[\w\[\]*.]+`)

// goEmbedRe matches a bare, possibly package-qualified capitalized identifier
// alone on a line, the shape of an embedded type inside a Go struct or
// interface body.
var goEmbedRe = regexp.MustCompile(`^\s*\*?(?:[a-z_]\w*\.)?([A-Z]\w*)\s*$`)

// Inheritance clause shapes on declaration lines.
var (
	extendsRe    = regexp.MustCompile(`\bextends\s+([\w.,\s]+?)(?:\s+implements\b|\s*[{(]|$)`)
	implementsRe = regexp.MustCompile(`\bimplements\s+([\w.,\s]+?)(?:\s*[{(]|$)`)
	pythonBaseRe = regexp.MustCompile(`^\s*class\s+\w+\s*\(([^)]*)\)`)
	rustImplRe   = regexp.MustCompile(`^\s*impl(?:<[^>]*>)?\s+(?:[A-Za-z_]\w*::)*([A-Za-z_]\w*)(?:<[^>]*>)?\s+for\s+([A-Za-z_]\w*)`)
	rustSelfRe   = regexp.MustCompile(`^\s*impl(?:<[^>]*>)?\s+([A-Za-z_]\w*)\s*(?:<[^>]*>)?\s*\{`)
)

// inheritClause records an extends/implements hint found while scanning.
// Parent names are resolved against the global name index later.
type inheritClause struct {
	ChildID   string
	ChildName string // used instead of ChildID for impl-for shapes
	Parent    string
	Type      model.RelationshipType
	Embedded  bool // Go embedding, weaker evidence than an extends clause
}

// nodeID builds the deterministic slug for an extracted node. The slug is
// stable for unchanged content so cross-run diffs line up by id.
func nodeID(path string, t model.NodeType, name string, line int) string {
	return fmt.Sprintf("node:%s#%s:%s@%d", path, t, name, line)
}

func fileNodeID(path string) string { return "node:" + path }

// containerTypes can hold children in the heuristic nesting model.
var containerTypes = map[model.NodeType]bool{
	model.NodeClass:     true,
	model.NodeInterface: true,
	model.NodeEnum:      true,
	model.NodeNamespace: true,
	model.NodeFunction:  true,
	model.NodeMethod:    true,
}

var classLike = map[model.NodeType]bool{
	model.NodeClass:     true,
	model.NodeInterface: true,
	model.NodeEnum:      true,
}

// openContainer is one level of the nesting stack during a scan.
type openContainer struct {
	node       *model.CodeNode
	indent     int
	enterDepth int
	braced     bool // closed by brace depth rather than dedent
	goType     bool // Go struct/interface body, enables embedding capture
	adopted    bool // impl block reopening a type, keep the node's own span
}

// extraction is the heuristic result for one file.
type extraction struct {
	Root      *model.CodeNode   // file node, parent of top level declarations
	Nodes     []*model.CodeNode // every node including Root
	Inherits  []inheritClause
	receivers map[string]string // method node id -> Go receiver type name
}

// extractFile scans content line by line, matching declarations and nesting
// them by brace depth or indentation. It always produces the file node; a
// binary file produces only that.
func extractFile(path, name string, content []byte) *extraction {
	lines := strings.Split(string(content), "\n")
	root := &model.CodeNode{
		ID:   fileNodeID(path),
		Type: model.NodeFile,
		Name: name,
		Path: path,
		Location: model.Location{
			StartLine: 1,
			EndLine:   max(1, len(lines)),
		},
		Metadata: map[string]string{metaExtractor: "heuristic"},
	}
	ex := &extraction{
		Root:      root,
		Nodes:     []*model.CodeNode{root},
		receivers: map[string]string{},
	}
	if isBinary(content) {
		return ex
	}

	var stack []*openContainer
	depth := 0
	lastSolid := 0 // last non-blank line number
	seen := map[string]bool{}

	for lineNo := 1; lineNo <= len(lines); lineNo++ {
		line := lines[lineNo-1]
		trimmed := strings.TrimSpace(line)
		blank := trimmed == ""

		if !blank {
			indent := indentWidth(line)
			stack = closeScopes(stack, depth, indent, lastSolid)
			if !isCommentLine(trimmed) && len(ex.Nodes) <= maxNodesPerFile {
				stack = matchLine(ex, path, line, trimmed, lineNo, depth, indent, stack, seen)
			}
			lastSolid = lineNo
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
	}
	for _, open := range stack {
		if !open.adopted {
			open.node.Location.EndLine = max(lastSolid, open.node.Location.StartLine)
		}
	}
	reparentGoMethods(ex)
	return ex
}

// closeScopes pops containers that ended before the current line: braced
// scopes when the running depth fell back to their entry depth, indented
// scopes when the line dedented to their level.
func closeScopes(stack []*openContainer, depth, indent, lastSolid int) []*openContainer {
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		var closed bool
		if top.braced {
			closed = depth <= top.enterDepth
		} else {
			closed = indent <= top.indent
		}
		if !closed {
			break
		}
		if !top.adopted {
			top.node.Location.EndLine = max(lastSolid, top.node.Location.StartLine)
		}
		stack = stack[:len(stack)-1]
	}
	return stack
}

// matchLine tries every declaration matcher against the line, creating and
// nesting at most one node.
func matchLine(ex *extraction, path, line, trimmed string, lineNo, depth, indent int, stack []*openContainer, seen map[string]bool) []*openContainer {
	parent := ex.Root
	var top *openContainer
	if len(stack) > 0 {
		top = stack[len(stack)-1]
		parent = top.node
	}
	inClass := top != nil && classLike[top.node.Type]

	// Inside a Go type body: bare capitalized identifiers are embedded
	// types, "name Type" pairs are fields. Neither shape is safe to match
	// outside that context.
	if top != nil && top.goType {
		if m := goEmbedRe.FindStringSubmatch(line); m != nil {
			ex.Inherits = append(ex.Inherits, inheritClause{
				ChildID:  top.node.ID,
				Parent:   m[1],
				Type:     model.RelExtends,
				Embedded: true,
			})
			return stack
		}
		if m := goFieldRe.FindStringSubmatch(line); m != nil {
			key := parent.ID + "/" + m[1]
			if !seen[key] {
				seen[key] = true
				node := &model.CodeNode{
					ID:       nodeID(path, model.NodeProperty, m[1], lineNo),
					Type:     model.NodeProperty,
					Name:     m[1],
					Path:     path,
					Location: model.Location{StartLine: lineNo, EndLine: lineNo},
					Content:  declContent(trimmed),
					Metadata: map[string]string{metaExtractor: "heuristic"},
				}
				parent.Children = append(parent.Children, node)
				ex.Nodes = append(ex.Nodes, node)
			}
			return stack
		}
	}

	for _, m := range matchers {
		if m.classOnly && !inClass {
			continue
		}
		match := m.re.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		nodeType := m.nodeType
		if nodeType == model.NodeFunction && inClass {
			nodeType = model.NodeMethod
		}
		name := match[1]
		if (nodeType == model.NodeFunction || nodeType == model.NodeMethod) && codeKeywords[strings.ToLower(name)] {
			continue
		}

		if nodeType == model.NodeProperty {
			// Attach properties to the nearest class, not the method
			// whose body assigned them. One property per name per class.
			if owner := nearestClass(stack); owner != nil {
				parent = owner
			}
			key := parent.ID + "/" + name
			if seen[key] {
				return stack
			}
			seen[key] = true
		}

		node := &model.CodeNode{
			ID:       nodeID(path, nodeType, name, lineNo),
			Type:     nodeType,
			Name:     name,
			Path:     path,
			Location: model.Location{StartLine: lineNo, EndLine: lineNo},
			Content:  declContent(trimmed),
			Metadata: map[string]string{metaExtractor: "heuristic"},
		}
		parent.Children = append(parent.Children, node)
		ex.Nodes = append(ex.Nodes, node)
		ex.Inherits = append(ex.Inherits, inheritanceClauses(node, line)...)
		if nodeType == model.NodeMethod && strings.HasPrefix(line, "func (") {
			if r := goReceiverRe.FindStringSubmatch(line); r != nil {
				ex.receivers[node.ID] = r[1]
			}
		}

		if containerTypes[nodeType] {
			open := &openContainer{
				node:       node,
				indent:     indent,
				enterDepth: depth,
				goType:     strings.HasPrefix(line, "type "),
			}
			switch {
			case strings.Contains(line, "{"):
				open.braced = true
				stack = append(stack, open)
			case strings.HasSuffix(trimmed, ":"):
				stack = append(stack, open)
			}
		}
		return stack
	}

	// Rust impl blocks reopen their type: functions inside become methods of
	// the struct when it was declared in the same file.
	if m := rustImplRe.FindStringSubmatch(line); m != nil {
		ex.Inherits = append(ex.Inherits, inheritClause{
			ChildName: m[2],
			Parent:    m[1],
			Type:      model.RelImplements,
		})
		return adoptImplTarget(ex, m[2], line, indent, depth, stack)
	}
	if m := rustSelfRe.FindStringSubmatch(line); m != nil {
		return adoptImplTarget(ex, m[1], line, indent, depth, stack)
	}
	return stack
}

// adoptImplTarget pushes the named class back onto the stack for the span of
// an impl block.
func adoptImplTarget(ex *extraction, name, line string, indent, depth int, stack []*openContainer) []*openContainer {
	if !strings.Contains(line, "{") {
		return stack
	}
	for _, n := range ex.Nodes {
		if n.Name == name && classLike[n.Type] {
			return append(stack, &openContainer{
				node:       n,
				indent:     indent,
				enterDepth: depth,
				braced:     true,
				adopted:    true,
			})
		}
	}
	return stack
}

// inheritanceClauses pulls extends/implements hints from a declaration line.
func inheritanceClauses(node *model.CodeNode, line string) []inheritClause {
	if !classLike[node.Type] {
		return nil
	}
	var out []inheritClause
	add := func(names string, relType model.RelationshipType) {
		for _, raw := range strings.Split(names, ",") {
			parent := strings.TrimSpace(raw)
			if i := strings.LastIndex(parent, "."); i >= 0 {
				parent = parent[i+1:]
			}
			if parent == "" || parent == "object" || strings.Contains(parent, "=") {
				continue
			}
			out = append(out, inheritClause{
				ChildID: node.ID,
				Parent:  parent,
				Type:    relType,
			})
		}
	}
	if m := extendsRe.FindStringSubmatch(line); m != nil {
		add(m[1], model.RelExtends)
	}
	if m := implementsRe.FindStringSubmatch(line); m != nil {
		add(m[1], model.RelImplements)
	}
	if m := pythonBaseRe.FindStringSubmatch(line); m != nil {
		add(m[1], model.RelExtends)
	}
	return out
}

// declContent keeps the signature part of a declaration line as the node's
// content: up to the opening brace, capped.
func declContent(trimmed string) string {
	if i := strings.IndexByte(trimmed, '{'); i > 0 {
		trimmed = strings.TrimSpace(trimmed[:i])
	}
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

// nearestClass finds the innermost class-like container on the stack.
func nearestClass(stack []*openContainer) *model.CodeNode {
	for i := len(stack) - 1; i >= 0; i-- {
		if classLike[stack[i].node.Type] {
			return stack[i].node
		}
	}
	return nil
}

// indentWidth measures leading whitespace, counting a tab as four columns.
func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasPrefix(trimmed, "--")
}

// isBinary treats a NUL byte in the first 8 KiB as binary content.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return false
}

// reparentGoMethods moves Go-style methods under the struct named by their
// receiver when that struct was extracted from the same file.
func reparentGoMethods(ex *extraction) {
	if len(ex.receivers) == 0 {
		return
	}
	byName := map[string]*model.CodeNode{}
	for _, n := range ex.Nodes {
		if n.Type == model.NodeClass {
			byName[n.Name] = n
		}
	}
	if len(byName) == 0 {
		return
	}
	var kept []*model.CodeNode
	for _, child := range ex.Root.Children {
		owner := ""
		if child.Type == model.NodeMethod {
			owner = ex.receivers[child.ID]
		}
		if target, ok := byName[owner]; ok && owner != "" {
			target.Children = append(target.Children, child)
			continue
		}
		kept = append(kept, child)
	}
	ex.Root.Children = kept
}

var goReceiverRe = regexp.MustCompile(`^func\s+\(\s*\w+\s+\*?([A-Za-z_]\w*)\s*\)`)
