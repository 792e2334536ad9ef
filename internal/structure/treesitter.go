//go:build cgo

package structure

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"fathom/internal/model"
)

// preciseExtractor parses supported languages with tree-sitter and produces
// the same extraction shape as the line heuristics, with exact spans.
type preciseExtractor struct {
	mu     sync.Mutex // the parser is not safe for concurrent use
	parser *sitter.Parser
}

func newPreciseExtractor() *preciseExtractor {
	return &preciseExtractor{parser: sitter.NewParser()}
}

// preciseAvailable reports whether tree-sitter extraction is compiled in.
func preciseAvailable() bool { return true }

// grammarFor maps a file extension to its grammar, or nil when the language
// is not parsed precisely.
func grammarFor(ext string) *sitter.Language {
	switch ext {
	case ".go":
		return golang.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".ts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".py", ".pyw":
		return python.GetLanguage()
	}
	return nil
}

// extract parses one file. ok is false for unsupported extensions and parse
// failures; callers keep the heuristic result in that case.
func (e *preciseExtractor) extract(ctx context.Context, path, name, ext string, content []byte) (*extraction, bool) {
	if e == nil {
		return nil, false
	}
	grammar := grammarFor(ext)
	if grammar == nil {
		return nil, false
	}

	e.mu.Lock()
	e.parser.SetLanguage(grammar)
	tree, err := e.parser.ParseCtx(ctx, nil, content)
	e.mu.Unlock()
	if err != nil || tree == nil {
		return nil, false
	}
	defer tree.Close()

	lineCount := strings.Count(string(content), "\n") + 1
	root := &model.CodeNode{
		ID:   fileNodeID(path),
		Type: model.NodeFile,
		Name: name,
		Path: path,
		Location: model.Location{
			StartLine: 1,
			EndLine:   lineCount,
		},
		Metadata: map[string]string{metaExtractor: "treesitter"},
	}
	w := &tsWalk{
		ex: &extraction{
			Root:      root,
			Nodes:     []*model.CodeNode{root},
			receivers: map[string]string{},
		},
		path:   path,
		source: content,
	}

	switch ext {
	case ".go":
		w.goSource(tree.RootNode())
	case ".py", ".pyw":
		w.pythonBlock(root, tree.RootNode(), false)
	default:
		w.scriptBlock(root, tree.RootNode())
	}

	reparentGoMethods(w.ex)
	return w.ex, true
}

// tsWalk carries the state of one tree walk.
type tsWalk struct {
	ex     *extraction
	path   string
	source []byte
}

func (w *tsWalk) text(n *sitter.Node) string {
	return string(w.source[n.StartByte():n.EndByte()])
}

func (w *tsWalk) firstLine(n *sitter.Node) string {
	text := w.text(n)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// add creates a node for a named declaration under parent. span determines
// the node's line range; nil names and the per-file cap yield nil.
func (w *tsWalk) add(parent *model.CodeNode, t model.NodeType, nameNode, span *sitter.Node) *model.CodeNode {
	if nameNode == nil || len(w.ex.Nodes) > maxNodesPerFile {
		return nil
	}
	name := w.text(nameNode)
	if name == "" {
		return nil
	}
	start := int(span.StartPoint().Row) + 1
	node := &model.CodeNode{
		ID:   nodeID(w.path, t, name, start),
		Type: t,
		Name: name,
		Path: w.path,
		Location: model.Location{
			StartLine: start,
			EndLine:   int(span.EndPoint().Row) + 1,
		},
		Content:  declContent(w.firstLine(span)),
		Metadata: map[string]string{metaExtractor: "treesitter"},
	}
	parent.Children = append(parent.Children, node)
	w.ex.Nodes = append(w.ex.Nodes, node)
	return node
}

// goSource walks the top level of a Go file.
func (w *tsWalk) goSource(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)
		switch decl.Type() {
		case "function_declaration":
			w.add(w.ex.Root, model.NodeFunction, decl.ChildByFieldName("name"), decl)
		case "method_declaration":
			node := w.add(w.ex.Root, model.NodeMethod, decl.ChildByFieldName("name"), decl)
			if node == nil {
				continue
			}
			if recv := decl.ChildByFieldName("receiver"); recv != nil {
				if t := firstOfType(recv, "type_identifier"); t != nil {
					w.ex.receivers[node.ID] = w.text(t)
				}
			}
		case "type_declaration":
			for j := 0; j < int(decl.NamedChildCount()); j++ {
				if spec := decl.NamedChild(j); spec.Type() == "type_spec" {
					w.goTypeSpec(spec)
				}
			}
		case "var_declaration", "const_declaration":
			for j := 0; j < int(decl.NamedChildCount()); j++ {
				spec := decl.NamedChild(j)
				if spec.Type() == "var_spec" || spec.Type() == "const_spec" {
					w.add(w.ex.Root, model.NodeVariable, spec.ChildByFieldName("name"), spec)
				}
			}
		}
	}
}

func (w *tsWalk) goTypeSpec(spec *sitter.Node) {
	nameNode := spec.ChildByFieldName("name")
	typeNode := spec.ChildByFieldName("type")
	if typeNode == nil {
		w.add(w.ex.Root, model.NodeTypeDef, nameNode, spec)
		return
	}
	switch typeNode.Type() {
	case "struct_type":
		if node := w.add(w.ex.Root, model.NodeClass, nameNode, spec); node != nil {
			w.goStructBody(node, typeNode)
		}
	case "interface_type":
		if node := w.add(w.ex.Root, model.NodeInterface, nameNode, spec); node != nil {
			w.goInterfaceBody(node, typeNode)
		}
	default:
		w.add(w.ex.Root, model.NodeTypeDef, nameNode, spec)
	}
}

// goStructBody extracts named fields as properties and anonymous fields as
// embedding evidence.
func (w *tsWalk) goStructBody(class *model.CodeNode, structType *sitter.Node) {
	fields := firstOfType(structType, "field_declaration_list")
	if fields == nil {
		return
	}
	for i := 0; i < int(fields.NamedChildCount()); i++ {
		field := fields.NamedChild(i)
		if field.Type() != "field_declaration" {
			continue
		}
		named := false
		for j := 0; j < int(field.NamedChildCount()); j++ {
			if part := field.NamedChild(j); part.Type() == "field_identifier" {
				named = true
				w.add(class, model.NodeProperty, part, field)
			}
		}
		if !named {
			if t := firstOfType(field, "type_identifier"); t != nil {
				w.ex.Inherits = append(w.ex.Inherits, inheritClause{
					ChildID:  class.ID,
					Parent:   w.text(t),
					Type:     model.RelExtends,
					Embedded: true,
				})
			}
		}
	}
}

func (w *tsWalk) goInterfaceBody(iface *model.CodeNode, interfaceType *sitter.Node) {
	for i := 0; i < int(interfaceType.NamedChildCount()); i++ {
		child := interfaceType.NamedChild(i)
		if child.Type() != "type_identifier" && child.Type() != "qualified_type" {
			continue
		}
		parent := w.text(child)
		if k := strings.LastIndex(parent, "."); k >= 0 {
			parent = parent[k+1:]
		}
		w.ex.Inherits = append(w.ex.Inherits, inheritClause{
			ChildID:  iface.ID,
			Parent:   parent,
			Type:     model.RelExtends,
			Embedded: true,
		})
	}
}

// pythonBlock walks the statements of a module, class or function body.
// Functions directly inside a class body become methods.
func (w *tsWalk) pythonBlock(parent *model.CodeNode, block *sitter.Node, inClass bool) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		stmt := block.NamedChild(i)
		if stmt.Type() == "decorated_definition" {
			if def := stmt.ChildByFieldName("definition"); def != nil {
				stmt = def
			}
		}
		switch stmt.Type() {
		case "class_definition":
			node := w.add(parent, model.NodeClass, stmt.ChildByFieldName("name"), stmt)
			if node == nil {
				continue
			}
			w.pythonSuperclasses(node, stmt)
			if body := stmt.ChildByFieldName("body"); body != nil {
				w.pythonBlock(node, body, true)
			}
		case "function_definition":
			t := model.NodeFunction
			if inClass {
				t = model.NodeMethod
			}
			node := w.add(parent, t, stmt.ChildByFieldName("name"), stmt)
			if node == nil {
				continue
			}
			if body := stmt.ChildByFieldName("body"); body != nil {
				w.pythonBlock(node, body, false)
			}
		case "expression_statement":
			if parent.Type == model.NodeFile {
				w.pythonConstant(stmt)
			}
		}
	}
}

func (w *tsWalk) pythonSuperclasses(class *model.CodeNode, def *sitter.Node) {
	supers := def.ChildByFieldName("superclasses")
	if supers == nil {
		return
	}
	for i := 0; i < int(supers.NamedChildCount()); i++ {
		arg := supers.NamedChild(i)
		if arg.Type() != "identifier" && arg.Type() != "attribute" {
			continue
		}
		parent := w.text(arg)
		if k := strings.LastIndex(parent, "."); k >= 0 {
			parent = parent[k+1:]
		}
		if parent == "" || parent == "object" {
			continue
		}
		w.ex.Inherits = append(w.ex.Inherits, inheritClause{
			ChildID: class.ID,
			Parent:  parent,
			Type:    model.RelExtends,
		})
	}
}

// pythonConstant extracts a module-level ALL_CAPS assignment.
func (w *tsWalk) pythonConstant(stmt *sitter.Node) {
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		assign := stmt.NamedChild(i)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" || !isConstName(w.text(left)) {
			continue
		}
		w.add(w.ex.Root, model.NodeVariable, left, stmt)
	}
}

func isConstName(name string) bool {
	if len(name) < 3 || name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// scriptBlock walks the top level of a JavaScript or TypeScript file.
// Heritage clauses are read from the declaration line, which keeps the
// javascript, typescript and tsx grammars on one code path.
func (w *tsWalk) scriptBlock(parent *model.CodeNode, block *sitter.Node) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		w.scriptStatement(parent, block.NamedChild(i))
	}
}

func (w *tsWalk) scriptStatement(parent *model.CodeNode, stmt *sitter.Node) {
	if stmt.Type() == "export_statement" {
		if decl := stmt.ChildByFieldName("declaration"); decl != nil {
			w.scriptStatement(parent, decl)
		}
		return
	}
	// The typescript grammar parses a namespace statement as an expression.
	if stmt.Type() == "expression_statement" && stmt.NamedChildCount() == 1 {
		if inner := stmt.NamedChild(0); inner.Type() == "internal_module" {
			stmt = inner
		}
	}
	switch stmt.Type() {
	case "class_declaration", "abstract_class_declaration":
		node := w.add(parent, model.NodeClass, stmt.ChildByFieldName("name"), stmt)
		if node == nil {
			return
		}
		w.ex.Inherits = append(w.ex.Inherits, inheritanceClauses(node, w.firstLine(stmt))...)
		if body := stmt.ChildByFieldName("body"); body != nil {
			w.scriptClassBody(node, body)
		}
	case "interface_declaration":
		if node := w.add(parent, model.NodeInterface, stmt.ChildByFieldName("name"), stmt); node != nil {
			w.ex.Inherits = append(w.ex.Inherits, inheritanceClauses(node, w.firstLine(stmt))...)
		}
	case "enum_declaration":
		w.add(parent, model.NodeEnum, stmt.ChildByFieldName("name"), stmt)
	case "type_alias_declaration":
		w.add(parent, model.NodeTypeDef, stmt.ChildByFieldName("name"), stmt)
	case "function_declaration", "generator_function_declaration":
		w.add(parent, model.NodeFunction, stmt.ChildByFieldName("name"), stmt)
	case "lexical_declaration", "variable_declaration":
		w.scriptDeclarators(parent, stmt)
	case "internal_module", "module":
		nameNode := stmt.ChildByFieldName("name")
		if nameNode == nil || (nameNode.Type() != "identifier" && nameNode.Type() != "nested_identifier") {
			return
		}
		node := w.add(parent, model.NodeNamespace, nameNode, stmt)
		if node == nil {
			return
		}
		if body := stmt.ChildByFieldName("body"); body != nil {
			w.scriptBlock(node, body)
		}
	}
}

// scriptDeclarators turns each declarator into a function node when its
// value is function-shaped, a variable otherwise.
func (w *tsWalk) scriptDeclarators(parent *model.CodeNode, stmt *sitter.Node) {
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		declarator := stmt.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		t := model.NodeVariable
		if value := declarator.ChildByFieldName("value"); value != nil {
			switch value.Type() {
			case "arrow_function", "function", "function_expression", "generator_function":
				t = model.NodeFunction
			}
		}
		w.add(parent, t, nameNode, stmt)
	}
}

func (w *tsWalk) scriptClassBody(class *model.CodeNode, body *sitter.Node) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_definition":
			w.add(class, model.NodeMethod, member.ChildByFieldName("name"), member)
		case "public_field_definition", "field_definition":
			w.add(class, model.NodeProperty, member.ChildByFieldName("name"), member)
		}
	}
}

// firstOfType finds the first descendant with the given node type.
func firstOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == nodeType {
			return child
		}
		if found := firstOfType(child, nodeType); found != nil {
			return found
		}
	}
	return nil
}
