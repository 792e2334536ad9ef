package incremental

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"fathom/internal/model"
)

// Hasher computes the content hashes the differ compares. Hashes cover
// content and structure only, never entity ids or timestamps, so repeated
// analyses of identical input hash identically.
type Hasher struct{}

// NewHasher creates a hasher.
func NewHasher() *Hasher { return &Hasher{} }

// HashBytes hashes raw content.
func (h *Hasher) HashBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFields hashes a sequence of logical fields. Fields are NUL-joined so
// ("ab","c") and ("a","bc") hash differently.
func (h *Hasher) HashFields(fields ...string) string {
	return h.HashBytes([]byte(strings.Join(fields, "\x00")))
}

// HashChildren hashes a set of child hashes independent of their original
// order. A composite's hash is a pure function of its children.
func (h *Hasher) HashChildren(hashes []string) string {
	sorted := append([]string(nil), hashes...)
	sort.Strings(sorted)
	return h.HashFields(sorted...)
}

// HashTree fills directory hashes bottom-up from file content hashes and
// returns the root hash. File hashes must already be set.
func (h *Hasher) HashTree(tree *model.FileSystemTree) string {
	if tree == nil || tree.Root == nil {
		return ""
	}
	return h.hashDir(tree.Root)
}

func (h *Hasher) hashDir(dir *model.DirectoryNode) string {
	children := make([]string, 0, len(dir.Files)+len(dir.Directories))
	for _, f := range dir.Files {
		// A file's tree identity is its path plus its content.
		children = append(children, h.HashFields(f.Path, f.ContentHash))
	}
	for _, sub := range dir.Directories {
		children = append(children, h.hashDir(sub))
	}
	dir.ContentHash = h.HashChildren(children)
	return dir.ContentHash
}

// HashCodeNode hashes a node from its kind, name, position and declaration
// text plus its children's hashes, recursively.
func (h *Hasher) HashCodeNode(n *model.CodeNode) string {
	childHashes := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		childHashes = append(childHashes, h.HashCodeNode(c))
	}
	n.ContentHash = h.HashFields(
		string(n.Type), n.Name, n.Path,
		strconv.Itoa(n.Location.StartLine), strconv.Itoa(n.Location.EndLine),
		n.Content,
		h.HashChildren(childHashes),
	)
	return n.ContentHash
}

// HashRelationship hashes an edge from its type and endpoints. Endpoint ids
// are deterministic slugs, so the hash stays stable across runs.
func (h *Hasher) HashRelationship(r *model.Relationship) string {
	r.ContentHash = h.HashFields(string(r.Type), r.SourceID, r.TargetID, formatFloat(r.Weight))
	return r.ContentHash
}

// HashPattern hashes a pattern from its signature and evidence.
func (h *Hasher) HashPattern(p *model.CodePattern) string {
	instanceIDs := make([]string, 0, len(p.Instances))
	for _, inst := range p.Instances {
		instanceIDs = append(instanceIDs, inst.NodeID)
	}
	p.ContentHash = h.HashFields(
		string(p.Type), p.Name,
		string(p.Signature.NodeType), p.Signature.Convention,
		p.Signature.Affix, string(p.Signature.AffixKind),
		p.Signature.Directory, p.Signature.Style,
		strings.Join(p.Signature.ChildTypes, ","),
		formatFloat(p.Confidence), strconv.Itoa(p.Frequency),
		h.HashChildren(instanceIDs),
	)
	return p.ContentHash
}

// HashDependency hashes a resolved dependency.
func (h *Hasher) HashDependency(d *model.Dependency) string {
	d.ContentHash = h.HashFields(d.SourcePath, d.ModuleSpecifier, string(d.Type), d.ResolvedPath)
	return d.ContentHash
}

// HashDataFlow hashes a flow edge.
func (h *Hasher) HashDataFlow(f *model.DataFlow) string {
	f.ContentHash = h.HashFields(f.FromID, f.ToID, strconv.FormatBool(f.Async), strconv.FormatBool(f.Conditional))
	return f.ContentHash
}

// HashConcept hashes a concept from its name and evidence elements.
func (h *Hasher) HashConcept(c *model.Concept) string {
	c.ContentHash = h.HashFields(c.Name, c.Description, h.HashChildren(c.CodeElements))
	return c.ContentHash
}

// HashSemanticUnit hashes a unit from its type, name and members.
func (h *Hasher) HashSemanticUnit(u *model.SemanticUnit) string {
	u.ContentHash = h.HashFields(string(u.Type), u.Name, h.HashChildren(u.CodeNodeIDs))
	return u.ContentHash
}

// HashCluster hashes a cluster from its members and dominant type.
func (h *Hasher) HashCluster(c *model.CodeCluster) string {
	c.ContentHash = h.HashFields(string(c.DominantType), h.HashChildren(c.NodeIDs))
	return c.ContentHash
}

// HashUnderstanding fills every entity hash in the understanding and returns
// a digest of the whole. The understanding's own uuid never participates.
func (h *Hasher) HashUnderstanding(u *model.UnifiedUnderstanding) string {
	var parts []string
	if u.FileSystem != nil {
		parts = append(parts, h.HashTree(u.FileSystem))
	}
	for _, n := range u.CodeNodes {
		parts = append(parts, h.HashCodeNode(n))
	}
	for _, r := range u.Relationships {
		parts = append(parts, h.HashRelationship(r))
	}
	for _, p := range u.Patterns {
		parts = append(parts, h.HashPattern(p))
	}
	for _, d := range u.Dependencies {
		parts = append(parts, h.HashDependency(d))
	}
	if u.DataFlow != nil {
		for _, f := range u.DataFlow.Flows {
			parts = append(parts, h.HashDataFlow(f))
		}
	}
	for _, c := range u.Concepts {
		parts = append(parts, h.HashConcept(c))
	}
	for _, s := range u.SemanticUnits {
		parts = append(parts, h.HashSemanticUnit(s))
	}
	for _, c := range u.Clusters {
		parts = append(parts, h.HashCluster(c))
	}
	return h.HashChildren(parts)
}

// formatFloat renders a float deterministically for hashing.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
