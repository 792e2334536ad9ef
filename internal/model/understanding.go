package model

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisStats counts what one analysis run produced.
type AnalysisStats struct {
	TimeTakenMs             int64 `json:"timeTakenMs"`
	MemoryUsageBytes        int64 `json:"memoryUsageBytes"`
	FilesIndexed            int   `json:"filesIndexed"`
	NodesExtracted          int   `json:"nodesExtracted"`
	PatternsDiscovered      int   `json:"patternsDiscovered"`
	RelationshipsIdentified int   `json:"relationshipsIdentified"`
	ConceptsExtracted       int   `json:"conceptsExtracted"`
	DataFlowsDiscovered     int   `json:"dataFlowsDiscovered"`
	DataFlowPathsIdentified int   `json:"dataFlowPathsIdentified"`
	DependenciesDiscovered  int   `json:"dependenciesDiscovered"`
}

// UnifiedUnderstanding is the complete picture one analysis run builds of a
// codebase. Collections cross-reference each other by ID only; the container
// is what gets persisted and diffed between runs.
type UnifiedUnderstanding struct {
	ID            string                        `json:"id"`
	RootPath      string                        `json:"rootPath"`
	CreatedAt     time.Time                     `json:"createdAt"`
	UpdatedAt     time.Time                     `json:"updatedAt"`
	FileSystem    *FileSystemTree               `json:"fileSystem,omitempty"`
	Languages     map[string]*LanguageStructure `json:"languages,omitempty"`
	CodeNodes     map[string]*CodeNode          `json:"codeNodes,omitempty"`
	Relationships []*Relationship               `json:"relationships,omitempty"`
	Patterns      []*CodePattern                `json:"patterns,omitempty"`
	Dependencies  []*Dependency                 `json:"dependencies,omitempty"`
	DataFlow      *DataFlowGraph                `json:"dataFlow,omitempty"`
	Concepts      []*Concept                    `json:"concepts,omitempty"`
	SemanticUnits []*SemanticUnit               `json:"semanticUnits,omitempty"`
	Clusters      []*CodeCluster                `json:"clusters,omitempty"`
	Metadata      map[string]string             `json:"metadata,omitempty"`
	Stats         AnalysisStats                 `json:"stats"`
}

// NewUnderstanding creates an empty understanding for the given root.
func NewUnderstanding(rootPath string) *UnifiedUnderstanding {
	now := time.Now().UTC()
	return &UnifiedUnderstanding{
		ID:        uuid.New().String(),
		RootPath:  rootPath,
		CreatedAt: now,
		UpdatedAt: now,
		Languages: make(map[string]*LanguageStructure),
		CodeNodes: make(map[string]*CodeNode),
		Metadata:  make(map[string]string),
	}
}

// NodesByPath groups top-level code nodes by the file they came from.
func (u *UnifiedUnderstanding) NodesByPath() map[string][]*CodeNode {
	byPath := make(map[string][]*CodeNode)
	for _, n := range u.CodeNodes {
		byPath[n.Path] = append(byPath[n.Path], n)
	}
	return byPath
}

// Clone deep-copies the understanding so an incremental run can mutate the
// copy while the caller keeps the original for diffing.
func (u *UnifiedUnderstanding) Clone() *UnifiedUnderstanding {
	if u == nil {
		return nil
	}
	out := &UnifiedUnderstanding{
		ID:        u.ID,
		RootPath:  u.RootPath,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Stats:     u.Stats,
	}
	if u.FileSystem != nil {
		out.FileSystem = &FileSystemTree{
			Root:      cloneDir(u.FileSystem.Root),
			FileCount: u.FileSystem.FileCount,
			DirCount:  u.FileSystem.DirCount,
			TotalSize: u.FileSystem.TotalSize,
		}
	}
	if u.Languages != nil {
		out.Languages = make(map[string]*LanguageStructure, len(u.Languages))
		for k, v := range u.Languages {
			lang := *v
			lang.Extensions = append([]string(nil), v.Extensions...)
			lang.DominantParadigms = append([]string(nil), v.DominantParadigms...)
			lang.FilesByPath = cloneStringBoolMap(v.FilesByPath)
			out.Languages[k] = &lang
		}
	}
	if u.CodeNodes != nil {
		out.CodeNodes = make(map[string]*CodeNode, len(u.CodeNodes))
		for k, v := range u.CodeNodes {
			out.CodeNodes[k] = cloneNode(v)
		}
	}
	for _, r := range u.Relationships {
		rel := *r
		rel.Metadata = cloneStringMap(r.Metadata)
		out.Relationships = append(out.Relationships, &rel)
	}
	for _, p := range u.Patterns {
		pat := *p
		pat.Instances = append([]PatternInstance(nil), p.Instances...)
		pat.Signature.ChildTypes = append([]string(nil), p.Signature.ChildTypes...)
		out.Patterns = append(out.Patterns, &pat)
	}
	for _, d := range u.Dependencies {
		dep := *d
		out.Dependencies = append(out.Dependencies, &dep)
	}
	if u.DataFlow != nil {
		out.DataFlow = cloneDataFlow(u.DataFlow)
	}
	for _, c := range u.Concepts {
		con := *c
		con.CodeElements = append([]string(nil), c.CodeElements...)
		con.RelatedConcepts = append([]ConceptLink(nil), c.RelatedConcepts...)
		out.Concepts = append(out.Concepts, &con)
	}
	for _, s := range u.SemanticUnits {
		unit := *s
		unit.CodeNodeIDs = append([]string(nil), s.CodeNodeIDs...)
		unit.Concepts = append([]string(nil), s.Concepts...)
		out.SemanticUnits = append(out.SemanticUnits, &unit)
	}
	for _, c := range u.Clusters {
		cl := *c
		cl.NodeIDs = append([]string(nil), c.NodeIDs...)
		cl.NamingPatterns = append([]string(nil), c.NamingPatterns...)
		out.Clusters = append(out.Clusters, &cl)
	}
	out.Metadata = cloneStringMap(u.Metadata)
	return out
}

func cloneDir(d *DirectoryNode) *DirectoryNode {
	if d == nil {
		return nil
	}
	out := &DirectoryNode{
		Path:        d.Path,
		Name:        d.Name,
		ContentHash: d.ContentHash,
		Metadata:    cloneStringMap(d.Metadata),
	}
	for _, f := range d.Files {
		file := *f
		file.Metadata = cloneStringMap(f.Metadata)
		out.Files = append(out.Files, &file)
	}
	for _, sub := range d.Directories {
		out.Directories = append(out.Directories, cloneDir(sub))
	}
	return out
}

func cloneNode(n *CodeNode) *CodeNode {
	if n == nil {
		return nil
	}
	out := *n
	out.Metadata = cloneStringMap(n.Metadata)
	out.Children = nil
	for _, c := range n.Children {
		out.Children = append(out.Children, cloneNode(c))
	}
	return &out
}

func cloneDataFlow(g *DataFlowGraph) *DataFlowGraph {
	out := &DataFlowGraph{}
	if g.Nodes != nil {
		out.Nodes = make(map[string]*DataNode, len(g.Nodes))
		for k, v := range g.Nodes {
			node := *v
			out.Nodes[k] = &node
		}
	}
	for _, f := range g.Flows {
		flow := *f
		out.Flows = append(out.Flows, &flow)
	}
	for _, p := range g.Paths {
		path := *p
		path.NodeIDs = append([]string(nil), p.NodeIDs...)
		out.Paths = append(out.Paths, &path)
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringBoolMap(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
