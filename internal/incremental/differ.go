package incremental

import (
	"sort"

	"fathom/internal/model"
)

// Differ compares two understandings entity by entity. Results classify
// every key as added, modified, deleted or unchanged; nothing is dropped.
type Differ struct{}

// NewDiffer creates a differ.
func NewDiffer() *Differ { return &Differ{} }

// CompareTrees diffs two file trees by path and content hash.
func (d *Differ) CompareTrees(old, new *model.FileSystemTree) CollectionDiff {
	return diffHashes(treeHashes(old), treeHashes(new))
}

// CompareUnderstandings diffs every collection of two understandings.
// Swapping the arguments swaps Added and Deleted, leaves Modified and
// Unchanged intact.
func (d *Differ) CompareUnderstandings(old, new *model.UnifiedUnderstanding) *UnderstandingDiff {
	diff := &UnderstandingDiff{}
	diff.Files = d.CompareTrees(fileTree(old), fileTree(new))
	diff.CodeNodes = diffHashes(nodeHashes(old), nodeHashes(new))
	diff.Relationships = diffHashes(relHashes(old), relHashes(new))
	diff.Patterns = diffHashes(patternHashes(old), patternHashes(new))
	diff.Dependencies = diffHashes(depHashes(old), depHashes(new))
	diff.DataFlows = diffHashes(flowHashes(old), flowHashes(new))
	diff.Concepts = diffHashes(conceptHashes(old), conceptHashes(new))
	diff.SemanticUnits = diffHashes(unitHashes(old), unitHashes(new))
	diff.Clusters = diffHashes(clusterHashes(old), clusterHashes(new))
	return diff
}

// diffHashes classifies keys of two hash maps.
func diffHashes(old, new map[string]string) CollectionDiff {
	var diff CollectionDiff
	for key, newHash := range new {
		oldHash, existed := old[key]
		switch {
		case !existed:
			diff.Added = append(diff.Added, key)
		case oldHash != newHash:
			diff.Modified = append(diff.Modified, key)
		default:
			diff.Unchanged = append(diff.Unchanged, key)
		}
	}
	for key := range old {
		if _, exists := new[key]; !exists {
			diff.Deleted = append(diff.Deleted, key)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Deleted)
	sort.Strings(diff.Unchanged)
	return diff
}

func fileTree(u *model.UnifiedUnderstanding) *model.FileSystemTree {
	if u == nil {
		return nil
	}
	return u.FileSystem
}

func treeHashes(t *model.FileSystemTree) map[string]string {
	out := make(map[string]string)
	if t == nil {
		return out
	}
	t.Walk(func(_ *model.DirectoryNode, f *model.FileNode) {
		out[f.Path] = f.ContentHash
	})
	return out
}

func nodeHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil {
		return out
	}
	for id, n := range u.CodeNodes {
		out[id] = n.ContentHash
	}
	return out
}

func relHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil {
		return out
	}
	for _, r := range u.Relationships {
		out[r.ID] = r.ContentHash
	}
	return out
}

func patternHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil {
		return out
	}
	for _, p := range u.Patterns {
		out[p.ID] = p.ContentHash
	}
	return out
}

func depHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil {
		return out
	}
	for _, d := range u.Dependencies {
		out[d.ID] = d.ContentHash
	}
	return out
}

func flowHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil || u.DataFlow == nil {
		return out
	}
	for _, f := range u.DataFlow.Flows {
		out[f.ID] = f.ContentHash
	}
	return out
}

func conceptHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil {
		return out
	}
	for _, c := range u.Concepts {
		out[c.ID] = c.ContentHash
	}
	return out
}

func unitHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil {
		return out
	}
	for _, s := range u.SemanticUnits {
		out[s.ID] = s.ContentHash
	}
	return out
}

func clusterHashes(u *model.UnifiedUnderstanding) map[string]string {
	out := make(map[string]string)
	if u == nil {
		return out
	}
	for _, c := range u.Clusters {
		out[c.ID] = c.ContentHash
	}
	return out
}
