package model

// CodeCluster is a group of similar code nodes found by similarity
// clustering. Clusters always have at least two members; singletons are not
// clusters.
type CodeCluster struct {
	ID             string   `json:"id"`
	NodeIDs        []string `json:"nodeIds"`
	DominantType   NodeType `json:"dominantType,omitempty"`
	NamingPatterns []string `json:"namingPatterns,omitempty"`
	Confidence     float64  `json:"confidence"`
	ContentHash    string   `json:"contentHash,omitempty"`
}

// Size returns the member count.
func (c *CodeCluster) Size() int { return len(c.NodeIDs) }
