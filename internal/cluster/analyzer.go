// Package cluster finds natural groupings of similar code nodes. For each
// node type a pairwise similarity matrix blends naming, structural,
// relationship, semantic and size evidence; hierarchical merging and density
// expansion then read groups out of the matrix. Kept clusters carry their
// dominant node type, the naming patterns a majority of members follow, and
// a confidence equal to the mean similarity inside the group.
package cluster

import (
	"log/slog"
	"sort"
	"strings"

	"fathom/internal/engine"
	"fathom/internal/incremental"
	"fathom/internal/model"
)

const (
	minClusterSize = 2
	densityMinPts  = 2
	// maxClusterPopulation bounds the quadratic matrix cost per node type.
	maxClusterPopulation = 512
)

// Analyzer builds similarity clusters over the extracted nodes.
type Analyzer struct {
	logger  *slog.Logger
	hasher  *incremental.Hasher
	weights MetricWeights
}

// NewAnalyzer creates the clustering analyzer with the default metric
// weights.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{
		logger:  logger,
		hasher:  incremental.NewHasher(),
		weights: DefaultWeights(),
	}
}

var _ engine.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) ID() string             { return "cluster" }
func (a *Analyzer) Priority() int          { return 70 }
func (a *Analyzer) Dependencies() []string { return []string{"structure", "semantic"} }

func (a *Analyzer) Initialize(ac *engine.Context) error { return nil }

func (a *Analyzer) AnalyzeFile(ac *engine.Context, file *model.FileNode, content []byte) error {
	return nil
}

func (a *Analyzer) ProcessRelationships(ac *engine.Context) error { return nil }

func (a *Analyzer) DiscoverPatterns(ac *engine.Context) error { return nil }

// IntegrateAnalysis rebuilds the cluster list from the current node
// population. It runs last in the integration phase, after semantic units
// and concepts exist, so the semantic metric sees them.
func (a *Analyzer) IntegrateAnalysis(ac *engine.Context) error {
	ac.ResetClusters()
	u := ac.Understanding()
	thr := ac.Thresholds()

	groups := nodesByType(u)
	total := 0
	for _, typ := range sortedTypes(groups) {
		nodes := groups[typ]
		if len(nodes) < minClusterSize {
			continue
		}
		if len(nodes) > maxClusterPopulation {
			nodes = nodes[:maxClusterPopulation]
		}
		m := BuildMatrix(u, nodes, a.weights)
		seen := map[string]bool{}
		total += a.register(ac, u, m, typ, "hier",
			Hierarchical(m, thr.ClusterMinSimilarity, 0), seen)
		total += a.register(ac, u, m, typ, "density",
			Density(m, thr.ClusterSimilarityFloor, densityMinPts), seen)
	}
	a.logger.Debug("clusters formed", "count", total)
	return nil
}

func (a *Analyzer) Cleanup(ac *engine.Context) error { return nil }

// register adds every non-singleton group as a cluster, deduplicating by
// member set so a group both algorithms find is kept once.
func (a *Analyzer) register(ac *engine.Context, u *model.UnifiedUnderstanding, m *Matrix,
	typ model.NodeType, kind string, groups [][]int, seen map[string]bool) int {
	count := 0
	for _, members := range groups {
		if len(members) < minClusterSize {
			continue
		}
		ids := make([]string, 0, len(members))
		for _, i := range members {
			ids = append(ids, m.NodeID(i))
		}
		sig := strings.Join(ids, "\x00")
		if seen[sig] {
			continue
		}
		seen[sig] = true
		cl := &model.CodeCluster{
			ID:             "cluster:" + kind + ":" + a.hasher.HashFields(ids...)[:12],
			NodeIDs:        ids,
			DominantType:   typ,
			NamingPatterns: majorityNamingPatterns(u, ids),
			Confidence:     intraSimilarity(m, members),
		}
		cl.ContentHash = a.hasher.HashCluster(cl)
		ac.AddCluster(cl)
		count++
	}
	return count
}

// majorityNamingPatterns lists the naming patterns that more than half the
// cluster members instance.
func majorityNamingPatterns(u *model.UnifiedUnderstanding, memberIDs []string) []string {
	members := toSet(memberIDs)
	var out []string
	for _, p := range u.Patterns {
		if p.Type != model.PatternNaming {
			continue
		}
		hits := 0
		for _, inst := range p.Instances {
			if members[inst.NodeID] {
				hits++
			}
		}
		if hits*2 > len(memberIDs) {
			out = append(out, p.ID)
		}
	}
	sort.Strings(out)
	return out
}

// nodesByType buckets the registered nodes by type, id-sorted within each
// bucket.
func nodesByType(u *model.UnifiedUnderstanding) map[model.NodeType][]*model.CodeNode {
	ids := make([]string, 0, len(u.CodeNodes))
	for id := range u.CodeNodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	groups := map[model.NodeType][]*model.CodeNode{}
	for _, id := range ids {
		n := u.CodeNodes[id]
		groups[n.Type] = append(groups[n.Type], n)
	}
	return groups
}

func sortedTypes(groups map[model.NodeType][]*model.CodeNode) []model.NodeType {
	types := make([]model.NodeType, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
