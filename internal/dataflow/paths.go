package dataflow

import (
	"sort"

	"fathom/internal/incremental"
	"fathom/internal/model"
)

// buildPaths walks the flow graph depth-first from every source node and
// records each simple path that reaches a sink or store. Depth and total
// count are bounded; traversal order is deterministic.
func buildPaths(nodes map[string]*model.DataNode, flows []*model.DataFlow, h *incremental.Hasher) []*model.DataFlowPath {
	adj := map[string][]*model.DataFlow{}
	for _, f := range flows {
		adj[f.FromID] = append(adj[f.FromID], f)
	}
	for _, out := range adj {
		sort.Slice(out, func(i, j int) bool { return out[i].ToID < out[j].ToID })
	}

	var sources []string
	for id, n := range nodes {
		if n.Role == model.RoleSource {
			sources = append(sources, id)
		}
	}
	sort.Strings(sources)

	var paths []*model.DataFlowPath
	trail := make([]string, 0, maxPathDepth)
	confs := make([]float64, 0, maxPathDepth)
	visited := map[string]bool{}

	var walk func(id string)
	walk = func(id string) {
		if len(paths) >= maxPathCount || visited[id] {
			return
		}
		node := nodes[id]
		if node == nil {
			return
		}
		visited[id] = true
		trail = append(trail, id)

		if len(trail) > 1 && (node.Role == model.RoleSink || node.Role == model.RoleStore) {
			ids := append([]string(nil), trail...)
			paths = append(paths, &model.DataFlowPath{
				ID:         "path:" + h.HashFields(ids...)[:12],
				NodeIDs:    ids,
				Confidence: mean(confs),
			})
		} else if len(trail) < maxPathDepth {
			for _, f := range adj[id] {
				confs = append(confs, f.Confidence)
				walk(f.ToID)
				confs = confs[:len(confs)-1]
			}
		}

		trail = trail[:len(trail)-1]
		delete(visited, id)
	}

	for _, src := range sources {
		if len(paths) >= maxPathCount {
			break
		}
		walk(src)
	}
	return paths
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
