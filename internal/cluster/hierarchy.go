package cluster

import "sort"

// Hierarchical agglomeratively merges the globally most similar pair of
// clusters. A merge is admitted only while its average inter-cluster
// similarity stays at or above minSim and every member of the merged cluster
// keeps an average similarity to the rest of at least minSim. Merging also
// stops once the cluster count reaches targetCount (0 means no target).
// Returns index groups over the matrix, singletons included; callers decide
// what to do with them.
func Hierarchical(m *Matrix, minSim float64, targetCount int) [][]int {
	clusters := make([][]int, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		clusters = append(clusters, []int{i})
	}
	for len(clusters) > 1 {
		if targetCount > 0 && len(clusters) <= targetCount {
			break
		}
		bi, bj, best := -1, -1, -1.0
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				avg := interSimilarity(m, clusters[i], clusters[j])
				if avg < minSim || avg <= best {
					continue
				}
				if !coherentMerge(m, clusters[i], clusters[j], minSim) {
					continue
				}
				bi, bj, best = i, j, avg
			}
		}
		if bi < 0 {
			break
		}
		merged := append(append([]int(nil), clusters[bi]...), clusters[bj]...)
		sort.Ints(merged)
		next := make([][]int, 0, len(clusters)-1)
		for k, c := range clusters {
			if k != bi && k != bj {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i][0] < clusters[j][0] })
	return clusters
}

// interSimilarity is the mean similarity across all cross pairs.
func interSimilarity(m *Matrix, a, b []int) float64 {
	total := 0.0
	for _, i := range a {
		for _, j := range b {
			total += m.Sim(i, j)
		}
	}
	return total / float64(len(a)*len(b))
}

// coherentMerge reports whether every member of the would-be merged cluster
// keeps an average similarity to the other members of at least minSim.
func coherentMerge(m *Matrix, a, b []int, minSim float64) bool {
	merged := append(append([]int(nil), a...), b...)
	for _, i := range merged {
		total := 0.0
		for _, j := range merged {
			if i != j {
				total += m.Sim(i, j)
			}
		}
		if total/float64(len(merged)-1) < minSim {
			return false
		}
	}
	return true
}

// intraSimilarity is the mean pairwise similarity inside one group.
func intraSimilarity(m *Matrix, members []int) float64 {
	total, pairs := 0.0, 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += m.Sim(members[i], members[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}
