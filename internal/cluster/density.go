package cluster

import "sort"

// Density groups nodes through similarity neighborhoods: a node's neighbors
// are all others at or above floor, nodes with at least minPts neighbors
// seed clusters, and a cluster grows by expanding through neighboring seeds.
// Border nodes join the first cluster that reaches them without expanding
// it further. Nodes no cluster reaches are noise and are dropped.
func Density(m *Matrix, floor float64, minPts int) [][]int {
	n := m.Len()
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j != i && m.Sim(i, j) >= floor {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	assigned := make([]bool, n)
	var clusters [][]int
	for seed := 0; seed < n; seed++ {
		if assigned[seed] || len(neighbors[seed]) < minPts {
			continue
		}
		assigned[seed] = true
		members := []int{}
		queue := []int{seed}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, cur)
			if len(neighbors[cur]) < minPts {
				continue
			}
			for _, nb := range neighbors[cur] {
				if !assigned[nb] {
					assigned[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		sort.Ints(members)
		clusters = append(clusters, members)
	}
	return clusters
}
