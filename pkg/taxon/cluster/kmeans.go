// Package cluster groups categories into thematic clusters using
// co-occurrence-derived feature vectors and K-means with K-means++ seeding.
// The result is a local optimum; no global optimum is guaranteed.
package cluster

import (
	"math"
	"math/rand"
)

// maxIterations caps Lloyd's iterations per K-means run.
const maxIterations = 300

// kmeans clusters the vectors into at most k groups and returns the cluster
// assignment per vector. Fewer than k non-empty clusters can result when
// points coincide.
func kmeans(vectors [][]float64, k int, rng *rand.Rand) []int {
	n := len(vectors)
	if k > n {
		k = n
	}
	centroids := seedPlusPlus(vectors, k, rng)
	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	dim := len(vectors[0])
	counts := make([]int, k)
	sums := make([][]float64, k)
	for j := range sums {
		sums[j] = make([]float64, dim)
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, vec := range vectors {
			best := nearestCentroid(vec, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		for j := range sums {
			counts[j] = 0
			for d := range sums[j] {
				sums[j][d] = 0
			}
		}
		for i, vec := range vectors {
			j := assignments[i]
			counts[j]++
			for d, v := range vec {
				sums[j][d] += v
			}
		}
		for j := range centroids {
			if counts[j] == 0 {
				// Re-seed an empty cluster from a random point.
				copy(centroids[j], vectors[rng.Intn(n)])
				continue
			}
			scale := 1 / float64(counts[j])
			for d := range centroids[j] {
				centroids[j][d] = sums[j][d] * scale
			}
		}
	}

	return assignments
}

// seedPlusPlus picks k initial centroids: the first uniformly at random, each
// subsequent one with probability proportional to its squared distance to
// the nearest centroid chosen so far.
func seedPlusPlus(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(vectors)
	centroids := make([][]float64, 0, k)

	first := make([]float64, len(vectors[0]))
	copy(first, vectors[rng.Intn(n)])
	centroids = append(centroids, first)

	dists := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, vec := range vectors {
			d := squaredDistance(vec, centroids[0])
			for _, c := range centroids[1:] {
				if dc := squaredDistance(vec, c); dc < d {
					d = dc
				}
			}
			dists[i] = d
			total += d
		}

		idx := 0
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dists {
				r -= d
				if r <= 0 {
					idx = i
					break
				}
			}
		} else {
			idx = rng.Intn(n)
		}

		next := make([]float64, len(vectors[idx]))
		copy(next, vectors[idx])
		centroids = append(centroids, next)
	}

	return centroids
}

func nearestCentroid(vec []float64, centroids [][]float64) int {
	best, bestDist := 0, math.MaxFloat64
	for j, c := range centroids {
		if d := squaredDistance(vec, c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
