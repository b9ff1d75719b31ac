package cluster

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/cognitext/taxon/pkg/taxon/lexical"
	"github.com/cognitext/taxon/pkg/taxon/model"
)

// nameSeparator joins the top members into a cluster name.
const nameSeparator = " / "

// nameMembers is how many top-weighted members a cluster is named after.
const nameMembers = 3

// randomFeatureScale bounds the magnitude of the fallback vectors handed to
// categories with no resolvable features, so they stay distinguishable from
// each other without dominating real features.
const randomFeatureScale = 0.01

// member is one input category with its relevance weight.
type member struct {
	name   string
	weight float64
}

// Reduce groups the weighted input categories into at most k thematic
// clusters, keyed by a generated name and listing the member categories.
// Every input category appears in exactly one cluster. rng drives seeding
// and the random fallback vectors; pass a fixed-seed source for reproducible
// runs.
func Reduce(ix *model.Index, p *lexical.Pipeline, weights map[string]float64, k int, rng *rand.Rand) map[string][]string {
	members := make([]member, 0, len(weights))
	for name, w := range weights {
		members = append(members, member{name: name, weight: w})
	}
	// Map iteration order must not leak into cluster assignment.
	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	if len(members) == 0 || k < 1 {
		return map[string][]string{}
	}

	// Fewer inputs than clusters: every category is its own cluster.
	if len(members) <= k {
		clusters := make(map[string][]string, len(members))
		for _, m := range members {
			clusters[m.name] = []string{m.name}
		}
		return clusters
	}

	vectors := featureVectors(ix, p, members, rng)
	assignments := kmeans(vectors, k, rng)

	groups := groupByAssignment(members, assignments)
	groups = splitToTarget(groups, vectors, members, k, rng)

	clusters := make(map[string][]string, len(groups))
	for _, idxs := range groups {
		names := make([]string, len(idxs))
		for i, idx := range idxs {
			names[i] = members[idx].name
		}
		clusters[clusterName(members, idxs)] = names
	}
	return clusters
}

// featureVectors builds one L2-normalized feature vector per input category,
// with one dimension per known category. The contribution of a known
// category is weight × (shared-term count in that category / term document
// frequency) / its document count, summed over shared terms. Inputs sharing
// no terms with anything known get a small random vector instead of zeros,
// so they do not all collapse into one spurious point.
func featureVectors(ix *model.Index, p *lexical.Pipeline, members []member, rng *rand.Rand) [][]float64 {
	dim := len(ix.Categories)
	if dim == 0 {
		dim = 1
	}

	vectors := make([][]float64, len(members))
	for i, m := range members {
		vec := make([]float64, dim)
		if cat, ok := ix.CategoryByStem(p.StemKey(m.name)); ok {
			for id := range cat.Terms {
				df := ix.Terms[id].DF
				if df == 0 {
					continue
				}
				for _, known := range ix.Categories {
					count, shared := known.Terms[id]
					if !shared || known.DocCount == 0 {
						continue
					}
					vec[known.ID] += m.weight * (float64(count) / float64(df)) / float64(known.DocCount)
				}
			}
		}

		if isZero(vec) {
			for d := range vec {
				vec[d] = rng.Float64() * randomFeatureScale
			}
		}
		normalizeL2(vec)
		vectors[i] = vec
	}
	return vectors
}

// groupByAssignment collects member indexes per non-empty cluster.
func groupByAssignment(members []member, assignments []int) [][]int {
	byCluster := make(map[int][]int)
	for i := range members {
		byCluster[assignments[i]] = append(byCluster[assignments[i]], i)
	}
	keys := make([]int, 0, len(byCluster))
	for key := range byCluster {
		keys = append(keys, key)
	}
	sort.Ints(keys)

	groups := make([][]int, 0, len(byCluster))
	for _, key := range keys {
		groups = append(groups, byCluster[key])
	}
	return groups
}

// splitToTarget re-splits the largest multi-member cluster with a nested
// two-means run until k clusters exist or nothing can be split further. The
// pending work is an explicit queue rather than open-ended recursion.
func splitToTarget(groups [][]int, vectors [][]float64, members []member, k int, rng *rand.Rand) [][]int {
	for len(groups) < k {
		largest := -1
		for i, g := range groups {
			if len(g) > 1 && (largest < 0 || len(g) > len(groups[largest])) {
				largest = i
			}
		}
		if largest < 0 {
			break
		}

		g := groups[largest]
		sub := make([][]float64, len(g))
		for i, idx := range g {
			sub[i] = vectors[idx]
		}
		assignments := kmeans(sub, 2, rng)

		var left, right []int
		for i, idx := range g {
			if assignments[i] == 0 {
				left = append(left, idx)
			} else {
				right = append(right, idx)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			// Coincident points refuse to separate; force a halving so the
			// split always makes progress.
			left, right = g[:len(g)/2], g[len(g)/2:]
		}
		groups[largest] = left
		groups = append(groups, right)
	}
	return groups
}

// clusterName joins the top members, ranked by input weight descending, into
// a display name.
func clusterName(members []member, idxs []int) string {
	ranked := make([]int, len(idxs))
	copy(ranked, idxs)
	sort.Slice(ranked, func(i, j int) bool {
		wi, wj := members[ranked[i]].weight, members[ranked[j]].weight
		if wi != wj {
			return wi > wj
		}
		return members[ranked[i]].name < members[ranked[j]].name
	})
	if len(ranked) > nameMembers {
		ranked = ranked[:nameMembers]
	}
	names := make([]string, len(ranked))
	for i, idx := range ranked {
		names[i] = members[idx].name
	}
	return strings.Join(names, nameSeparator)
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func normalizeL2(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
