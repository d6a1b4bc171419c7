package vector

import "sort"

// Scored is a candidate chunk with its similarity score against the query.
type Scored struct {
	ChunkKey string
	Score    float64
	Vec      []float32
}

// TopK scores every candidate against the query and returns the k best,
// descending by score. Ties keep the candidates' original order, so for
// entries coming out of the index the insertion order decides. k larger than
// the candidate set returns everything.
func TopK(query []float32, candidates []Entry, k int) []Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{
			ChunkKey: c.ChunkKey,
			Score:    InnerProduct(query, c.Vec),
			Vec:      c.Vec,
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// MMR greedily re-ranks a shortlist for relevance and diversity. Relevance is
// the precomputed Scored.Score from TopK. Each round picks the candidate
// maximizing lambda*relevance - (1-lambda)*maxSimToSelected; on the first
// round no candidate has a selected neighbor, so maxSim is 0 and the pick is
// the most relevant. Ties keep the earliest shortlist position. Selection
// stops after n picks or when the shortlist is exhausted.
func MMR(shortlist []Scored, n int, lambda float64) []Scored {
	if n <= 0 || len(shortlist) == 0 {
		return nil
	}
	if n > len(shortlist) {
		n = len(shortlist)
	}

	selected := make([]Scored, 0, n)
	used := make([]bool, len(shortlist))

	for len(selected) < n {
		best := -1
		bestScore := 0.0
		for i, cand := range shortlist {
			if used[i] {
				continue
			}
			maxSim := 0.0
			for _, s := range selected {
				if sim := InnerProduct(cand.Vec, s.Vec); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*cand.Score - (1-lambda)*maxSim
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			break
		}
		used[best] = true
		selected = append(selected, shortlist[best])
	}
	return selected
}
