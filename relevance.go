package ragdoc

import (
	"math"
	"sort"
)

// maxDistance is the upper bound of cosine distance.
const maxDistance = 2.0

// RankingPolicy turns backend distances into relevance scores and ranks
// search candidates.
//
// Relevance follows a logistic curve over distance, rescaled so distance
// 0 maps to 1 and distance 2 maps to 0. The curve is steepest around
// Midpoint, which spreads typical mid-range distances apart. Candidates
// above the minimum relevance get a size boost of up to 1+MaxBoost for
// chunks carrying BoostSaturationTokens or more tokens.
type RankingPolicy struct {
	Steepness             float64 `yaml:"steepness"`
	Midpoint              float64 `yaml:"midpoint"`
	MaxBoost              float64 `yaml:"max_boost"`
	BoostSaturationTokens int     `yaml:"boost_saturation_tokens"`
	OverFetch             int     `yaml:"over_fetch"`
}

// DefaultRankingPolicy returns the standard ranking constants.
func DefaultRankingPolicy() RankingPolicy {
	return RankingPolicy{
		Steepness:             6,
		Midpoint:              0.75,
		MaxBoost:              0.2,
		BoostSaturationTokens: 400,
		OverFetch:             2,
	}
}

// Relevance maps a distance to [0,1]. It is monotonically decreasing.
func (p RankingPolicy) Relevance(distance float64) float64 {
	d := math.Min(math.Max(distance, 0), maxDistance)
	top := p.sigmoid(0)
	bottom := p.sigmoid(maxDistance)
	if top == bottom {
		return 1 - d/maxDistance
	}
	return (p.sigmoid(d) - bottom) / (top - bottom)
}

func (p RankingPolicy) sigmoid(d float64) float64 {
	return 1 / (1 + math.Exp(p.Steepness*(d-p.Midpoint)))
}

// Boost returns the size multiplier for a chunk with the given estimated
// token count.
func (p RankingPolicy) Boost(tokens int) float64 {
	if p.BoostSaturationTokens <= 0 || tokens <= 0 {
		return 1
	}
	fill := math.Min(1, float64(tokens)/float64(p.BoostSaturationTokens))
	return 1 + p.MaxBoost*fill
}

// FetchSize returns how many neighbors to request for a result limit.
func (p RankingPolicy) FetchSize(limit int) int {
	if p.OverFetch < 1 {
		return limit
	}
	return limit * p.OverFetch
}

// Rank scores neighbors, drops those under minRelevance, applies the size
// boost, sorts by descending relevance and truncates to limit. A
// non-positive limit keeps every surviving result.
func (p RankingPolicy) Rank(neighbors []Neighbor, minRelevance float64, limit int) []SearchResult {
	results := make([]SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		rel := p.Relevance(n.Distance)
		if rel < minRelevance {
			continue
		}
		rel = math.Min(1, rel*p.Boost(n.Chunk.Metadata.TokenCount))
		results = append(results, SearchResult{Chunk: n.Chunk, Relevance: rel})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
