package scoring

import (
	"sort"
)

const (
	technicalWeight  = 0.7
	contextualWeight = 0.3
	finalScoreCap    = 100.0
)

// Categorize normalizes sub-scores across the batch, computes composite and
// final scores, assigns criticality levels and ranks the incidents. The
// sort is stable: descending criticality order, then descending composite,
// ties keeping their original relative order.
func Categorize(incidents []ScoredIncident) []ScoredIncident {
	if len(incidents) == 0 {
		return incidents
	}

	techNorm := minMaxNormalize(incidents, func(i ScoredIncident) float64 { return i.TechnicalScore })
	ctxNorm := minMaxNormalize(incidents, func(i ScoredIncident) float64 { return i.ContextualScore })

	for i := range incidents {
		inc := &incidents[i]
		inc.CompositeScore = technicalWeight*techNorm[i] + contextualWeight*ctxNorm[i]
		inc.FinalScore = inc.TechnicalScore + inc.ContextualScore
		if inc.FinalScore > finalScoreCap {
			inc.FinalScore = finalScoreCap
		}
		inc.Level = LevelFromComposite(inc.CompositeScore)
	}

	sort.SliceStable(incidents, func(a, b int) bool {
		if incidents[a].Level.Order() != incidents[b].Level.Order() {
			return incidents[a].Level.Order() > incidents[b].Level.Order()
		}
		return incidents[a].CompositeScore > incidents[b].CompositeScore
	})
	return incidents
}

// minMaxNormalize maps the extracted values onto [0,1] across the batch.
// When every value is equal the normalized value is pinned at 0.5, which
// avoids the division by zero and keeps single-row batches meaningful.
func minMaxNormalize(incidents []ScoredIncident, get func(ScoredIncident) float64) []float64 {
	min, max := get(incidents[0]), get(incidents[0])
	for _, inc := range incidents[1:] {
		v := get(inc)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(incidents))
	if max <= min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, inc := range incidents {
		out[i] = (get(inc) - min) / (max - min)
	}
	return out
}
