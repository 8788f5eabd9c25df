package usecase

// minMaxNormalize scales a score list into [0,1] over that list only: the
// maximum maps to 1 and the minimum to 0. A degenerate list (one element, or
// all scores equal) maps every value to 1 instead of dividing by zero.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	scoreRange := maxScore - minScore
	if scoreRange <= 0 {
		for i := range out {
			out[i] = 1
		}
		return out
	}

	for i, s := range scores {
		out[i] = (s - minScore) / scoreRange
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
