package gallery

import (
	"math"
	"time"
)

// Ranking parameters. Both are exact protocol constants: changing either
// breaks hot-score comparability with artifacts ranked by existing
// deployments.
const (
	// rankEpoch is 2024-01-01T00:00:00Z in unix seconds.
	rankEpoch = 1704067200
	// decayDivisor is the number of seconds of age worth one order of
	// magnitude of score.
	decayDivisor = 45000
)

// HotScore computes the time-decayed ranking score for a meme. Score
// differences dominate over short time spans; as absolute scores tie up,
// newer posts win.
func HotScore(score int64, createdAt time.Time) float64 {
	order := math.Log10(math.Max(math.Abs(float64(score)), 1))

	var sign float64
	switch {
	case score > 0:
		sign = 1
	case score < 0:
		sign = -1
	}

	ageSeconds := float64(createdAt.Unix() - rankEpoch)
	return sign*order + ageSeconds/decayDivisor
}
