package rules

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/gully-data/crease.review/internal/track"
)

// Factor applied when the trajectory was flagged incomplete by detection
// gaps. The verdict still stands, softer.
const incompleteTrajectoryFactor = 0.7

// Pre-impact sample count at which the sample factor saturates.
const fullSampleCount = 15

// Projection distance, in pixels, at which the distance factor bottoms out.
const projectionDistanceNormPx = 600

// projectionConfidence grades how much to trust a projected path:
//
//   - more pre-impact samples mean a better-converged filter;
//   - a stable acceleration estimate (low variance across the pre-impact
//     window) means the constant-acceleration extrapolation is sound;
//   - a short projection distance leaves less room for the model to drift.
func projectionConfidence(pre []track.TrajectoryPoint, projectionDistPx float64) float64 {
	if len(pre) == 0 {
		return 0
	}

	sampleFactor := math.Min(1, float64(len(pre))/fullSampleCount)

	ay := make([]float64, len(pre))
	for i, p := range pre {
		ay[i] = p.AY
	}
	variance := stat.Variance(ay, nil)
	stability := 1 / (1 + variance)

	distFactor := 1 - projectionDistPx/projectionDistanceNormPx
	distFactor = math.Max(0.3, math.Min(1, distFactor))

	return sampleFactor * stability * distFactor
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
