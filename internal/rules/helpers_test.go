package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/track"
)

// rulesMapper is a 20.12 m pitch over 800 px with 10 px wide stumps
// centred at x=400 and 0.5 m wide corridors either side.
func rulesMapper(t *testing.T) *calib.Mapper {
	t.Helper()
	m, err := calib.NewMapper(calib.Calibration{
		Pitch: calib.PitchConfig{
			PitchLengthM:    20.12,
			BowlingCreasePx: geom.Point{X: 400, Y: 100},
			BattingCreasePx: geom.Point{X: 400, Y: 900},
		},
		BattingStumps: calib.StumpPosition{
			OffStumpPx:    geom.Point{X: 395, Y: 870},
			MiddleStumpPx: geom.Point{X: 400, Y: 870},
			LegStumpPx:    geom.Point{X: 405, Y: 870},
			StumpWidthPx:  10,
			StumpHeightPx: 28,
		},
		Wide: calib.WideConfig{OffSideDistanceM: 0.5, LegSideDistanceM: 0.5},
		Wall: calib.WallBoundary{Polygon: geom.Polygon{{X: 0, Y: 950}, {X: 800, Y: 950}, {X: 800, Y: 1080}, {X: 0, Y: 1080}}},
	})
	require.NoError(t, err)
	return m
}

// straightDelivery builds a finalized trajectory descending vy px/frame
// along a fixed x from y=100, with a stable small acceleration estimate.
func straightDelivery(t *testing.T, m *calib.Mapper, x, vy float64, n int) *track.Trajectory {
	t.Helper()
	tr := track.NewTrajectory("d1")
	for i := 0; i < n; i++ {
		tr.Append(track.TrajectoryPoint{
			Frame:      int64(i),
			Pixel:      geom.Point{X: x, Y: 100 + float64(i)*vy},
			VY:         vy,
			AY:         0.2,
			Confidence: 0.9,
		})
	}
	tr.Finalize(m, 30)
	return tr
}
