package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictOnlyIsDeterministicAndFinite(t *testing.T) {
	t.Parallel()

	a := NewTracker(DefaultTrackerConfig())
	b := NewTracker(DefaultTrackerConfig())

	// No observations at all: prediction still advances, never produces
	// NaN or Inf, and two identically configured trackers stay in lockstep.
	for i := 0; i < 500; i++ {
		a.Predict()
		b.Predict()

		sa, sb := a.State(), b.State()
		require.False(t, math.IsNaN(sa.X) || math.IsInf(sa.X, 0))
		require.False(t, math.IsNaN(sa.Uncertainty) || math.IsInf(sa.Uncertainty, 0))
		assert.Equal(t, sa, sb)

		pos := a.PredictedPosition()
		require.False(t, math.IsNaN(pos.X) || math.IsNaN(pos.Y))
	}
}

func TestCovarianceDiagonalIsCapped(t *testing.T) {
	t.Parallel()

	cfg := DefaultTrackerConfig()
	cfg.MaxCovarianceDiag = 100
	tr := NewTracker(cfg)

	for i := 0; i < 10000; i++ {
		tr.Predict()
	}
	assert.LessOrEqual(t, tr.State().Uncertainty, 2*cfg.MaxCovarianceDiag)
}

func TestTrackerConvergesOnConstantVelocityTarget(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultTrackerConfig())

	// Target moves 10 px/frame in x, 5 px/frame in y.
	for frame := int64(0); frame < 60; frame++ {
		tr.Predict()
		tr.Update(Observation{
			Frame:      frame,
			X:          float64(frame) * 10,
			Y:          float64(frame) * 5,
			Confidence: 1.0,
			Visibility: VisibilityVisible,
		})
	}

	s := tr.State()
	assert.InDelta(t, 590, s.X, 5)
	assert.InDelta(t, 295, s.Y, 5)

	vx, vy := tr.FrameVelocity()
	assert.InDelta(t, 10, vx, 1)
	assert.InDelta(t, 5, vy, 1)
}

func TestOcclusionGapIsBridgedByPrediction(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultTrackerConfig())

	feed := func(frame int64) {
		tr.Update(Observation{
			Frame:      frame,
			X:          float64(frame) * 8,
			Y:          400,
			Confidence: 0.9,
			Visibility: VisibilityVisible,
		})
	}

	for frame := int64(0); frame < 40; frame++ {
		tr.Predict()
		feed(frame)
	}
	preGap := tr.State()

	// Five absent frames: the ball passes behind the batsman. The state
	// keeps advancing at the established velocity.
	for frame := int64(40); frame < 45; frame++ {
		tr.Predict()
		tr.Update(AbsentObservation(frame, float64(frame)*33.3))
	}
	bridged := tr.State()

	assert.Greater(t, bridged.X, preGap.X)
	assert.InDelta(t, float64(44)*8, bridged.X, 15)
	// Uncertainty grows while coasting.
	assert.Greater(t, bridged.Uncertainty, preGap.Uncertainty)

	// Reacquisition snaps back onto the target.
	for frame := int64(45); frame < 55; frame++ {
		tr.Predict()
		feed(frame)
	}
	assert.InDelta(t, float64(54)*8, tr.State().X, 5)
}

func TestLowConfidenceObservationCorrectsWeakly(t *testing.T) {
	t.Parallel()

	run := func(conf float64) float64 {
		tr := NewTracker(DefaultTrackerConfig())
		// Establish a stationary belief at the origin.
		for frame := int64(0); frame < 30; frame++ {
			tr.Predict()
			tr.Update(Observation{Frame: frame, X: 0, Y: 0, Confidence: 1.0, Visibility: VisibilityVisible})
		}
		// One outlier at x=100 with the given confidence.
		tr.Predict()
		tr.Update(Observation{Frame: 30, X: 100, Y: 0, Confidence: conf, Visibility: VisibilityVisible})
		return tr.State().X
	}

	// A low-confidence outlier moves the estimate less than a
	// high-confidence one.
	assert.Less(t, run(0.1), run(1.0))
	assert.Greater(t, run(0.1), 0.0)
}

func TestAbsentObservationIsNoOp(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultTrackerConfig())
	tr.Predict()
	before := tr.State()
	tr.Update(AbsentObservation(1, 33.3))
	assert.Equal(t, before, tr.State())
}

func TestResetClearsStateBetweenDeliveries(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultTrackerConfig())
	for frame := int64(0); frame < 20; frame++ {
		tr.Predict()
		tr.Update(Observation{Frame: frame, X: 500, Y: 500, Confidence: 1.0, Visibility: VisibilityVisible})
	}
	require.NotZero(t, tr.State().X)

	tr.Reset()
	s := tr.State()
	assert.Zero(t, s.X)
	assert.Zero(t, s.VX)
	assert.Zero(t, s.AX)
}

func TestConstantAccelerationIsTracked(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultTrackerConfig())

	// Vertical position follows y = ½·a·t² in frame units, mimicking a
	// ball under gravity.
	const accel = 0.6 // px per frame squared
	for frame := int64(0); frame < 90; frame++ {
		f := float64(frame)
		tr.Predict()
		tr.Update(Observation{
			Frame:      frame,
			X:          400,
			Y:          0.5 * accel * f * f,
			Confidence: 1.0,
			Visibility: VisibilityVisible,
		})
	}

	_, ay := tr.FrameAcceleration()
	assert.InDelta(t, accel, ay, 0.15)
}
