package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/geom"
)

func padImpactAt(frame int64, x, y float64) events.Impact {
	return events.Impact{
		Frame:          frame,
		Pixel:          geom.Point{X: x, Y: y},
		VelocityChange: 18,
		Surface:        events.SurfacePad,
		Confidence:     1,
	}
}

func TestLBWOutWhenProjectedOntoStumps(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	tr := straightDelivery(t, m, 400, 20, 36)
	tr.MarkBounce(20)
	impacts := []events.Impact{padImpactAt(36, 400, 820)}

	d, err := EvaluateLBW(tr, impacts, m, StandardParameters(), LBWInput{Handedness: RightHanded})
	require.NoError(t, err)

	assert.Equal(t, VerdictOut, d.Verdict)
	assert.True(t, d.Out())
	assert.GreaterOrEqual(t, d.Confidence, StandardParameters().MinOutConfidence)
	require.NotNil(t, d.Geometry.ProjectedPoint)
	assert.InDelta(t, 400, d.Geometry.ProjectedPoint.X, 2)
	// The projection is judged on the batting-crease line.
	assert.InDelta(t, 900, d.Geometry.ProjectedPoint.Y, 1e-9)
	require.NotNil(t, d.Geometry.PitchPoint)
	require.NotNil(t, d.Geometry.ImpactPoint)
	assert.NotEmpty(t, d.Geometry.ProjectedPath)
}

func TestLBWOutHoldsAcrossToleranceAtLeastOne(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	for _, tol := range []float64{1.0, 1.5, 2.0, 3.0} {
		tr := straightDelivery(t, m, 400, 20, 36)
		tr.MarkBounce(20)
		p := StandardParameters()
		p.StumpTolerance = tol

		d, err := EvaluateLBW(tr, []events.Impact{padImpactAt(36, 400, 820)}, m, p, LBWInput{})
		require.NoError(t, err)
		assert.Equal(t, VerdictOut, d.Verdict, "tolerance %.1f", tol)
	}
}

func TestLBWNotOutWhenPitchedOutsideLeg(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	tr := straightDelivery(t, m, 420, 20, 36)
	tr.MarkBounce(20)
	impacts := []events.Impact{padImpactAt(36, 420, 820)}

	d, err := EvaluateLBW(tr, impacts, m, StandardParameters(), LBWInput{Handedness: RightHanded})
	require.NoError(t, err)

	assert.Equal(t, VerdictNotOut, d.Verdict)
	assert.Equal(t, "pitched outside leg stump", d.Reason)
	assert.InDelta(t, outrightRejectConfidence, d.Confidence, 1e-9)
}

func TestLBWHandednessMirrorsLegSide(t *testing.T) {
	t.Parallel()

	// The same line is outside leg for a right-hander but outside off for
	// a left-hander, where the appeal survives to projection.
	m := rulesMapper(t)
	tr := straightDelivery(t, m, 420, 20, 36)
	tr.MarkBounce(20)
	impacts := []events.Impact{padImpactAt(36, 420, 820)}

	d, err := EvaluateLBW(tr, impacts, m, StandardParameters(), LBWInput{Handedness: LeftHanded})
	require.NoError(t, err)

	assert.Equal(t, VerdictNotOut, d.Verdict)
	assert.Equal(t, "projected to miss the stumps", d.Reason)
}

func TestLBWNotOutWhenShotOfferedOutsideOff(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	tr := straightDelivery(t, m, 360, 20, 36)
	tr.MarkBounce(20)
	impacts := []events.Impact{padImpactAt(36, 360, 820)}

	offered, err := EvaluateLBW(tr, impacts, m, StandardParameters(), LBWInput{ShotOffered: true})
	require.NoError(t, err)
	assert.Equal(t, VerdictNotOut, offered.Verdict)
	assert.Equal(t, "struck outside off stump with a shot offered", offered.Reason)
	assert.InDelta(t, outrightRejectConfidence, offered.Confidence, 1e-9)

	// No shot offered: the same impact goes to projection and misses.
	padded, err := EvaluateLBW(tr, impacts, m, StandardParameters(), LBWInput{ShotOffered: false})
	require.NoError(t, err)
	assert.Equal(t, VerdictNotOut, padded.Verdict)
	assert.Equal(t, "projected to miss the stumps", padded.Reason)
}

func TestLBWNotOutWhenBatFirst(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	tr := straightDelivery(t, m, 400, 20, 36)

	impacts := []events.Impact{
		{Frame: 30, Pixel: geom.Point{X: 400, Y: 700}, Surface: events.SurfaceBat, Confidence: 0.9},
		padImpactAt(33, 400, 760),
	}

	d, err := EvaluateLBW(tr, impacts, m, StandardParameters(), LBWInput{})
	require.NoError(t, err)
	assert.Equal(t, VerdictNotOut, d.Verdict)
	assert.Equal(t, "ball hit bat before pad", d.Reason)
}

func TestLBWNotOutWhenNoPadImpact(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	tr := straightDelivery(t, m, 400, 20, 36)

	d, err := EvaluateLBW(tr, nil, m, StandardParameters(), LBWInput{})
	require.NoError(t, err)
	assert.Equal(t, VerdictNotOut, d.Verdict)
	assert.Equal(t, "no pad impact detected", d.Reason)
}

func TestLBWInsufficientPreImpactSamples(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	tr := straightDelivery(t, m, 400, 20, 36)
	impacts := []events.Impact{padImpactAt(3, 400, 160)}

	_, err := EvaluateLBW(tr, impacts, m, StandardParameters(), LBWInput{})
	require.Error(t, err)

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, KindLBW, insufficient.Rule)
	assert.Equal(t, 3, insufficient.Got)
}

func TestLBWIncompleteTrajectoryLowersConfidence(t *testing.T) {
	t.Parallel()

	m := rulesMapper(t)
	full := straightDelivery(t, m, 400, 20, 36)
	full.MarkBounce(20)
	impacts := []events.Impact{padImpactAt(36, 400, 820)}

	clean, err := EvaluateLBW(full, impacts, m, StandardParameters(), LBWInput{})
	require.NoError(t, err)

	// Same geometry, but the trajectory is flagged incomplete.
	degraded := straightDelivery(t, m, 400, 20, 36)
	degraded.MarkBounce(20)
	degraded.Complete = false

	soft, err := EvaluateLBW(degraded, impacts, m, StandardParameters(), LBWInput{})
	require.NoError(t, err)

	assert.Less(t, soft.Confidence, clean.Confidence)
	// Below the out threshold, the projected hit is demoted.
	assert.Equal(t, VerdictNotOut, soft.Verdict)
	assert.Equal(t, "projected to hit, confidence below the out threshold", soft.Reason)
}
