package track

import (
	"math"

	"github.com/gully-data/crease.review/internal/geom"
)

// State vector layout: [x, y, vx, vy, ax, ay]. Velocities are pixels per
// second, accelerations pixels per second squared; dt = 1/fps.
const stateDim = 6

// Confidence floor for measurement-noise scaling. Detections below this
// confidence still correct the state, just very weakly.
const minUpdateConfidence = 0.05

// TrackerConfig holds the Kalman filter tuning parameters.
type TrackerConfig struct {
	FPS               float64 // video frame rate
	MeasurementNoise  float64 // base measurement noise σ² (px²)
	ProcessNoise      float64 // discrete white-noise variance for the motion model
	MaxCovarianceDiag float64 // cap on covariance diagonal growth during long occlusion
}

// DefaultTrackerConfig returns the tuning used in production sessions.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		FPS:               30,
		MeasurementNoise:  5,
		ProcessNoise:      1,
		MaxCovarianceDiag: 1e6,
	}
}

// MotionState is an immutable snapshot of the tracker's belief: position,
// velocity and acceleration in both axes plus a scalar uncertainty (the
// trace of the position covariance block).
type MotionState struct {
	X, Y        float64
	VX, VY      float64
	AX, AY      float64
	Uncertainty float64
}

// Position returns the state position as a point.
func (s MotionState) Position() geom.Point {
	return geom.Point{X: s.X, Y: s.Y}
}

// Speed returns the velocity magnitude in pixels per second.
func (s MotionState) Speed() float64 {
	return math.Sqrt(s.VX*s.VX + s.VY*s.VY)
}

// Tracker maintains the six-dimensional motion state for one in-flight
// delivery under a constant-acceleration model. Exactly one tracker is
// active per camera session; it is reset by the delivery segmenter at the
// start of each delivery and never shared across goroutines.
//
// The constant-acceleration model is deliberate: gravity and spin impart a
// roughly constant acceleration over the short pre- and post-bounce windows,
// which a constant-velocity model cannot capture and which the LBW
// projection depends on.
type Tracker struct {
	cfg TrackerConfig
	dt  float64

	x [stateDim]float64           // state vector
	p [stateDim][stateDim]float64 // covariance
	f [stateDim][stateDim]float64 // state transition
	q [stateDim][stateDim]float64 // process noise

	// initialized is set by the first present observation after a Reset;
	// until then the filter has no position belief to correct.
	initialized bool
}

// NewTracker creates a tracker for the given configuration. A non-positive
// FPS falls back to the default frame rate.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultTrackerConfig().FPS
	}
	if cfg.MeasurementNoise <= 0 {
		cfg.MeasurementNoise = DefaultTrackerConfig().MeasurementNoise
	}
	if cfg.ProcessNoise <= 0 {
		cfg.ProcessNoise = DefaultTrackerConfig().ProcessNoise
	}
	if cfg.MaxCovarianceDiag <= 0 {
		cfg.MaxCovarianceDiag = DefaultTrackerConfig().MaxCovarianceDiag
	}

	t := &Tracker{cfg: cfg, dt: 1 / cfg.FPS}
	t.buildTransition()
	t.buildProcessNoise()
	t.Reset()
	return t
}

// buildTransition fills the constant-acceleration transition matrix:
//
//	x  = x + vx·dt + ½·ax·dt²
//	y  = y + vy·dt + ½·ay·dt²
//	vx = vx + ax·dt
//	vy = vy + ay·dt
//	ax, ay constant
func (t *Tracker) buildTransition() {
	dt := t.dt
	half := 0.5 * dt * dt

	t.f = [stateDim][stateDim]float64{}
	for i := 0; i < stateDim; i++ {
		t.f[i][i] = 1
	}
	t.f[0][2] = dt
	t.f[0][4] = half
	t.f[1][3] = dt
	t.f[1][5] = half
	t.f[2][4] = dt
	t.f[3][5] = dt
}

// buildProcessNoise fills Q with the discrete white-noise model for a
// position/velocity/acceleration chain, per axis. State index mapping:
// x-axis {0, 2, 4}, y-axis {1, 3, 5}.
func (t *Tracker) buildProcessNoise() {
	dt := t.dt
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	v := t.cfg.ProcessNoise

	block := [3][3]float64{
		{dt4 / 4, dt3 / 2, dt2 / 2},
		{dt3 / 2, dt2, dt},
		{dt2 / 2, dt, 1},
	}

	t.q = [stateDim][stateDim]float64{}
	for _, axis := range [][3]int{{0, 2, 4}, {1, 3, 5}} {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				t.q[axis[i]][axis[j]] = v * block[i][j]
			}
		}
	}
}

// Reset clears the state for a new delivery: zero state, high position and
// velocity uncertainty, low acceleration uncertainty. Called exactly once
// per delivery by the segmenter transition into tracking.
func (t *Tracker) Reset() {
	t.x = [stateDim]float64{}
	t.p = [stateDim][stateDim]float64{}
	initial := [stateDim]float64{10, 10, 10, 10, 1, 1}
	for i := 0; i < stateDim; i++ {
		t.p[i][i] = initial[i]
	}
	t.initialized = false
}

// Predict advances the state one frame through the motion model and grows
// the uncertainty: x' = F·x, P' = F·P·Fᵀ + Q. Called every frame including
// frames with no observation; this coasting is what carries the estimate
// across occlusion. Completes in bounded time independent of trajectory
// length.
func (t *Tracker) Predict() {
	// x' = F·x
	var nx [stateDim]float64
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			nx[i] += t.f[i][j] * t.x[j]
		}
	}
	t.x = nx

	// P' = F·P·Fᵀ + Q
	var fp [stateDim][stateDim]float64
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			var sum float64
			for k := 0; k < stateDim; k++ {
				sum += t.f[i][k] * t.p[k][j]
			}
			fp[i][j] = sum
		}
	}
	var np [stateDim][stateDim]float64
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			var sum float64
			for k := 0; k < stateDim; k++ {
				sum += fp[i][k] * t.f[j][k]
			}
			np[i][j] = sum + t.q[i][j]
		}
	}
	t.p = np

	// Cap diagonal growth so long occlusion cannot balloon the covariance.
	for i := 0; i < stateDim; i++ {
		if t.p[i][i] > t.cfg.MaxCovarianceDiag {
			t.p[i][i] = t.cfg.MaxCovarianceDiag
		}
	}

	if !t.isFinite() {
		t.Reset()
	}
}

// Update corrects the predicted state toward an observed position. The
// measurement noise is inflated by the inverse of the detector confidence,
// so a low-confidence detection corrects weakly and a full-confidence one
// at the base noise level. Absent observations are a no-op: the predicted
// state stands alone for that frame.
func (t *Tracker) Update(obs Observation) {
	if !obs.Present() {
		return
	}

	// The first detection of a delivery seeds the position outright; there
	// is no prior belief worth blending it with.
	if !t.initialized {
		t.x = [stateDim]float64{obs.X, obs.Y}
		t.initialized = true
		return
	}

	conf := obs.Confidence
	if conf < minUpdateConfidence {
		conf = minUpdateConfidence
	}
	r := t.cfg.MeasurementNoise / conf

	// Innovation y = z − H·x, with H selecting position.
	yX := obs.X - t.x[0]
	yY := obs.Y - t.x[1]

	// Innovation covariance S = H·P·Hᵀ + R (2×2).
	s00 := t.p[0][0] + r
	s01 := t.p[0][1]
	s10 := t.p[1][0]
	s11 := t.p[1][1] + r

	det := s00*s11 - s01*s10
	if det <= 0 {
		return // singular innovation covariance, skip the correction
	}
	invS00 := s11 / det
	invS01 := -s01 / det
	invS10 := -s10 / det
	invS11 := s00 / det

	// Kalman gain K = P·Hᵀ·S⁻¹ (6×2).
	var k [stateDim][2]float64
	for i := 0; i < stateDim; i++ {
		k[i][0] = t.p[i][0]*invS00 + t.p[i][1]*invS10
		k[i][1] = t.p[i][0]*invS01 + t.p[i][1]*invS11
	}

	// State correction x' = x + K·y.
	for i := 0; i < stateDim; i++ {
		t.x[i] += k[i][0]*yX + k[i][1]*yY
	}

	// Covariance update P' = (I − K·H)·P. K·H only has columns 0 and 1
	// populated, so P'[i][j] = P[i][j] − K[i][0]·P[0][j] − K[i][1]·P[1][j].
	var np [stateDim][stateDim]float64
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			np[i][j] = t.p[i][j] - k[i][0]*t.p[0][j] - k[i][1]*t.p[1][j]
		}
	}
	t.p = np

	if !t.isFinite() {
		t.Reset()
	}
}

// State returns a snapshot of the current belief.
func (t *Tracker) State() MotionState {
	return MotionState{
		X:           t.x[0],
		Y:           t.x[1],
		VX:          t.x[2],
		VY:          t.x[3],
		AX:          t.x[4],
		AY:          t.x[5],
		Uncertainty: t.p[0][0] + t.p[1][1],
	}
}

// PredictedPosition returns the best-estimate position for the next frame
// by pushing the current state one step through the motion model without
// touching the covariance. Used to draw trajectory continuity and to seed
// the detector's next search window.
func (t *Tracker) PredictedPosition() geom.Point {
	dt := t.dt
	return geom.Point{
		X: t.x[0] + t.x[2]*dt + 0.5*t.x[4]*dt*dt,
		Y: t.x[1] + t.x[3]*dt + 0.5*t.x[5]*dt*dt,
	}
}

// FrameVelocity returns the filtered velocity in pixels per frame, the
// unit the event detector and rule engines work in.
func (t *Tracker) FrameVelocity() (vx, vy float64) {
	return t.x[2] * t.dt, t.x[3] * t.dt
}

// FrameAcceleration returns the filtered acceleration in pixels per frame
// squared.
func (t *Tracker) FrameAcceleration() (ax, ay float64) {
	return t.x[4] * t.dt * t.dt, t.x[5] * t.dt * t.dt
}

// isFinite reports whether every state element and covariance diagonal is
// finite. Guard against numerical instability from degenerate inputs.
func (t *Tracker) isFinite() bool {
	for i := 0; i < stateDim; i++ {
		if math.IsNaN(t.x[i]) || math.IsInf(t.x[i], 0) {
			return false
		}
		if math.IsNaN(t.p[i][i]) || math.IsInf(t.p[i][i], 0) {
			return false
		}
	}
	return true
}
