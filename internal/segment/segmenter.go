// Package segment contains the delivery segmenter: the state machine that
// decides when a delivery begins and ends from the raw per-frame detector
// output. The segmenter is the only component allowed to start or finish a
// delivery; the tracker and trajectory lifecycles hang off its transitions.
package segment

import (
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/monitoring"
	"github.com/gully-data/crease.review/internal/track"
)

// State is the segmenter phase.
type State string

const (
	// StateIdle means no delivery in progress, watching for sustained motion.
	StateIdle State = "idle"
	// StateTracking means a delivery is live.
	StateTracking State = "tracking"
	// StateComplete means a delivery just ended, awaiting acknowledgement
	// before the next one can start.
	StateComplete State = "complete"
)

// Transition is what one observed frame did to the segmenter.
type Transition int

const (
	// TransitionNone means the state did not change.
	TransitionNone Transition = iota
	// TransitionStart means a delivery just began on this frame.
	TransitionStart
	// TransitionEnd means the live delivery just ended on this frame.
	TransitionEnd
)

// Config holds the segmentation thresholds.
type Config struct {
	// MinFrames is how many consecutive moving-ball frames it takes to
	// promote candidate motion into a delivery. Filters out practice taps
	// and detector flicker.
	MinFrames int
	// IdleFrames is how many consecutive absent-or-stationary frames end a
	// live delivery. Gaps shorter than this (occlusion) do not end it.
	IdleFrames int
	// MinMotionPx is the per-frame displacement below which a detection
	// counts as stationary.
	MinMotionPx float64
}

// DefaultConfig returns the production segmentation thresholds.
func DefaultConfig() Config {
	return Config{
		MinFrames:   10,
		IdleFrames:  15,
		MinMotionPx: 2.0,
	}
}

// Segmenter turns the per-frame observation stream into delivery
// boundaries. Not safe for concurrent use; it lives on the single
// ingestion goroutine.
type Segmenter struct {
	cfg   Config
	state State

	motionFrames int
	idleCount    int

	lastSeen    geom.Point
	hasLastSeen bool

	// Candidate observations buffered while in idle, replayed into the
	// tracker when the delivery is confirmed so the warmup frames are not
	// lost.
	pending []track.Observation
}

// New creates a segmenter in the idle state. Non-positive thresholds fall
// back to defaults.
func New(cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.MinFrames <= 0 {
		cfg.MinFrames = def.MinFrames
	}
	if cfg.IdleFrames <= 0 {
		cfg.IdleFrames = def.IdleFrames
	}
	if cfg.MinMotionPx <= 0 {
		cfg.MinMotionPx = def.MinMotionPx
	}
	return &Segmenter{cfg: cfg, state: StateIdle}
}

// State returns the current phase.
func (s *Segmenter) State() State { return s.state }

// Observe feeds one frame and returns the transition it caused.
func (s *Segmenter) Observe(obs track.Observation) Transition {
	switch s.state {
	case StateIdle:
		return s.observeIdle(obs)
	case StateTracking:
		return s.observeTracking(obs)
	default:
		// Complete: frames are ignored until Acknowledge.
		return TransitionNone
	}
}

func (s *Segmenter) observeIdle(obs track.Observation) Transition {
	if !s.moving(obs) {
		s.motionFrames = 0
		s.pending = s.pending[:0]
		return TransitionNone
	}

	s.motionFrames++
	s.pending = append(s.pending, obs)
	if s.motionFrames < s.cfg.MinFrames {
		return TransitionNone
	}

	s.state = StateTracking
	s.idleCount = 0
	monitoring.Logf("segmenter: delivery started at frame %d after %d motion frames", obs.Frame, s.motionFrames)
	return TransitionStart
}

func (s *Segmenter) observeTracking(obs track.Observation) Transition {
	if s.moving(obs) {
		s.idleCount = 0
		return TransitionNone
	}

	s.idleCount++
	if s.idleCount < s.cfg.IdleFrames {
		return TransitionNone
	}

	s.state = StateComplete
	s.motionFrames = 0
	s.pending = nil
	monitoring.Logf("segmenter: delivery ended at frame %d after %d idle frames", obs.Frame, s.idleCount)
	return TransitionEnd
}

// moving reports whether the observation is a present detection displaced
// at least MinMotionPx from the previous present detection. The first
// present detection after a blind spell counts as moving so a delivery's
// opening frame is never discarded.
func (s *Segmenter) moving(obs track.Observation) bool {
	if !obs.Present() {
		s.hasLastSeen = false
		return false
	}
	p := obs.Pixel()
	defer func() {
		s.lastSeen = p
		s.hasLastSeen = true
	}()
	if !s.hasLastSeen {
		return true
	}
	return geom.Dist(p, s.lastSeen) >= s.cfg.MinMotionPx
}

// Pending returns the warmup observations buffered before the delivery was
// confirmed. Valid immediately after a TransitionStart; the tracker replays
// these so the delivery's first MinFrames frames are part of the estimate.
func (s *Segmenter) Pending() []track.Observation {
	return s.pending
}

// Acknowledge moves complete back to idle, allowing the next delivery.
// The session calls it once the finished delivery has been handed off.
func (s *Segmenter) Acknowledge() {
	if s.state == StateComplete {
		s.reset()
	}
}

// Abort discards any in-progress or completed delivery and returns to idle.
func (s *Segmenter) Abort() {
	if s.state != StateIdle {
		monitoring.Logf("segmenter: aborted from %s", s.state)
	}
	s.reset()
}

func (s *Segmenter) reset() {
	s.state = StateIdle
	s.motionFrames = 0
	s.idleCount = 0
	s.pending = nil
	s.hasLastSeen = false
}
