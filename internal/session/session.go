// Package session orchestrates one camera session: it feeds the per-frame
// observation stream through the segmenter and tracker, finalizes each
// delivery off the ingestion path, and answers adjudication requests
// against the finished deliveries.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/config"
	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/monitoring"
	"github.com/gully-data/crease.review/internal/replay"
	"github.com/gully-data/crease.review/internal/rules"
	"github.com/gully-data/crease.review/internal/segment"
	"github.com/gully-data/crease.review/internal/track"
)

// Delivery is one finished delivery with everything derived from it.
// Immutable once published to the replay buffer, except for the decisions
// list which grows under the session lock as appeals are adjudicated.
type Delivery struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	Trajectory *track.Trajectory `json:"trajectory"`
	Impacts    []events.Impact   `json:"impacts"`
	Decisions  []rules.Decision  `json:"decisions"`
}

// Archiver persists finished deliveries and their decisions. Satisfied by
// the sqlite store; nil disables archiving.
type Archiver interface {
	SaveDelivery(ctx context.Context, sessionID string, t *track.Trajectory, impacts []events.Impact) error
	SaveDecision(ctx context.Context, deliveryID string, d rules.Decision) error
}

// Session is the per-camera orchestrator. ProcessFrame runs on a single
// ingestion goroutine; finalization work runs on a background task so the
// frame path never blocks on the archive.
type Session struct {
	ID string

	cfg     *config.SessionConfig
	tracker *track.Tracker
	seg     *segment.Segmenter
	history *replay.Buffer[*Delivery]
	archive Archiver

	group    *errgroup.Group
	groupCtx context.Context

	// onDelivery, if set, fires on the finalization goroutine after each
	// delivery is published.
	onDelivery func(*Delivery)

	mu       sync.Mutex
	mapper   *calib.Mapper
	detector *events.Detector
	player   *events.PlayerBox

	// Ingestion-goroutine state for the live delivery.
	current *track.Trajectory
}

// New creates a session. The calibration may be nil: tracking and
// segmentation run uncalibrated, but adjudication refuses until
// SetCalibration succeeds.
func New(cfg *config.SessionConfig, cal *calib.Calibration, archive Archiver) (*Session, error) {
	if cfg == nil {
		cfg = config.EmptySessionConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(context.Background())
	s := &Session{
		ID:       uuid.NewString(),
		cfg:      cfg,
		tracker:  track.NewTracker(cfg.TrackerConfig()),
		seg:      segment.New(cfg.SegmenterConfig()),
		history:  replay.NewBuffer[*Delivery](cfg.GetReplayCapacity()),
		archive:  archive,
		group:    g,
		groupCtx: ctx,
	}

	if cal != nil {
		if err := s.SetCalibration(*cal); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OnDelivery registers a callback fired after each delivery is finalized
// and published. Called from the finalization goroutine.
func (s *Session) OnDelivery(fn func(*Delivery)) {
	s.onDelivery = fn
}

// SetCalibration installs or replaces the scene calibration. Rejected while
// a delivery is live: zones must not move under a ball in flight.
func (s *Session) SetCalibration(cal calib.Calibration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seg.State() == segment.StateTracking {
		return &calib.CalibrationError{Reason: "cannot recalibrate during a live delivery"}
	}
	m, err := calib.NewMapper(cal)
	if err != nil {
		return err
	}
	s.mapper = m
	s.detector = events.NewDetector(s.cfg.EventsConfig(), m)
	monitoring.Logf("session %s: calibration installed (scale %.2f px/m)", s.ID, m.Scale())
	return nil
}

// ObservePlayer records the latest batsman bounding box from the upstream
// person detector. Used to classify bat and pad contact at finalization.
func (s *Session) ObservePlayer(box *events.PlayerBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = box
}

// ProcessFrame feeds one frame of detector output. Synchronous and
// bounded: heavy per-delivery work happens on the finalization task, never
// here.
func (s *Session) ProcessFrame(obs track.Observation) {
	switch s.seg.Observe(obs) {
	case segment.TransitionStart:
		s.startDelivery()
	case segment.TransitionEnd:
		s.endDelivery()
	default:
		if s.seg.State() == segment.StateTracking && s.current != nil {
			s.step(obs)
		}
	}
}

// startDelivery resets the tracker and replays the segmenter's warmup
// buffer so the confirmation window is part of the estimate.
func (s *Session) startDelivery() {
	s.tracker.Reset()
	s.current = track.NewTrajectory(uuid.NewString())
	for _, obs := range s.seg.Pending() {
		s.step(obs)
	}
	monitoring.Logf("session %s: delivery %s started", s.ID, s.current.DeliveryID)
}

// step advances the tracker one frame and appends the filtered sample.
func (s *Session) step(obs track.Observation) {
	s.tracker.Predict()
	s.tracker.Update(obs)

	st := s.tracker.State()
	vx, vy := s.tracker.FrameVelocity()
	ax, ay := s.tracker.FrameAcceleration()

	conf := 0.0
	if obs.Present() {
		conf = obs.Confidence
	}

	point := track.TrajectoryPoint{
		Frame:      obs.Frame,
		Pixel:      st.Position(),
		VX:         vx,
		VY:         vy,
		AX:         ax,
		AY:         ay,
		Confidence: conf,
	}
	s.mu.Lock()
	if m := s.mapper; m != nil {
		point.World.X = m.PixelsToMeters(st.X)
		point.World.Y = m.PixelsToMeters(st.Y)
	}
	s.mu.Unlock()

	s.current.Append(point)
}

// endDelivery hands the finished trajectory to the finalization task and
// immediately frees the segmenter for the next delivery.
func (s *Session) endDelivery() {
	t := s.current
	s.current = nil
	s.seg.Acknowledge()
	if t == nil || t.Len() == 0 {
		return
	}

	s.mu.Lock()
	m := s.mapper
	det := s.detector
	player := s.player
	s.mu.Unlock()

	s.group.Go(func() error {
		s.finalize(t, m, det, player)
		return nil
	})
}

// finalize runs off the ingestion path: metrics, event detection,
// publication and archiving.
func (s *Session) finalize(t *track.Trajectory, m *calib.Mapper, det *events.Detector, player *events.PlayerBox) {
	trimTrailingGhosts(t)
	t.Finalize(m, s.cfg.GetFPS())

	var impacts []events.Impact
	if det != nil {
		impacts = det.Scan(t, player)
	}

	d := &Delivery{
		ID:         t.DeliveryID,
		SessionID:  s.ID,
		Trajectory: t,
		Impacts:    impacts,
	}
	s.history.Add(d)
	monitoring.Logf("session %s: delivery %s finalized (%d samples, %.1f km/h, %d impacts)",
		s.ID, d.ID, t.Len(), t.SpeedKmh, len(impacts))

	if s.archive != nil {
		if err := s.archive.SaveDelivery(s.groupCtx, s.ID, t, impacts); err != nil {
			monitoring.Logf("session %s: archive delivery %s: %v", s.ID, d.ID, err)
		}
	}

	// Wide and caught-behind need no appeal context, so they run on every
	// delivery. LBW stays appeal-driven: handedness and shot are per-appeal.
	if m != nil {
		p := s.cfg.RuleParameters()
		if dec, err := rules.EvaluateWide(t, m, p); err != nil {
			monitoring.Logf("session %s: wide on delivery %s: %v", s.ID, d.ID, err)
		} else {
			s.recordDecision(d, dec)
		}
		if dec, err := rules.EvaluateCaughtBehind(t, impacts, p); err != nil {
			monitoring.Logf("session %s: caught-behind on delivery %s: %v", s.ID, d.ID, err)
		} else {
			s.recordDecision(d, dec)
		}
	}

	if s.onDelivery != nil {
		s.onDelivery(d)
	}
}

// trimTrailingGhosts drops the run of zero-confidence samples at the tail:
// the idle frames that ended the delivery carry no detections, only the
// filter coasting.
func trimTrailingGhosts(t *track.Trajectory) {
	n := len(t.Points)
	for n > 0 && t.Points[n-1].Confidence == 0 {
		n--
	}
	t.Points = t.Points[:n]
}

// Abort discards any live delivery and returns the session to idle.
func (s *Session) Abort() {
	s.seg.Abort()
	s.current = nil
	s.tracker.Reset()
}

// Close waits for outstanding finalization work.
func (s *Session) Close() error {
	return s.group.Wait()
}

// State returns the segmenter phase: idle, tracking or complete.
func (s *Session) State() segment.State {
	return s.seg.State()
}

// LastDelivery returns the most recently finalized delivery.
func (s *Session) LastDelivery() (*Delivery, bool) {
	return s.history.Last()
}

// Deliveries returns the replay history, oldest first.
func (s *Session) Deliveries() []*Delivery {
	return s.history.All()
}

// delivery looks a finished delivery up by id.
func (s *Session) delivery(id string) (*Delivery, error) {
	d, ok := s.history.Find(func(d *Delivery) bool { return d.ID == id })
	if !ok {
		return nil, fmt.Errorf("unknown delivery %q", id)
	}
	return d, nil
}

// EvaluateLBW adjudicates an LBW appeal against a finished delivery and
// records the decision.
func (s *Session) EvaluateLBW(deliveryID string, in rules.LBWInput) (rules.Decision, error) {
	d, err := s.delivery(deliveryID)
	if err != nil {
		return rules.Decision{}, err
	}
	s.mu.Lock()
	m := s.mapper
	s.mu.Unlock()
	if m == nil {
		return rules.Decision{}, &calib.CalibrationError{Reason: "session is not calibrated"}
	}

	decision, err := rules.EvaluateLBW(d.Trajectory, d.Impacts, m, s.cfg.RuleParameters(), in)
	if err != nil {
		return rules.Decision{}, err
	}
	s.recordDecision(d, decision)
	return decision, nil
}

// EvaluateWide adjudicates a wide against a finished delivery and records
// the decision.
func (s *Session) EvaluateWide(deliveryID string) (rules.Decision, error) {
	d, err := s.delivery(deliveryID)
	if err != nil {
		return rules.Decision{}, err
	}
	s.mu.Lock()
	m := s.mapper
	s.mu.Unlock()
	if m == nil {
		return rules.Decision{}, &calib.CalibrationError{Reason: "session is not calibrated"}
	}

	decision, err := rules.EvaluateWide(d.Trajectory, m, s.cfg.RuleParameters())
	if err != nil {
		return rules.Decision{}, err
	}
	s.recordDecision(d, decision)
	return decision, nil
}

// EvaluateCaughtBehind adjudicates a caught-behind appeal against a
// finished delivery and records the decision.
func (s *Session) EvaluateCaughtBehind(deliveryID string) (rules.Decision, error) {
	d, err := s.delivery(deliveryID)
	if err != nil {
		return rules.Decision{}, err
	}

	decision, err := rules.EvaluateCaughtBehind(d.Trajectory, d.Impacts, s.cfg.RuleParameters())
	if err != nil {
		return rules.Decision{}, err
	}
	s.recordDecision(d, decision)
	return decision, nil
}

func (s *Session) recordDecision(d *Delivery, decision rules.Decision) {
	s.mu.Lock()
	d.Decisions = append(d.Decisions, decision)
	s.mu.Unlock()

	monitoring.Logf("session %s: delivery %s %s: %s (%s, conf %.2f)",
		s.ID, d.ID, decision.Kind, decision.Verdict, decision.Reason, decision.Confidence)

	if s.archive != nil {
		if err := s.archive.SaveDecision(context.Background(), d.ID, decision); err != nil {
			monitoring.Logf("session %s: archive decision for %s: %v", s.ID, d.ID, err)
		}
	}
}
