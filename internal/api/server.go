// Package api exposes the review surface over HTTP: delivery history from
// the replay buffer, and appeal endpoints that run the rule engines on
// demand.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/monitoring"
	"github.com/gully-data/crease.review/internal/rules"
	"github.com/gully-data/crease.review/internal/session"
	"github.com/gully-data/crease.review/internal/units"
)

type Server struct {
	sess  *session.Session
	units string
}

// NewServer wraps a session for HTTP review. Speeds are reported in the
// given units ("kmph", "mph" or "mps").
func NewServer(sess *session.Session, speedUnits string) *Server {
	if speedUnits == "" {
		speedUnits = units.KMPH
	}
	return &Server{sess: sess, units: speedUnits}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/deliveries", s.listDeliveries)
	mux.HandleFunc("/api/deliveries/latest", s.showLatest)
	mux.HandleFunc("/api/appeals/lbw", s.appealLBW)
	mux.HandleFunc("/api/appeals/wide", s.appealWide)
	mux.HandleFunc("/api/appeals/caught-behind", s.appealCaughtBehind)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but note it.
		monitoring.Logf("api: failed to write response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.sess.ID,
		"state":      s.sess.State(),
		"deliveries": len(s.sess.Deliveries()),
	})
}

// DeliverySummaryAPI is the list-view shape of one delivery.
type DeliverySummaryAPI struct {
	ID          string  `json:"id"`
	Samples     int     `json:"samples"`
	Speed       float64 `json:"speed"`
	SpeedUnits  string  `json:"speed_units"`
	DeviationPx float64 `json:"deviation_px"`
	Complete    bool    `json:"complete"`
	Impacts     int     `json:"impacts"`
	Decisions   int     `json:"decisions"`
}

func (s *Server) listDeliveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	all := s.sess.Deliveries()
	out := make([]DeliverySummaryAPI, 0, len(all))
	for _, d := range all {
		kmh := d.Trajectory.SpeedKmh
		out = append(out, DeliverySummaryAPI{
			ID:          d.ID,
			Samples:     d.Trajectory.Len(),
			Speed:       units.ConvertSpeed(units.KmhToMetersPerSecond(kmh), s.units),
			SpeedUnits:  s.units,
			DeviationPx: d.Trajectory.DeviationPx,
			Complete:    d.Trajectory.Complete,
			Impacts:     len(d.Impacts),
			Decisions:   len(d.Decisions),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	d, ok := s.sess.LastDelivery()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "No deliveries yet")
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

// AppealRequest is the POST body shared by the appeal endpoints.
type AppealRequest struct {
	DeliveryID  string `json:"delivery_id"`
	Handedness  string `json:"handedness,omitempty"`
	ShotOffered bool   `json:"shot_offered,omitempty"`
}

func (s *Server) decodeAppeal(w http.ResponseWriter, r *http.Request) (AppealRequest, bool) {
	var req AppealRequest
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return req, false
	}
	if req.DeliveryID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "delivery_id is required")
		return req, false
	}
	return req, true
}

func (s *Server) writeDecision(w http.ResponseWriter, d rules.Decision, err error) {
	if err == nil {
		s.writeJSON(w, http.StatusOK, d)
		return
	}

	var calErr *calib.CalibrationError
	var insufficient *rules.InsufficientDataError
	switch {
	case errors.As(err, &calErr):
		s.writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficient):
		s.writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.writeJSONError(w, http.StatusNotFound, err.Error())
	}
}

func (s *Server) appealLBW(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAppeal(w, r)
	if !ok {
		return
	}
	handedness := rules.RightHanded
	if req.Handedness != "" {
		handedness = rules.Handedness(req.Handedness)
	}
	d, err := s.sess.EvaluateLBW(req.DeliveryID, rules.LBWInput{
		Handedness:  handedness,
		ShotOffered: req.ShotOffered,
	})
	s.writeDecision(w, d, err)
}

func (s *Server) appealWide(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAppeal(w, r)
	if !ok {
		return
	}
	d, err := s.sess.EvaluateWide(req.DeliveryID)
	s.writeDecision(w, d, err)
}

func (s *Server) appealCaughtBehind(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAppeal(w, r)
	if !ok {
		return
	}
	d, err := s.sess.EvaluateCaughtBehind(req.DeliveryID)
	s.writeDecision(w, d, err)
}
