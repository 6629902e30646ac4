package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gully-data/crease.review/internal/calib"
	"github.com/gully-data/crease.review/internal/config"
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/rules"
	"github.com/gully-data/crease.review/internal/session"
	"github.com/gully-data/crease.review/internal/track"
)

func apiSession(t *testing.T) *session.Session {
	t.Helper()

	minFrames := 5
	idleFrames := 5
	cfg := &config.SessionConfig{MinFrames: &minFrames, IdleFrames: &idleFrames}

	cal := calib.Calibration{
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
	}

	s, err := session.New(cfg, &cal, nil)
	require.NoError(t, err)

	frame := int64(0)
	for y := 100.0; y <= 880; y += 30 {
		s.ProcessFrame(track.Observation{
			Frame: frame, X: 400, Y: y,
			Confidence: 0.9, Visibility: track.VisibilityVisible,
		})
		frame++
	}
	for i := 0; i < 6; i++ {
		s.ProcessFrame(track.AbsentObservation(frame, 0))
		frame++
	}
	require.NoError(t, s.Close())
	return s
}

func TestShowState(t *testing.T) {
	t.Parallel()

	srv := NewServer(apiSession(t), "")
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "idle", got["state"])
	assert.EqualValues(t, 1, got["deliveries"])
}

func TestListDeliveries(t *testing.T) {
	t.Parallel()

	srv := NewServer(apiSession(t), "kmph")
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deliveries", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []DeliverySummaryAPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "kmph", got[0].SpeedUnits)
	assert.Greater(t, got[0].Speed, 50.0)
	assert.True(t, got[0].Complete)
}

func TestShowLatest(t *testing.T) {
	t.Parallel()

	srv := NewServer(apiSession(t), "")
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deliveries/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got session.Delivery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.NotNil(t, got.Trajectory)
}

func TestAppealWide(t *testing.T) {
	t.Parallel()

	sess := apiSession(t)
	d, ok := sess.LastDelivery()
	require.True(t, ok)

	srv := NewServer(sess, "")
	body := strings.NewReader(`{"delivery_id": "` + d.ID + `"}`)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appeals/wide", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var got rules.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, rules.KindWide, got.Kind)
	assert.Equal(t, rules.VerdictNotWide, got.Verdict)
}

func TestAppealLBW(t *testing.T) {
	t.Parallel()

	sess := apiSession(t)
	d, _ := sess.LastDelivery()

	srv := NewServer(sess, "")
	body := strings.NewReader(`{"delivery_id": "` + d.ID + `", "handedness": "left", "shot_offered": true}`)
	rec := httptest.NewRecorder()
	srv.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appeals/lbw", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var got rules.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, rules.KindLBW, got.Kind)
}

func TestAppealValidation(t *testing.T) {
	t.Parallel()

	srv := NewServer(apiSession(t), "")
	mux := srv.ServeMux()

	// Missing delivery id.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appeals/wide", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown delivery.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appeals/wide", strings.NewReader(`{"delivery_id": "nope"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Wrong method.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/appeals/wide", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
