package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/geom"
	"github.com/gully-data/crease.review/internal/rules"
	"github.com/gully-data/crease.review/internal/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTrajectory(id string) *track.Trajectory {
	tr := track.NewTrajectory(id)
	for i := int64(0); i < 20; i++ {
		tr.Append(track.TrajectoryPoint{
			Frame:      i,
			Pixel:      geom.Point{X: 400, Y: 100 + float64(i)*20},
			VY:         20,
			Confidence: 0.9,
		})
	}
	tr.MarkBounce(10)
	tr.Finalize(nil, 30)
	return tr
}

func TestOpenRunsMigrations(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	// Migrated tables exist and start empty.
	got, err := s.ListDeliveries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenIsIdempotentOnExistingArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SaveDelivery(context.Background(), "s1", sampleTrajectory("d-1"), nil))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.ListDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d-1", got[0].ID)
}

func TestSaveAndLoadDelivery(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	tr := sampleTrajectory("d-42")
	impacts := []events.Impact{
		{Frame: 15, Pixel: geom.Point{X: 400, Y: 700}, VelocityChange: 18, Surface: events.SurfacePad, Confidence: 0.8},
	}
	require.NoError(t, s.SaveDelivery(ctx, "session-1", tr, impacts))

	summaries, err := s.ListDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "d-42", summaries[0].ID)
	assert.Equal(t, "session-1", summaries[0].SessionID)
	assert.True(t, summaries[0].Complete)

	loaded, err := s.GetTrajectory(ctx, "d-42")
	require.NoError(t, err)
	if diff := cmp.Diff(tr.Points, loaded.Points); diff != "" {
		t.Errorf("trajectory round-trip mismatch (-saved +loaded):\n%s", diff)
	}
	require.NotNil(t, loaded.Bounce())
	assert.Equal(t, int64(10), loaded.Bounce().Frame)

	gotImpacts, err := s.ListImpacts(ctx, "d-42")
	require.NoError(t, err)
	require.Len(t, gotImpacts, 1)
	assert.Equal(t, events.SurfacePad, gotImpacts[0].Surface)
	assert.InDelta(t, 18, gotImpacts[0].VelocityChange, 1e-9)
}

func TestDuplicateDeliveryIDIsRejected(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDelivery(ctx, "s1", sampleTrajectory("d-dup"), nil))
	assert.Error(t, s.SaveDelivery(ctx, "s1", sampleTrajectory("d-dup"), nil))
}

func TestSaveAndListDecisions(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDelivery(ctx, "s1", sampleTrajectory("d-7"), nil))

	d := rules.Decision{
		Kind:       rules.KindLBW,
		Verdict:    rules.VerdictOut,
		Reason:     "projected to hit the stumps",
		Confidence: 0.82,
		Geometry:   rules.Geometry{ProjectedPoint: &geom.Point{X: 401, Y: 870}},
	}
	require.NoError(t, s.SaveDecision(ctx, "d-7", d))

	got, err := s.ListDecisions(ctx, "d-7")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lbw", got[0].Kind)
	assert.Equal(t, "out", got[0].Verdict)
	assert.InDelta(t, 0.82, got[0].Confidence, 1e-9)

	all, err := s.AllDecisions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetTrajectoryUnknownID(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, err := s.GetTrajectory(context.Background(), "missing")
	assert.Error(t, err)
}
