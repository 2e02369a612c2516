package stamps

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-hosono/stamprally/internal/models"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	points, err := LoadCatalog("")
	require.NoError(t, err)
	e := NewEngine(points, DefaultRangeKm)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	e.newID = func() string { return "stamp-1" }
	return e
}

func TestAttemptAcquire(t *testing.T) {
	e := testEngine(t)
	akarenga := &models.Location{Latitude: 35.4532, Longitude: 139.6417}
	collectedOne := []models.UserStamp{{ID: "s0", UserID: "u1", StampPointID: "1"}}

	tests := []struct {
		name      string
		payload   string
		collected []models.UserStamp
		pos       *models.Location
		want      Status
		wantPoint string
	}{
		{name: "at the point", payload: "STAMP_AKARENGA_2024", pos: akarenga, want: Accepted, wantPoint: "1"},
		{name: "surrounding whitespace", payload: "  STAMP_AKARENGA_2024\n", pos: akarenga, want: Accepted, wantPoint: "1"},
		{name: "no position skips geofence", payload: "STAMP_YAMASHITA_2024", want: Accepted, wantPoint: "5"},
		{name: "far away", payload: "STAMP_AKARENGA_2024", pos: &models.Location{Latitude: 35.50, Longitude: 139.70}, want: OutOfRange, wantPoint: "1"},
		{name: "neighbouring point", payload: "STAMP_COSMOWORLD_2024", pos: akarenga, want: OutOfRange, wantPoint: "2"},
		{name: "already collected", payload: "STAMP_AKARENGA_2024", collected: collectedOne, pos: akarenga, want: AlreadyCollected, wantPoint: "1"},
		{name: "already collected wins over range", payload: "STAMP_AKARENGA_2024", collected: collectedOne, pos: &models.Location{Latitude: 0, Longitude: 0}, want: AlreadyCollected, wantPoint: "1"},
		{name: "garbage", payload: "garbage", pos: akarenga, want: InvalidCode},
		{name: "case differs", payload: "stamp_akarenga_2024", pos: akarenga, want: InvalidCode},
		{name: "empty", payload: "   ", want: InvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.AttemptAcquire("u1", tt.payload, tt.collected, tt.pos)
			assert.Equal(t, tt.want, out.Status)

			if tt.wantPoint == "" {
				assert.Nil(t, out.Point)
			} else {
				require.NotNil(t, out.Point)
				assert.Equal(t, tt.wantPoint, out.Point.ID)
			}

			if tt.want != Accepted {
				assert.Nil(t, out.Stamp)
				return
			}
			require.NotNil(t, out.Stamp)
			assert.Equal(t, "stamp-1", out.Stamp.ID)
			assert.Equal(t, "u1", out.Stamp.UserID)
			assert.Equal(t, tt.wantPoint, out.Stamp.StampPointID)
			assert.Equal(t, e.now(), out.Stamp.CollectedAt)
			assert.Equal(t, tt.pos, out.Stamp.Location)
		})
	}
}

func TestAttemptAcquire_CustomRange(t *testing.T) {
	points, err := LoadCatalog("")
	require.NoError(t, err)

	wide := NewEngine(points, 10)
	out := wide.AttemptAcquire("u1", "STAMP_AKARENGA_2024", nil, &models.Location{Latitude: 35.50, Longitude: 139.70})
	assert.True(t, out.Accepted())
	require.NotNil(t, out.DistanceKm)
	assert.Greater(t, *out.DistanceKm, 0.1)

	assert.Equal(t, DefaultRangeKm, NewEngine(points, 0).RangeKm())
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(35.4532, 139.6417, 35.4532, 139.6417), 1e-9)
	assert.InDelta(t, EarthRadiusKm*math.Pi/180, Distance(0, 0, 1, 0), 1e-6)
	assert.InDelta(t, Distance(35.4532, 139.6417, 35.4555, 139.6380), Distance(35.4555, 139.6380, 35.4532, 139.6417), 1e-12)
	assert.InDelta(t, 0.42, Distance(35.4532, 139.6417, 35.4555, 139.6380), 0.05)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "invalid_code", InvalidCode.String())
	assert.Equal(t, "already_collected", AlreadyCollected.String())
	assert.Equal(t, "out_of_range", OutOfRange.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestStatus_TextRoundTrip(t *testing.T) {
	var s Status
	require.NoError(t, s.UnmarshalText([]byte("out_of_range")))
	assert.Equal(t, OutOfRange, s)
	assert.Error(t, s.UnmarshalText([]byte("teleported")))
}
