package stamps

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-hosono/stamprally/internal/models"
)

func stampsFor(ids ...string) []models.UserStamp {
	out := make([]models.UserStamp, 0, len(ids))
	for i, id := range ids {
		out = append(out, models.UserStamp{
			ID:           fmt.Sprintf("s%d", i),
			UserID:       "u1",
			StampPointID: id,
			CollectedAt:  time.Date(2024, 5, 1, 10, i, 0, 0, time.UTC),
		})
	}
	return out
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(0, 10))
	assert.Equal(t, 70, Progress(7, 10))
	assert.Equal(t, 0, Progress(3, 0))
	assert.Equal(t, 33, Progress(1, 3))
	assert.Equal(t, 67, Progress(2, 3))
	assert.Equal(t, 100, Progress(5, 5))
}

func TestCategoryProgress(t *testing.T) {
	points, err := LoadCatalog("")
	require.NoError(t, err)

	got := CategoryProgress(points, stampsFor("1", "3", "4"))
	assert.Equal(t, []models.CategoryProgress{
		{Category: "観光", Total: 2, Completed: 2},
		{Category: "エンターテイメント", Total: 1, Completed: 0},
		{Category: "文化", Total: 1, Completed: 1},
		{Category: "公園", Total: 1, Completed: 0},
	}, got)
}

func TestSummarize(t *testing.T) {
	points, err := LoadCatalog("")
	require.NoError(t, err)

	p := Summarize(points, stampsFor("1", "2", "unknown"))
	assert.Equal(t, 2, p.Collected)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, 40, p.Percent)

	empty := Summarize(nil, nil)
	assert.Equal(t, 0, empty.Percent)
	assert.NotNil(t, empty.Categories)
}

func TestAnnotate(t *testing.T) {
	points, err := LoadCatalog("")
	require.NoError(t, err)
	collected := stampsFor("2")

	got := Annotate(points, collected)
	require.Len(t, got, 5)
	assert.False(t, got[0].IsCompleted)
	assert.Nil(t, got[0].CompletedAt)
	assert.True(t, got[1].IsCompleted)
	require.NotNil(t, got[1].CompletedAt)
	assert.Equal(t, collected[0].CollectedAt, *got[1].CompletedAt)
}

func TestLoadCatalog_Default(t *testing.T) {
	points, err := LoadCatalog("")
	require.NoError(t, err)
	require.Len(t, points, 5)
	assert.Equal(t, "1", points[0].ID)
	assert.Equal(t, "STAMP_AKARENGA_2024", points[0].QRCode)
	assert.Equal(t, 35.4532, points[0].Latitude)
	assert.Equal(t, 139.6417, points[0].Longitude)
}

func TestLoadCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
points:
  - id: a
    name: Alpha
    qrCode: CODE_A
    latitude: 1
    longitude: 2
    category: test
`), 0o644))

	points, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "CODE_A", points[0].QRCode)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":        `points: []`,
		"not yaml":     `points: [`,
		"missing id":   "points:\n  - qrCode: A\n",
		"missing code": "points:\n  - id: a\n",
		"dup id":       "points:\n  - {id: a, qrCode: A}\n  - {id: a, qrCode: B}\n",
		"dup code":     "points:\n  - {id: a, qrCode: A}\n  - {id: b, qrCode: ' A '}\n",
		"bad coords":   "points:\n  - {id: a, qrCode: A, latitude: 91}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}
