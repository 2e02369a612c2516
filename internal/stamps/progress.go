package stamps

import (
	"math"
	"time"

	"github.com/s-hosono/stamprally/internal/models"
)

// Progress returns the collected share as a rounded percentage.
func Progress(collected, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(collected) / float64(total)))
}

// CategoryProgress counts, per category, the distinct stamp points in
// collected. Categories appear in catalog order.
func CategoryProgress(points []models.StampPoint, collected []models.UserStamp) []models.CategoryProgress {
	have := make(map[string]bool, len(collected))
	for _, s := range collected {
		have[s.StampPointID] = true
	}

	index := make(map[string]int)
	var out []models.CategoryProgress
	for _, p := range points {
		i, ok := index[p.Category]
		if !ok {
			i = len(out)
			index[p.Category] = i
			out = append(out, models.CategoryProgress{Category: p.Category})
		}
		out[i].Total++
		if have[p.ID] {
			out[i].Completed++
		}
	}
	return out
}

// Summarize builds the overall and per-category progress for collected.
// Stamps for points missing from the catalog are not counted.
func Summarize(points []models.StampPoint, collected []models.UserStamp) models.Progress {
	categories := CategoryProgress(points, collected)
	done := 0
	for _, c := range categories {
		done += c.Completed
	}
	if categories == nil {
		categories = []models.CategoryProgress{}
	}
	return models.Progress{
		Collected:  done,
		Total:      len(points),
		Percent:    Progress(done, len(points)),
		Categories: categories,
	}
}

// Annotate marks each point with the time it was collected, if it was.
func Annotate(points []models.StampPoint, collected []models.UserStamp) []models.PointStatus {
	at := make(map[string]time.Time, len(collected))
	for _, s := range collected {
		if _, ok := at[s.StampPointID]; !ok {
			at[s.StampPointID] = s.CollectedAt
		}
	}

	out := make([]models.PointStatus, 0, len(points))
	for _, p := range points {
		status := models.PointStatus{StampPoint: p}
		if t, ok := at[p.ID]; ok {
			t := t
			status.IsCompleted = true
			status.CompletedAt = &t
		}
		out = append(out, status)
	}
	return out
}
