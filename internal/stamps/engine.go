// Package stamps decides whether a scanned QR code earns a stamp.
//
// The engine is pure: it never persists anything. Callers commit an accepted
// outcome themselves and must re-check the collected set at commit time.
package stamps

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/s-hosono/stamprally/internal/models"
)

const (
	// DefaultRangeKm is the geofence radius around a stamp point.
	DefaultRangeKm = 0.1
	// EarthRadiusKm is the mean radius used by the haversine formula.
	EarthRadiusKm = 6371.0
)

// Status is the result class of an acquisition attempt.
type Status int

const (
	Accepted Status = iota
	InvalidCode
	AlreadyCollected
	OutOfRange
)

var statusNames = map[Status]string{
	Accepted:         "accepted",
	InvalidCode:      "invalid_code",
	AlreadyCollected: "already_collected",
	OutOfRange:       "out_of_range",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown scan status %q", text)
}

// Outcome is the decision for one scan. Point is set whenever the code
// matched a stamp point; Stamp only when Status is Accepted. DistanceKm is
// set when a position was supplied and a point matched.
type Outcome struct {
	Status     Status
	Point      *models.StampPoint
	Stamp      *models.UserStamp
	DistanceKm *float64
}

// Accepted reports whether the attempt earned a stamp.
func (o Outcome) Accepted() bool {
	return o.Status == Accepted
}

// Engine matches scans against a fixed stamp point catalog.
type Engine struct {
	points  []models.StampPoint
	rangeKm float64
	now     func() time.Time
	newID   func() string
}

// NewEngine creates an Engine. A non-positive rangeKm selects DefaultRangeKm.
func NewEngine(points []models.StampPoint, rangeKm float64) *Engine {
	if rangeKm <= 0 {
		rangeKm = DefaultRangeKm
	}
	return &Engine{
		points:  points,
		rangeKm: rangeKm,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Points returns a copy of the catalog.
func (e *Engine) Points() []models.StampPoint {
	return append([]models.StampPoint(nil), e.points...)
}

// RangeKm returns the geofence radius.
func (e *Engine) RangeKm() float64 {
	return e.rangeKm
}

// AttemptAcquire decides whether userID earns a stamp for qrPayload.
//
// Checks run in order: code match, already collected, range. A nil position
// skips the range check.
func (e *Engine) AttemptAcquire(userID, qrPayload string, collected []models.UserStamp, pos *models.Location) Outcome {
	point, ok := e.match(qrPayload)
	if !ok {
		return Outcome{Status: InvalidCode}
	}

	if IsCollected(collected, point.ID) {
		return Outcome{Status: AlreadyCollected, Point: &point}
	}

	var distance *float64
	if pos != nil {
		d := Distance(pos.Latitude, pos.Longitude, point.Latitude, point.Longitude)
		distance = &d
		if d > e.rangeKm {
			return Outcome{Status: OutOfRange, Point: &point, DistanceKm: distance}
		}
	}

	stamp := models.UserStamp{
		ID:           e.newID(),
		UserID:       userID,
		StampPointID: point.ID,
		CollectedAt:  e.now(),
	}
	if pos != nil {
		loc := *pos
		stamp.Location = &loc
	}
	return Outcome{Status: Accepted, Point: &point, Stamp: &stamp, DistanceKm: distance}
}

func (e *Engine) match(qrPayload string) (models.StampPoint, bool) {
	code := strings.TrimSpace(qrPayload)
	if code == "" {
		return models.StampPoint{}, false
	}
	for _, p := range e.points {
		if strings.TrimSpace(p.QRCode) == code {
			return p, true
		}
	}
	return models.StampPoint{}, false
}

// IsCollected reports whether stampPointID appears in collected.
func IsCollected(collected []models.UserStamp, stampPointID string) bool {
	for _, s := range collected {
		if s.StampPointID == stampPointID {
			return true
		}
	}
	return false
}

// Distance returns the great-circle distance in kilometres between two
// coordinates, using the haversine formula on a spherical Earth.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
