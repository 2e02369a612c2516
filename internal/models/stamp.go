package models

import "time"

// StampPoint is a physical location where a stamp can be collected.
// QRCode is the secret printed at the location and is never sent to clients.
type StampPoint struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description"`
	QRCode      string  `json:"-" yaml:"qrCode"`
	Latitude    float64 `json:"latitude" yaml:"latitude"`
	Longitude   float64 `json:"longitude" yaml:"longitude"`
	Category    string  `json:"category" yaml:"category"`
	Address     string  `json:"address,omitempty" yaml:"address"`
	ImageURL    string  `json:"imageUrl,omitempty" yaml:"imageUrl"`
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UserStamp records one user's acquisition of one stamp point.
type UserStamp struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	StampPointID string    `json:"stampPointId"`
	CollectedAt  time.Time `json:"collectedAt"`
	Location     *Location `json:"location,omitempty"`
}

// PointStatus is a stamp point annotated with the caller's completion state.
type PointStatus struct {
	StampPoint
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// CategoryProgress counts collected stamp points within one category.
type CategoryProgress struct {
	Category  string `json:"category"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Progress summarizes a user's collection.
type Progress struct {
	Collected  int                `json:"collected"`
	Total      int                `json:"total"`
	Percent    int                `json:"percent"`
	Categories []CategoryProgress `json:"categories"`
}
