package models

import "time"

// User is a registered participant's profile. The password hash lives in a
// separate collection and never appears on this type.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registeredAt"`
}
