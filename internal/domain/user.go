// Package domain contains core domain types for the goalmap application.
package domain

import (
	"time"
)

// User is the owner of roadmaps, keyed by an identifier issued outside this system
// (for example a messenger account id).
type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}
