package models

import (
	"time"
)

// ReportType classifies a safety report.
type ReportType string

const (
	ReportSafe   ReportType = "safe"
	ReportUnsafe ReportType = "unsafe"
)

// Valid reports whether t is one of the known report types.
func (t ReportType) Valid() bool {
	return t == ReportSafe || t == ReportUnsafe
}

// Report is a user-submitted, geotagged safety observation. The author
// display name is a snapshot taken at write time and is never refreshed
// from the profile afterwards.
type Report struct {
	Seq               int64      `json:"seq" db:"seq"`
	ID                string     `json:"id" db:"id"`
	Type              ReportType `json:"type" db:"type"`
	Description       string     `json:"description" db:"description"`
	Latitude          float64    `json:"latitude" db:"latitude"`
	Longitude         float64    `json:"longitude" db:"longitude"`
	AuthorID          string     `json:"author_id" db:"author_id"`
	AuthorDisplayName string     `json:"author_display_name" db:"author_display_name"`
	ImageURL          string     `json:"image_url,omitempty" db:"image_url"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// ReportInput is the author-supplied part of a report.
type ReportInput struct {
	Type        ReportType `json:"type"`
	Description string     `json:"description"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
}

// Snapshot is the complete ordered set of currently known reports at a
// point in time, sorted by creation time descending. Consumers replace
// their copy wholesale; a snapshot is never mutated after delivery.
type Snapshot struct {
	Reports []Report  `json:"reports"`
	Count   int       `json:"count"`
	TakenAt time.Time `json:"taken_at"`
}

// PoliceStation is the ephemeral result of a nearest-facility lookup.
// Optional fields stay empty when the provider did not supply them.
type PoliceStation struct {
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	DistanceMeters float64  `json:"distance_meters"`
	Phone          string   `json:"phone,omitempty"`
	Rating         *float64 `json:"rating,omitempty"`
	PlaceID        string   `json:"place_id,omitempty"`
}

// UserProfile is the read-only projection of an identity-provider user.
type UserProfile struct {
	UID                 string    `json:"uid" db:"uid"`
	Email               string    `json:"email" db:"email"`
	DisplayName         string    `json:"display_name" db:"display_name"`
	VerifiedContributor bool      `json:"verified_contributor" db:"verified_contributor"`
	AvatarURL           string    `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// BroadcastMessage is the envelope sent to WebSocket clients.
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ConnectedClients int    `json:"connected_clients"`
	LastSnapshotSize int    `json:"last_snapshot_size"`
}
