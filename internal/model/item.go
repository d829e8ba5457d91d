package model

import "time"

// Item represents a physical object tracked through the lost-and-found
// pipeline, from the initial report to claim or rejection.
type Item struct {
	ID                  int64      `json:"id"`
	ItemType            string     `json:"item_type"`
	Description         string     `json:"description"`
	VerifiedDescription string     `json:"verified_description,omitempty"`
	UniqueMarks         string     `json:"unique_marks,omitempty"`
	Location            string     `json:"location"`
	OccurredAt          time.Time  `json:"occurred_at"`
	Status              string     `json:"status"`
	Token               string     `json:"token,omitempty"`
	TokenVerifiedAt     *time.Time `json:"token_verified_at,omitempty"`
	Images              []Image    `json:"images"`
	ImagesPublic        bool       `json:"images_public"`
	IsVisible           bool       `json:"is_visible"`
	Questions           []string   `json:"questions,omitempty"`
	SecurityNotes       string     `json:"security_notes,omitempty"`
	RejectionReason     string     `json:"rejection_reason,omitempty"`

	ReportedBy *int64 `json:"reported_by,omitempty"`
	FoundBy    *int64 `json:"found_by,omitempty"`
	ReceivedBy *int64 `json:"received_by,omitempty"`
	VerifiedBy *int64 `json:"verified_by,omitempty"`
	ClaimedBy  *int64 `json:"claimed_by,omitempty"`

	VerificationDate *time.Time `json:"verification_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Image is a stored picture of an item or a claim proof.
type Image struct {
	StorageID string `json:"storage_id"`
	URL       string `json:"url"`
}

// Item statuses.
const (
	ItemStatusLost      = "lost"
	ItemStatusSubmitted = "submitted"
	ItemStatusReceived  = "received"
	ItemStatusVerified  = "verified"
	ItemStatusClaimed   = "claimed"
	ItemStatusRejected  = "rejected"
)

// ItemStatuses lists every valid item status.
var ItemStatuses = []string{
	ItemStatusLost,
	ItemStatusSubmitted,
	ItemStatusReceived,
	ItemStatusVerified,
	ItemStatusClaimed,
	ItemStatusRejected,
}

// ValidItemStatus reports whether status is a known item status.
func ValidItemStatus(status string) bool {
	for _, s := range ItemStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Claimable reports whether an item in the given status may be claimed.
// Verification is an optional step, so items received through a trusted
// staff intake are claimable without it.
func Claimable(status string) bool {
	return status == ItemStatusVerified || status == ItemStatusReceived
}
