package model

import "time"

// ItemRequest represents one claimant's attempt to reclaim a specific item.
// A request is created pending and resolved exactly once.
type ItemRequest struct {
	ID                     int64     `json:"id"`
	ItemID                 int64     `json:"item_id"`
	RequestType            string    `json:"request_type"`
	Status                 string    `json:"status"`
	Token                  string    `json:"token,omitempty"`
	Answers                []Answer  `json:"answers,omitempty"`
	ProofImages            []Image   `json:"proof_images"`
	AdditionalNotes        string    `json:"additional_notes,omitempty"`
	PreferredContactMethod string    `json:"preferred_contact_method"`
	AppointmentTimeSlot    string    `json:"appointment_time_slot,omitempty"`
	RequestDate            time.Time `json:"request_date"`

	RequestedBy int64  `json:"requested_by"`
	RequestedTo *int64 `json:"requested_to,omitempty"`
	VerifiedBy  *int64 `json:"verified_by,omitempty"`

	VerificationNotes string     `json:"verification_notes,omitempty"`
	VerificationDate  *time.Time `json:"verification_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Joined item, populated for staff views.
	Item *Item `json:"item,omitempty"`
}

// Answer is a claimant's response to one of an item's screening questions.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request types.
const RequestTypeClaim = "claim"

// Request statuses. A request starts pending; the other three are terminal.
const (
	RequestStatusPending   = "pending"
	RequestStatusVerified  = "verified"
	RequestStatusFailed    = "verification_failed"
	RequestStatusCancelled = "cancelled"
)

// Contact methods.
const (
	ContactMethodEmail = "email"
	ContactMethodPhone = "phone"
)

// ValidContactMethod reports whether method is a known contact method.
func ValidContactMethod(method string) bool {
	return method == ContactMethodEmail || method == ContactMethodPhone
}
