package store

import "errors"

// Sentinel errors for lifecycle transitions. Handlers check these with
// errors.Is to map them onto not-found vs conflict responses.
var (
	ErrNotFound = errors.New("not found")

	// ErrNotReviewable: review is only legal while an item is submitted.
	ErrNotReviewable = errors.New("item cannot be reviewed at this stage")

	// ErrAlreadyVerified: an item can only be verified once.
	ErrAlreadyVerified = errors.New("item has already been verified")

	// ErrNotClaimable: claims require a verified or received item.
	ErrNotClaimable = errors.New("item is not available for claiming")

	// ErrAlreadyProcessed: a claim request is resolved exactly once.
	ErrAlreadyProcessed = errors.New("claim has already been processed")
)
