package ledger

import "errors"

var (
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
	ErrInvalidMode     = errors.New("unknown driver mode")
	ErrInvalidLocation = errors.New("location is required")

	// ErrDuplicateActiveRequest is benign: it usually means a double submit.
	// CreateRequest returns the existing request alongside it.
	ErrDuplicateActiveRequest = errors.New("an active ride request already exists")

	ErrOfferNotActive   = errors.New("offer is not active")
	ErrOfferFull        = errors.New("offer is full")
	ErrRequestNotActive = errors.New("request is not active")
	ErrNotActive        = errors.New("entry is not active")
	ErrAlreadyOnOffer   = errors.New("user is already a passenger on this offer")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("not allowed for this user")

	// ErrConflict means the entry kept changing under us and the retry budget
	// ran out. The caller should re-fetch and decide again.
	ErrConflict = errors.New("concurrent update, please retry")
)
