package service

import (
	"errors"

	"github.com/maheshrc27/unibox/internal/repository"
)

// Fixed error taxonomy so callers can tell "safe to ignore" from "must
// escalate". Duplicate messages and unknown accounts recover silently;
// everything else surfaces.
var (
	// ErrDuplicateMessage: the platform re-delivered a message we already
	// stored. A skip, never a failure.
	ErrDuplicateMessage = repository.ErrDuplicateMessage

	// ErrUnknownAccount: no connected platform account matches the event.
	// Dropped with a warning.
	ErrUnknownAccount = errors.New("service: no platform account for event")

	ErrUnsupportedPlatform  = errors.New("service: unsupported platform")
	ErrAccountNotFound      = errors.New("service: platform account not found")
	ErrAccountInactive      = errors.New("service: platform account is inactive")
	ErrConversationNotFound = errors.New("service: conversation not found")
	ErrMessageNotFound      = errors.New("service: message not found")
	ErrNotOwner             = errors.New("service: resource belongs to another user")
)

// Recoverable reports whether an ingestion error is one of the silent-skip
// cases (idempotency skip, unknown account).
func Recoverable(err error) bool {
	return errors.Is(err, ErrDuplicateMessage) || errors.Is(err, ErrUnknownAccount)
}
