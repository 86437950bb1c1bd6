package arena

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyClaimed is returned when a ledger claim loses the race for a resource.
	ErrAlreadyClaimed = errors.New("resource already claimed")
	// ErrRoundNotActive is returned when an answer arrives after the round finished.
	ErrRoundNotActive = errors.New("round not active")
	// ErrDuplicateAnswer is returned when the player already answered this round.
	ErrDuplicateAnswer = errors.New("answer already submitted")
	// ErrPreconditionFailed is returned when a command is not valid in the current state.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrStoreUnavailable wraps transient store failures. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoActiveRoom is returned when no room has been created for the session yet.
	ErrNoActiveRoom = fmt.Errorf("no active room: %w", ErrNotFound)
)

// ClaimConflict describes a lost ledger claim. It carries the resource state
// re-read inside the losing transaction.
type ClaimConflict struct {
	Kind       ResourceKind
	ResourceID uuid.UUID
	Holder     *uuid.UUID
}

func (c *ClaimConflict) Error() string {
	if c.Holder == nil {
		return fmt.Sprintf("%s %s: %v", c.Kind, c.ResourceID, ErrAlreadyClaimed)
	}
	return fmt.Sprintf("%s %s held by %s: %v", c.Kind, c.ResourceID, *c.Holder, ErrAlreadyClaimed)
}

func (c *ClaimConflict) Unwrap() error { return ErrAlreadyClaimed }

func preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, fmt.Sprintf(format, args...))
}

// IsSwallowed reports whether err is an answer rejection that the player
// should experience as "already submitted" rather than a failure.
func IsSwallowed(err error) bool {
	return errors.Is(err, ErrRoundNotActive) || errors.Is(err, ErrDuplicateAnswer)
}
