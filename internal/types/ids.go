package types

import (
	"time"

	"github.com/google/uuid"
)

// RunID identifies one processing run (one FilterState lifetime).
type RunID string

// ViewID identifies a stored view.
type ViewID string

// NewRunID generates a UUIDv7 run identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRunID() RunID {
	return RunID(uuid.Must(uuid.NewV7()).String())
}

// NewViewID generates a UUIDv7 view identifier.
// Time-ordered IDs keep stored views clustered by creation in B-tree pages.
func NewViewID() ViewID {
	return ViewID(uuid.Must(uuid.NewV7()).String())
}

// ParseViewID validates and converts a string to ViewID.
func ParseViewID(s string) (ViewID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ViewID(s), nil
}

// ViewIDTime extracts the creation time embedded in a UUIDv7 view ID.
// Returns zero time for invalid IDs; caller should check IsZero().
func ViewIDTime(id ViewID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
