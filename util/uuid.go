package util

import (
	"github.com/google/uuid"
)

// NewUUID returns a time-ordered UUIDv7, so message IDs sort by creation
// time. It falls back to a random v4 if the clock source fails.
func NewUUID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
