// Package uuid generates time-ordered request identifiers.
// It wraps github.com/google/uuid and always issues version 7 UUIDs so that
// identifiers sort by creation time in logs.
package uuid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// Nil is the zero UUID value.
var Nil = uuid.Nil

// New returns a new UUIDv7. Falls back to a random v4 UUID if the clock source fails.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// NewRequestID returns the string form of a new UUIDv7.
func NewRequestID() string {
	return New().String()
}

// Parse parses a UUID string into a UUID value.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// IsUUIDv7 reports whether the given UUID is a valid UUIDv7.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}

// IssuedAt extracts the millisecond timestamp embedded in the top 48 bits of a UUIDv7.
func IssuedAt(u UUID) time.Time {
	tsMillis := binary.BigEndian.Uint64(u[0:8]) >> 16
	return time.UnixMilli(int64(tsMillis))
}
