// Package id provides UUIDv7 generation for all procurement entities.
// UUIDv7 is time-ordered, so ids sort by creation time.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if the random source fails
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseList parses every entry and reports the first invalid one.
func ParseList(values []string) ([]ID, error) {
	ids := make([]ID, 0, len(values))
	for _, s := range values {
		v, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		ids = append(ids, v)
	}
	return ids, nil
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// seedNamespace scopes name-based ids.
var seedNamespace = uuid.MustParse("6f1c2a8e-3d4b-5c7e-9a0f-1b2c3d4e5f60")

// FromName returns a stable id derived from name. Used for seed data that
// must keep its identity across runs.
func FromName(name string) ID {
	return uuid.NewSHA1(seedNamespace, []byte(name))
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// Unique returns ids in first-seen order without duplicates.
func Unique(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
