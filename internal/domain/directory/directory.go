// Package directory resolves user identities to profiles.
package directory

import (
	"context"
)

// UserProfile is the part of a user record the engine needs.
type UserProfile struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Department string `db:"department" json:"department"`
}

// Directory resolves user IDs. Unknown IDs are omitted from the result.
type Directory interface {
	Resolve(ctx context.Context, userIDs []string) ([]UserProfile, error)
}

// Find returns the profile for userID, if any.
func Find(ctx context.Context, d Directory, userID string) (*UserProfile, error) {
	if userID == "" {
		return nil, nil
	}
	profiles, err := d.Resolve(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].ID == userID {
			return &profiles[i], nil
		}
	}
	return nil, nil
}
