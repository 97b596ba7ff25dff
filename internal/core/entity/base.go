// Package entity holds the fields shared by persisted procurement records.
package entity

import (
	"time"
)

// AuditFields records who created and last changed a row.
type AuditFields struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// Stamp sets creation and update fields.
func (a *AuditFields) Stamp(at time.Time, userID string) {
	a.CreatedAt = at
	a.CreatedBy = userID
	a.UpdatedAt = at
	a.UpdatedBy = userID
}

// Touch sets the update fields.
func (a *AuditFields) Touch(at time.Time, userID string) {
	a.UpdatedAt = at
	a.UpdatedBy = userID
}

// SoftDelete marks rows that are hidden but never removed.
type SoftDelete struct {
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	DeletedBy *string    `db:"deleted_by" json:"deletedBy,omitempty"`
}

// IsDeleted reports whether the row carries a deletion stamp.
func (s SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}

// MarkDeleted stamps the deletion time and user.
func (s *SoftDelete) MarkDeleted(at time.Time, userID string) {
	s.DeletedAt = &at
	s.DeletedBy = &userID
}
