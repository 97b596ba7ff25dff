// Package audit defines the audit trail written by engine operations.
package audit

import (
	"context"

	appctx "procurement/internal/core/context"
	"procurement/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionApprove Action = "approve"
	ActionCancel  Action = "cancel"
	ActionClose   Action = "close"
	ActionDelete  Action = "delete"
)

// Entry is a single audit record. Changes is marshalled to JSON by the recorder.
type Entry struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	UserID     string
	Changes    map[string]any
}

// Recorder persists audit entries. Record runs inside the caller's
// transaction when ctx carries one.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// NewEntry builds an entry attributed to the caller in ctx.
func NewEntry(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) Entry {
	return Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Changes:    changes,
	}
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }
