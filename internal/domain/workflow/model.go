// Package workflow drives purchase orders through their approval stages.
// Stage sequences are defined outside the engine and reached through a
// Navigator.
package workflow

import (
	"context"

	"github.com/shopspring/decimal"
)

// RoleViewOnly is the role of a caller who may look but not act.
const RoleViewOnly = "view_only"

// StageInfo describes a workflow stage.
type StageInfo struct {
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	AssignedUsers []string `json:"assigned_users"`
	CreatorAccess bool     `json:"creator_access"`
}

// NextStageInfo names the stage after the current one.
type NextStageInfo struct {
	Name string `json:"name"`
}

// Navigation is the result of asking where a document goes next.
// CurrentStageInfo is the stage the document moves to.
type Navigation struct {
	WorkflowName     string         `json:"workflow_name,omitempty"`
	CurrentStageInfo StageInfo      `json:"current_stage_info"`
	NextStageInfo    *NextStageInfo `json:"next_stage_info,omitempty"`
	PreviousStep     string         `json:"workflow_previous_step"`
	NextStep         string         `json:"workflow_next_step,omitempty"`
}

// Final reports whether the navigation ends the workflow.
func (n *Navigation) Final() bool {
	return n.NextStageInfo == nil || n.NextStageInfo.Name == "" || n.NextStageInfo.Name == "-"
}

// Payload is the document data stage routing may depend on.
type Payload struct {
	DocType string          `json:"doc_type"`
	Amount  decimal.Decimal `json:"amount"`
}

// NavigateRequest asks for the stage that follows CurrentStage.
type NavigateRequest struct {
	WorkflowID    string  `json:"workflow_id"`
	CurrentStage  string  `json:"current_stage"`
	PreviousStage string  `json:"previous_stage"`
	Payload       Payload `json:"payload"`
}

// Navigator is the workflow navigation service.
type Navigator interface {
	// Start returns the first stage of workflowID as CurrentStageInfo.
	Start(ctx context.Context, workflowID string, payload Payload) (*Navigation, error)

	// Stage describes a stage of workflowID.
	Stage(ctx context.Context, workflowID, stage string) (*StageInfo, error)

	// Navigate returns where a document at req.CurrentStage moves on approval.
	Navigate(ctx context.Context, req NavigateRequest) (*Navigation, error)
}

// Definition is a stored workflow: an ordered list of stages. The last
// stage is terminal, reaching it completes the workflow.
type Definition struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Stages []StageDefinition `json:"stages"`
}

// StageDefinition is a stage of a stored workflow. Condition is an optional
// CEL expression over amount, a stage whose condition is false is skipped.
type StageDefinition struct {
	StageInfo
	Condition string `json:"condition,omitempty"`
}

// DefinitionSource loads stored workflows.
type DefinitionSource interface {
	Definition(ctx context.Context, workflowID string) (*Definition, error)
}
