package workflow

import (
	"slices"

	"procurement/internal/domain/directory"
)

// ResolveRole returns the role the caller holds on stage: the stage role when
// the caller is assigned, or when the stage grants creator access and the
// caller works in the buyer's department. Everyone else is view only.
func ResolveRole(stage *StageInfo, callerID string, caller, buyer *directory.UserProfile) string {
	if stage == nil || callerID == "" || stage.Role == "" {
		return RoleViewOnly
	}
	if slices.Contains(stage.AssignedUsers, callerID) {
		return stage.Role
	}
	if stage.CreatorAccess && caller != nil && buyer != nil &&
		caller.Department != "" && caller.Department == buyer.Department {
		return stage.Role
	}
	return RoleViewOnly
}
