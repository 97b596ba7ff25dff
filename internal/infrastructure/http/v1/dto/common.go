// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"procurement/internal/core/id"
)

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// VersionedRequest carries the version a state change was prepared against.
type VersionedRequest struct {
	DocVersion int    `json:"docVersion" binding:"required,min=1"`
	Note       string `json:"note"`
}

// VersionQuery is VersionedRequest for bodiless requests.
type VersionQuery struct {
	DocVersion int `form:"docVersion" binding:"required,min=1"`
}
