// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"tombstone/internal/softdelete"
)

// Scope names accepted by list endpoints.
const (
	ScopeActive      = "active"
	ScopeWithDeleted = "with_deleted"
	ScopeOnlyDeleted = "only_deleted"
)

// ListRecordsQuery selects the scope and size of a listing.
type ListRecordsQuery struct {
	Scope string `form:"scope" binding:"omitempty,oneof=active with_deleted only_deleted"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// Defaults sets default listing values.
func (q *ListRecordsQuery) Defaults() {
	if q.Scope == "" {
		q.Scope = ScopeActive
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
}

// RecordResponse wraps one record with its lifecycle state.
type RecordResponse struct {
	Type    string            `json:"type"`
	Deleted bool              `json:"deleted"`
	Record  softdelete.Entity `json:"record"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items []RecordResponse `json:"items"`
	Scope string           `json:"scope"`
	Count int              `json:"count"`
	Limit int              `json:"limit"`
}

// RestoreRequest restores soft-deleted records by id.
type RestoreRequest struct {
	IDs       []string `json:"ids" binding:"required,min=1,dive,uuid"`
	Recursive bool     `json:"recursive"`
}

// TransitionResponse reports a completed lifecycle transition.
type TransitionResponse struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Event string `json:"event"`
}

// RestoreResponse lists the restored records.
type RestoreResponse struct {
	Restored []RecordResponse `json:"restored"`
}

// TypeStatus describes a registered type and its enrollment.
type TypeStatus struct {
	Name          string `json:"name"`
	Table         string `json:"table"`
	FlagColumn    string `json:"flagColumn"`
	Sentinel      string `json:"sentinel"`
	Participation string `json:"participation"`
}
