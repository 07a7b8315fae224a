package model

// Board belongs to exactly one user.
type Board struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerUserID string `json:"ownerUserId,omitempty"`
}

// Column is the backend's physical grouping of tasks. It is read only to
// obtain tasks; logical statuses are derived from the tasks themselves.
type Column struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId,omitempty"`
	Name    string `json:"name,omitempty"`
	Tasks   []Task `json:"tasks"`
}
