package model

// Status is the logical board column a task belongs to.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists logical statuses in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Label returns the board heading for the status.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	default:
		return "Done"
	}
}

func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// Priority matches the backend TaskPriority enum.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists priorities in the order the quick-add offers them.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ApprovalStatus is set once an owner marks a task done.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING_REVIEW"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Task represents a single card on a board, as returned by the backend.
type Task struct {
	ID                   string         `json:"id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	Deadline             *Timestamp     `json:"deadline,omitempty"`
	Priority             Priority       `json:"priority"`
	Status               Status         `json:"status"`
	AssignedAt           *Timestamp     `json:"assignedAt,omitempty"`
	CompletionRemark     string         `json:"completionRemark,omitempty"`
	ApprovalStatus       ApprovalStatus `json:"approvalStatus,omitempty"`
	ApprovedReopened     bool           `json:"approvedReopened,omitempty"`
	AdminApprovalRemark  string         `json:"adminApprovalRemark,omitempty"`
	AdminRejectionRemark string         `json:"adminRejectionRemark,omitempty"`
}

// Locked reports whether owner status changes are refused by the backend.
func (t Task) Locked() bool {
	return t.ApprovalStatus == ApprovalApproved
}

// NewTask is the payload for task creation.
type NewTask struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    Timestamp `json:"deadline"`
	Priority    Priority  `json:"priority,omitempty"`
}

// TaskEdit is the admin full-edit payload.
type TaskEdit struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    Timestamp `json:"deadline"`
	Priority    Priority  `json:"priority"`
}

// TaskPatch carries the fields a status/priority patch may change.
// Nil fields are not sent.
type TaskPatch struct {
	Status           *Status   `json:"status,omitempty"`
	Priority         *Priority `json:"priority,omitempty"`
	CompletionRemark *string   `json:"completionRemark,omitempty"`
}

// StatusOverride is the body of the privileged override endpoint.
type StatusOverride struct {
	Status           Status `json:"status"`
	CompletionRemark string `json:"completionRemark,omitempty"`
}
