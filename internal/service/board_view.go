package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
)

// DialogKind tells the caller which modal flow an operation opened.
type DialogKind int

const (
	DialogNone DialogKind = iota
	// DialogRemark collects a completion remark before a task goes to DONE.
	DialogRemark
	// DialogConfirmOverride asks an admin to reopen an approved task.
	DialogConfirmOverride
	// DialogLocked tells a non-admin the task is approved and locked.
	DialogLocked
)

// Outcome of a status change that did not finish with a plain reload.
type Outcome struct {
	Dialog  DialogKind
	TaskID  string
	Target  model.Status
	Message string
}

// StatusExtra carries optional fields of a status patch.
type StatusExtra struct {
	CompletionRemark string
}

// TaskFields is the editable content of a task.
type TaskFields struct {
	Title       string
	Description string
	Deadline    time.Time
	Priority    model.Priority
}

// Buckets are the logical status columns derived from a board's tasks.
type Buckets map[model.Status][]model.Task

// BoardView keeps a read-after-write copy of one board's tasks. Every
// successful mutation is followed by a full reload; nothing is patched locally.
type BoardView struct {
	backend BackendFactory
	boardID string
	now     func() time.Time

	mu        sync.Mutex
	ident     Identity
	columns   []model.Column
	loadedFor string
	errMsg    string
}

func NewBoardView(backend BackendFactory, ident Identity, boardID string) *BoardView {
	return &BoardView{backend: backend, ident: ident, boardID: boardID, now: time.Now}
}

func (v *BoardView) BoardID() string {
	return v.boardID
}

// Rebind swaps the identity the view acts for, e.g. after a fresh session
// lookup. Columns loaded for another active user are dropped.
func (v *BoardView) Rebind(ident Identity) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ident = ident
	if v.loadedFor != ident.ViewedUser() {
		v.columns = nil
		v.loadedFor = ""
	}
}

func (v *BoardView) identity() Identity {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ident
}

func (v *BoardView) client() (Backend, Identity) {
	ident := v.identity()
	return v.backend(ident.BearerToken()), ident
}

// Error is the inline error of the last attempt, empty on success.
func (v *BoardView) Error() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.errMsg
}

func (v *BoardView) setError(msg string) {
	v.mu.Lock()
	v.errMsg = msg
	v.mu.Unlock()
}

// IsOwner reports whether the viewer looks at their own board.
func (v *BoardView) IsOwner() bool {
	ident := v.identity()
	return ident.ViewedUser() == ident.CurrentUser()
}

func (v *BoardView) IsAdmin() bool {
	return v.identity().Admin()
}

// Load fetches the board's columns for the active user. On failure the
// last-known columns stay in place.
func (v *BoardView) Load(ctx context.Context) error {
	backend, ident := v.client()
	userID := ident.ViewedUser()

	columns, err := backend.ListColumns(ctx, userID, v.boardID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ident.ViewedUser() != userID {
		// active user changed while the request was in flight
		return nil
	}
	if err != nil {
		v.errMsg = "Failed to load columns"
		return fmt.Errorf("load columns: %w", err)
	}
	v.columns = columns
	v.loadedFor = userID
	v.errMsg = ""
	return nil
}

// Columns returns a copy of the cached physical columns.
func (v *BoardView) Columns() []model.Column {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]model.Column, len(v.columns))
	copy(out, v.columns)
	return out
}

// Tasks flattens the tasks of every physical column, in backend order.
func (v *BoardView) Tasks() []model.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	var tasks []model.Task
	for _, column := range v.columns {
		tasks = append(tasks, column.Tasks...)
	}
	return tasks
}

func (v *BoardView) Task(taskID string) (model.Task, bool) {
	for _, task := range v.Tasks() {
		if task.ID == taskID {
			return task, true
		}
	}
	return model.Task{}, false
}

// Buckets filters the flattened tasks by status. Every bucket is non-nil.
func (v *BoardView) Buckets() Buckets {
	buckets := make(Buckets, len(model.Statuses))
	for _, status := range model.Statuses {
		buckets[status] = []model.Task{}
	}
	for _, task := range v.Tasks() {
		if _, ok := buckets[task.Status]; ok {
			buckets[task.Status] = append(buckets[task.Status], task)
		}
	}
	return buckets
}

// mutate runs call, records the inline error on failure and reloads on success.
func (v *BoardView) mutate(ctx context.Context, fallback string, call func(Backend, Identity) error) error {
	v.setError("")
	backend, ident := v.client()
	if err := call(backend, ident); err != nil {
		v.setError(api.Message(err, fallback))
		return fmt.Errorf("%s: %w", strings.ToLower(fallback), err)
	}
	return v.Load(ctx)
}

func (v *BoardView) requireAdmin() error {
	if !v.identity().Admin() {
		return ErrAdminOnly
	}
	return nil
}

// CreateTask adds a task to the active user's board.
func (v *BoardView) CreateTask(ctx context.Context, fields TaskFields) error {
	if err := v.requireAdmin(); err != nil {
		return err
	}
	task, err := v.newTask(fields)
	if err != nil {
		return err
	}
	return v.mutate(ctx, "Failed to create task", func(b Backend, ident Identity) error {
		return b.CreateTask(ctx, ident.CurrentUser(), ident.ViewedUser(), v.boardID, task)
	})
}

func (v *BoardView) newTask(fields TaskFields) (model.NewTask, error) {
	title := strings.TrimSpace(fields.Title)
	description := strings.TrimSpace(fields.Description)
	if title == "" || description == "" || fields.Deadline.IsZero() {
		return model.NewTask{}, ErrMissingFields
	}
	if fields.Deadline.Before(v.now()) {
		return model.NewTask{}, ErrDeadlinePast
	}
	if fields.Priority != "" && !fields.Priority.Valid() {
		return model.NewTask{}, ErrInvalidPriority
	}
	return model.NewTask{
		Title:       title,
		Description: description,
		Deadline:    model.NewTimestamp(fields.Deadline),
		Priority:    fields.Priority,
	}, nil
}

// ChangeStatus patches a task's status. DONE needs a completion remark of at
// most MaxRemarkWords words; both checks run before any request. An
// approved-and-locked rejection yields a dialog outcome instead of an error.
func (v *BoardView) ChangeStatus(ctx context.Context, taskID string, status model.Status, extra StatusExtra) (Outcome, error) {
	if !status.Valid() {
		return Outcome{}, ErrInvalidStatus
	}
	remark := strings.TrimSpace(extra.CompletionRemark)
	if status == model.StatusDone {
		if err := ValidateRemark(remark); err != nil {
			return Outcome{}, err
		}
	}

	patch := model.TaskPatch{Status: &status}
	if status == model.StatusDone {
		patch.CompletionRemark = &remark
	}

	v.setError("")
	backend, ident := v.client()
	err := backend.PatchTask(ctx, taskID, ident.ViewedUser(), patch)
	if api.IsApprovedLocked(err) {
		out := Outcome{
			Dialog:  DialogLocked,
			TaskID:  taskID,
			Target:  status,
			Message: api.Message(err, "Task is approved and locked"),
		}
		if ident.Admin() {
			out.Dialog = DialogConfirmOverride
		}
		log.Printf("[info] task %s locked, admin=%t", taskID, ident.Admin())
		return out, nil
	}
	if err != nil {
		v.setError(api.Message(err, "Failed to update task"))
		return Outcome{}, fmt.Errorf("update task: %w", err)
	}
	return Outcome{}, v.Load(ctx)
}

// Move is a drop of a task onto a status column. Dropping onto DONE only
// opens remark collection.
func (v *BoardView) Move(ctx context.Context, taskID string, target model.Status) (Outcome, error) {
	if !target.Valid() {
		return Outcome{}, ErrInvalidStatus
	}
	if task, ok := v.Task(taskID); ok && task.Status == target {
		return Outcome{}, nil
	}
	if target == model.StatusDone {
		return Outcome{Dialog: DialogRemark, TaskID: taskID, Target: target}, nil
	}
	return v.ChangeStatus(ctx, taskID, target, StatusExtra{})
}

func (v *BoardView) ChangePriority(ctx context.Context, taskID string, priority model.Priority) error {
	if !priority.Valid() {
		return ErrInvalidPriority
	}
	return v.mutate(ctx, "Failed to update priority", func(b Backend, ident Identity) error {
		return b.PatchTask(ctx, taskID, ident.ViewedUser(), model.TaskPatch{Priority: &priority})
	})
}

// ReviewTask resolves a PENDING_REVIEW task.
func (v *BoardView) ReviewTask(ctx context.Context, taskID string, approved bool, remark string) error {
	if err := v.requireAdmin(); err != nil {
		return err
	}
	remark = strings.TrimSpace(remark)
	return v.mutate(ctx, "Failed to review task", func(b Backend, ident Identity) error {
		return b.ReviewTask(ctx, taskID, ident.CurrentUser(), ident.ViewedUser(), approved, remark)
	})
}

// OverrideStatus moves a task past its approval lock with a reopen remark.
func (v *BoardView) OverrideStatus(ctx context.Context, taskID string, target model.Status, remark string) error {
	if err := v.requireAdmin(); err != nil {
		return err
	}
	if !target.Valid() {
		return ErrInvalidStatus
	}
	remark = strings.TrimSpace(remark)
	if err := ValidateRemark(remark); err != nil {
		return err
	}
	return v.mutate(ctx, "Failed to override task", func(b Backend, ident Identity) error {
		return b.OverrideStatus(ctx, taskID, ident.CurrentUser(), ident.ViewedUser(), model.StatusOverride{
			Status:           target,
			CompletionRemark: remark,
		})
	})
}

func (v *BoardView) Edit(ctx context.Context, taskID string, fields TaskFields) error {
	if err := v.requireAdmin(); err != nil {
		return err
	}
	title := strings.TrimSpace(fields.Title)
	if title == "" || fields.Deadline.IsZero() {
		return ErrMissingFields
	}
	if !fields.Priority.Valid() {
		return ErrInvalidPriority
	}
	edit := model.TaskEdit{
		Title:       title,
		Description: strings.TrimSpace(fields.Description),
		Deadline:    model.NewTimestamp(fields.Deadline),
		Priority:    fields.Priority,
	}
	return v.mutate(ctx, "Failed to edit task", func(b Backend, _ Identity) error {
		return b.EditTask(ctx, taskID, edit)
	})
}

func (v *BoardView) Delete(ctx context.Context, taskID string) error {
	if err := v.requireAdmin(); err != nil {
		return err
	}
	return v.mutate(ctx, "Failed to delete task", func(b Backend, ident Identity) error {
		return b.DeleteTask(ctx, taskID, ident.ViewedUser(), ident.CurrentUser())
	})
}
