package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
)

const lockedMessage = "Task is approved and locked. Only admin can move it."

func ownerSession() *model.Session {
	return &model.Session{ChatID: 1, Token: "user-token", UserID: "u1", ActiveUserID: "u1"}
}

func adminSession(active string) *model.Session {
	return &model.Session{ChatID: 2, Token: "admin-token", UserID: "a1", IsAdmin: true, ActiveUserID: active}
}

func approvedBoard() []model.Column {
	return []model.Column{
		{ID: "c1", BoardID: "b1", Tasks: []model.Task{
			{ID: "t1", Title: "Ship release", Status: model.StatusDone, ApprovalStatus: model.ApprovalApproved, CompletionRemark: "shipped"},
			{ID: "t2", Title: "Write docs", Status: model.StatusTodo},
		}},
	}
}

func loadedView(t *testing.T, backend *fakeBackend, ident Identity) *BoardView {
	t.Helper()
	view := NewBoardView(backend.factory(), ident, "b1")
	require.NoError(t, view.Load(context.Background()))
	return view
}

func TestChangeStatusToDoneRequiresRemark(t *testing.T) {
	for _, remark := range []string{"", "   \t\n"} {
		backend := newFakeBackend()
		view := NewBoardView(backend.factory(), ownerSession(), "b1")

		_, err := view.ChangeStatus(context.Background(), "t2", model.StatusDone, StatusExtra{CompletionRemark: remark})
		require.ErrorIs(t, err, ErrRemarkRequired)
		assert.Empty(t, backend.calls, "no request may be sent")
	}
}

func TestChangeStatusRemarkWordLimit(t *testing.T) {
	twenty := strings.TrimSpace(strings.Repeat("word ", 20))
	twentyOne := twenty + " extra"

	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := NewBoardView(backend.factory(), ownerSession(), "b1")

	_, err := view.ChangeStatus(context.Background(), "t2", model.StatusDone, StatusExtra{CompletionRemark: twentyOne})
	require.ErrorIs(t, err, ErrRemarkTooLong)
	assert.Zero(t, backend.count("PatchTask"))

	_, err = view.ChangeStatus(context.Background(), "t2", model.StatusDone, StatusExtra{CompletionRemark: twenty})
	require.NoError(t, err)
	require.Len(t, backend.patches, 1)
	assert.Equal(t, twenty, *backend.patches[0].CompletionRemark)
	assert.Equal(t, 20, CountWords(*backend.patches[0].CompletionRemark))

	task, ok := view.Task("t2")
	require.True(t, ok)
	assert.Equal(t, model.StatusDone, task.Status)
	assert.Equal(t, model.ApprovalPending, task.ApprovalStatus)
}

func TestEmptyBoardHasEmptyBuckets(t *testing.T) {
	for name, columns := range map[string][]model.Column{
		"no columns":    nil,
		"empty columns": {{ID: "c1"}, {ID: "c2", Tasks: []model.Task{}}},
	} {
		t.Run(name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.columns["u1"] = columns
			view := loadedView(t, backend, ownerSession())

			buckets := view.Buckets()
			require.Len(t, buckets, 3)
			for _, status := range model.Statuses {
				assert.NotNil(t, buckets[status])
				assert.Empty(t, buckets[status])
			}
			assert.Empty(t, view.Error())
		})
	}
}

func TestBucketsIgnoreColumnLayout(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = []model.Column{
		{ID: "anything", Tasks: []model.Task{
			{ID: "a", Status: model.StatusDone},
			{ID: "b", Status: model.StatusTodo},
		}},
		{ID: "else", Tasks: []model.Task{
			{ID: "c", Status: model.StatusInProgress},
			{ID: "d", Status: model.StatusTodo},
			{ID: "e", Status: "ARCHIVED"},
		}},
	}
	view := loadedView(t, backend, ownerSession())

	buckets := view.Buckets()
	ids := func(tasks []model.Task) []string {
		var out []string
		for _, task := range tasks {
			out = append(out, task.ID)
		}
		return out
	}
	assert.Equal(t, []string{"b", "d"}, ids(buckets[model.StatusTodo]))
	assert.Equal(t, []string{"c"}, ids(buckets[model.StatusInProgress]))
	assert.Equal(t, []string{"a"}, ids(buckets[model.StatusDone]))
}

func TestNonAdminLockedTaskOpensInfoDialog(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, ownerSession())
	before := view.Tasks()
	backend.setErr("PatchTask", &api.Error{Status: 409, Message: lockedMessage})

	out, err := view.Move(context.Background(), "t1", model.StatusTodo)
	require.NoError(t, err)

	assert.Equal(t, DialogLocked, out.Dialog)
	assert.Equal(t, lockedMessage, out.Message)
	assert.Equal(t, 1, backend.count("ListColumns"), "no reload after a lock")
	assert.Zero(t, backend.count("OverrideStatus"))
	assert.Equal(t, before, view.Tasks())
	assert.Empty(t, view.Error(), "lock is a dialog, not inline text")
}

func TestAdminOverrideReopensApprovedTask(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, adminSession("u1"))
	backend.setErr("PatchTask", &api.Error{Status: 400, Message: lockedMessage})

	out, err := view.ChangeStatus(context.Background(), "t1", model.StatusTodo, StatusExtra{})
	require.NoError(t, err)
	require.Equal(t, DialogConfirmOverride, out.Dialog)
	assert.Equal(t, "t1", out.TaskID)
	assert.Equal(t, model.StatusTodo, out.Target)

	require.NoError(t, view.OverrideStatus(context.Background(), out.TaskID, out.Target, "fixing a bug"))

	calls := backend.callsOf("OverrideStatus")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"t1", "a1", "u1"}, calls[0].Args)
	require.Len(t, backend.overrides, 1)
	assert.Equal(t, model.StatusOverride{Status: model.StatusTodo, CompletionRemark: "fixing a bug"}, backend.overrides[0])
	assert.Equal(t, 2, backend.count("ListColumns"))

	task, ok := view.Task("t1")
	require.True(t, ok)
	assert.True(t, task.ApprovedReopened)
	assert.Equal(t, model.StatusTodo, task.Status)
}

func TestLockDetectionPrefersStructuredCode(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, ownerSession())
	backend.setErr("PatchTask", &api.Error{Status: 409, Code: api.CodeApprovedLocked, Message: "Locked"})

	out, err := view.ChangeStatus(context.Background(), "t1", model.StatusInProgress, StatusExtra{})
	require.NoError(t, err)
	assert.Equal(t, DialogLocked, out.Dialog)
	assert.Equal(t, "Locked", out.Message)
}

func TestOverrideValidatesReopenRemark(t *testing.T) {
	backend := newFakeBackend()
	view := NewBoardView(backend.factory(), adminSession("u1"), "b1")

	require.ErrorIs(t, view.OverrideStatus(context.Background(), "t1", model.StatusTodo, " "), ErrRemarkRequired)
	require.ErrorIs(t, view.OverrideStatus(context.Background(), "t1", model.StatusTodo, strings.Repeat("x ", 21)), ErrRemarkTooLong)
	assert.Empty(t, backend.calls)

	owner := NewBoardView(backend.factory(), ownerSession(), "b1")
	require.ErrorIs(t, owner.OverrideStatus(context.Background(), "t1", model.StatusTodo, "fixing a bug"), ErrAdminOnly)
	assert.Empty(t, backend.calls)
}

func TestMoveIntoDoneOpensRemarkCollection(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, ownerSession())

	out, err := view.Move(context.Background(), "t2", model.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Dialog: DialogRemark, TaskID: "t2", Target: model.StatusDone}, out)
	assert.Zero(t, backend.count("PatchTask"))
}

func TestMoveToSameStatusIsNoop(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, ownerSession())

	out, err := view.Move(context.Background(), "t2", model.StatusTodo)
	require.NoError(t, err)
	assert.Equal(t, DialogNone, out.Dialog)
	assert.Zero(t, backend.count("PatchTask"))
}

func TestMoveToInProgressPatchesAndReloads(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, ownerSession())

	_, err := view.Move(context.Background(), "t2", model.StatusInProgress)
	require.NoError(t, err)

	require.Len(t, backend.patches, 1)
	assert.Nil(t, backend.patches[0].CompletionRemark)
	assert.Equal(t, 2, backend.count("ListColumns"))
	assert.Len(t, view.Buckets()[model.StatusInProgress], 1)
}

func TestLoadFailureKeepsStaleColumns(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, ownerSession())

	backend.setErr("ListColumns", api.ErrTransport)
	require.Error(t, view.Load(context.Background()))

	assert.Equal(t, "Failed to load columns", view.Error())
	assert.Len(t, view.Tasks(), 2)

	backend.setErr("ListColumns", nil)
	require.NoError(t, view.Load(context.Background()))
	assert.Empty(t, view.Error())
}

func TestMutationErrorsAreInline(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := loadedView(t, backend, ownerSession())

	backend.setErr("PatchTask", &api.Error{Status: 400, Message: "WIP limit reached"})
	_, err := view.ChangeStatus(context.Background(), "t2", model.StatusInProgress, StatusExtra{})
	require.Error(t, err)
	assert.Equal(t, "WIP limit reached", view.Error())

	backend.setErr("PatchTask", api.ErrTransport)
	require.Error(t, view.ChangePriority(context.Background(), "t2", model.PriorityHigh))
	assert.Equal(t, "Failed to update priority", view.Error())

	backend.setErr("PatchTask", nil)
	require.NoError(t, view.ChangePriority(context.Background(), "t2", model.PriorityHigh))
	assert.Empty(t, view.Error(), "error is replaced on the next attempt")
}

func TestAdminOnlyOperationsGuarded(t *testing.T) {
	backend := newFakeBackend()
	view := NewBoardView(backend.factory(), ownerSession(), "b1")
	ctx := context.Background()
	fields := TaskFields{Title: "t", Description: "d", Deadline: time.Now().Add(time.Hour), Priority: model.PriorityLow}

	assert.ErrorIs(t, view.CreateTask(ctx, fields), ErrAdminOnly)
	assert.ErrorIs(t, view.ReviewTask(ctx, "t1", true, "ok"), ErrAdminOnly)
	assert.ErrorIs(t, view.Edit(ctx, "t1", fields), ErrAdminOnly)
	assert.ErrorIs(t, view.Delete(ctx, "t1"), ErrAdminOnly)
	assert.Empty(t, backend.calls)
}

func TestCreateTaskValidationAndScope(t *testing.T) {
	backend := newFakeBackend()
	view := NewBoardView(backend.factory(), adminSession("u1"), "b1")
	ctx := context.Background()
	deadline := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name   string
		fields TaskFields
		err    error
	}{
		{name: "missing title", fields: TaskFields{Description: "d", Deadline: deadline}, err: ErrMissingFields},
		{name: "missing description", fields: TaskFields{Title: "t", Deadline: deadline}, err: ErrMissingFields},
		{name: "missing deadline", fields: TaskFields{Title: "t", Description: "d"}, err: ErrMissingFields},
		{name: "past deadline", fields: TaskFields{Title: "t", Description: "d", Deadline: time.Now().Add(-time.Hour)}, err: ErrDeadlinePast},
		{name: "bad priority", fields: TaskFields{Title: "t", Description: "d", Deadline: deadline, Priority: "URGENT"}, err: ErrInvalidPriority},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, view.CreateTask(ctx, tt.fields), tt.err)
		})
	}
	assert.Empty(t, backend.calls)

	require.NoError(t, view.CreateTask(ctx, TaskFields{Title: " Plan ", Description: "Sprint", Deadline: deadline}))
	calls := backend.callsOf("CreateTask")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"a1", "u1", "b1"}, calls[0].Args)
	assert.Equal(t, "Plan", backend.created[0].Title)
	assert.Empty(t, backend.created[0].Priority, "empty priority leaves the backend default")
	assert.Equal(t, 1, backend.count("ListColumns"))
}

func TestReviewEditDeleteReload(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	view := NewBoardView(backend.factory(), adminSession("u1"), "b1")
	ctx := context.Background()

	require.NoError(t, view.ReviewTask(ctx, "t1", false, " needs tests "))
	require.NoError(t, view.Edit(ctx, "t2", TaskFields{Title: "Docs", Description: "", Deadline: time.Now(), Priority: model.PriorityMedium}))
	require.NoError(t, view.Delete(ctx, "t2"))

	assert.Equal(t, []string{"t1", "a1", "u1", "rejected", "needs tests"}, backend.callsOf("ReviewTask")[0].Args)
	assert.Equal(t, []string{"t2", "Docs"}, backend.callsOf("EditTask")[0].Args)
	assert.Equal(t, []string{"t2", "u1", "a1"}, backend.callsOf("DeleteTask")[0].Args)
	assert.Equal(t, 3, backend.count("ListColumns"))
}

func TestRebindDropsOtherUsersColumns(t *testing.T) {
	backend := newFakeBackend()
	backend.columns["u1"] = approvedBoard()
	session := adminSession("u1")
	view := loadedView(t, backend, session)
	require.Len(t, view.Tasks(), 2)

	other := adminSession("u2")
	view.Rebind(other)
	assert.Empty(t, view.Tasks())
	assert.False(t, view.IsOwner())

	view.Rebind(adminSession("a1"))
	assert.True(t, view.IsOwner())
}

func TestViewUsesSessionToken(t *testing.T) {
	backend := newFakeBackend()
	_ = loadedView(t, backend, ownerSession())
	assert.Equal(t, []string{"user-token"}, backend.tokens)
}
