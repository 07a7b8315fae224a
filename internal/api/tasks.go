package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"kanban-planner/internal/model"
)

func taskPath(taskID string) string {
	return "/tasks/" + url.PathEscape(taskID)
}

// CreateTask puts a new task on the user's board; the backend places it in TODO.
func (c *Client) CreateTask(ctx context.Context, creatorID, userID, boardID string, task model.NewTask) error {
	query := url.Values{
		"creatorId": {creatorID},
		"userId":    {userID},
		"boardId":   {boardID},
	}
	return c.do(ctx, http.MethodPost, "/tasks", query, task, nil)
}

// PatchTask changes status, priority or completion remark.
func (c *Client) PatchTask(ctx context.Context, taskID, userID string, patch model.TaskPatch) error {
	return c.do(ctx, http.MethodPatch, taskPath(taskID), url.Values{"userId": {userID}}, patch, nil)
}

// OverrideStatus moves a task regardless of its approval lock.
func (c *Client) OverrideStatus(ctx context.Context, taskID, adminID, userID string, override model.StatusOverride) error {
	query := url.Values{"adminId": {adminID}, "userId": {userID}}
	return c.do(ctx, http.MethodPatch, taskPath(taskID)+"/override-status", query, override, nil)
}

func (c *Client) ReviewTask(ctx context.Context, taskID, adminID, userID string, approved bool, remark string) error {
	query := url.Values{
		"adminId":  {adminID},
		"userId":   {userID},
		"approved": {strconv.FormatBool(approved)},
		"remark":   {remark},
	}
	return c.do(ctx, http.MethodPatch, taskPath(taskID)+"/review", query, nil, nil)
}

func (c *Client) EditTask(ctx context.Context, taskID string, edit model.TaskEdit) error {
	return c.do(ctx, http.MethodPatch, taskPath(taskID), nil, edit, nil)
}

func (c *Client) DeleteTask(ctx context.Context, taskID, userID, adminID string) error {
	query := url.Values{"userId": {userID}, "adminId": {adminID}}
	return c.do(ctx, http.MethodDelete, taskPath(taskID), query, nil, nil)
}
