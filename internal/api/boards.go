package api

import (
	"context"
	"net/http"
	"net/url"

	"kanban-planner/internal/model"
)

func (c *Client) ListBoards(ctx context.Context, userID string) ([]model.Board, error) {
	var boards []model.Board
	if err := c.do(ctx, http.MethodGet, "/boards/user/"+url.PathEscape(userID), nil, nil, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

func (c *Client) CreateBoard(ctx context.Context, userID, name string) error {
	body := struct {
		Name string `json:"name"`
	}{Name: name}
	return c.do(ctx, http.MethodPost, "/boards", url.Values{"userId": {userID}}, body, nil)
}

// ListUsers is admin-only on the backend.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListColumns returns the physical columns of a board, each carrying its tasks.
func (c *Client) ListColumns(ctx context.Context, userID, boardID string) ([]model.Column, error) {
	var columns []model.Column
	query := url.Values{"userId": {userID}, "boardId": {boardID}}
	if err := c.do(ctx, http.MethodGet, "/columns", query, nil, &columns); err != nil {
		return nil, err
	}
	return columns, nil
}
