package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kanban-planner/internal/model"
	"kanban-planner/internal/service"
)

type confirmationAction int

const (
	actionOverride confirmationAction = iota + 1
	actionDelete
)

type confirmationRequest struct {
	action confirmationAction
	taskID string
	target model.Status
	title  string
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	b.ackCallback(cb)
	if cb.Message == nil || cb.Message.Chat == nil || !cb.Message.Chat.IsPrivate() {
		return nil
	}
	chatID := cb.Message.Chat.ID

	kind, rest, _ := strings.Cut(cb.Data, ":")
	log.Printf("[info] callback %s from %d", kind, chatID)

	switch kind {
	case "board":
		return b.openBoardByID(ctx, chatID, rest)
	case "user":
		return b.switchUser(ctx, chatID, rest)
	case "task":
		return b.sendTaskCard(ctx, chatID, rest)
	case "move":
		taskID, status, ok := strings.Cut(rest, ":")
		if !ok {
			return nil
		}
		return b.moveTask(ctx, chatID, taskID, model.Status(status))
	case "prio":
		taskID, priority, ok := strings.Cut(rest, ":")
		if !ok {
			return nil
		}
		return b.changePriority(ctx, chatID, taskID, model.Priority(priority))
	case "review":
		taskID, verdict, ok := strings.Cut(rest, ":")
		if !ok {
			return nil
		}
		return b.startReview(ctx, chatID, taskID, verdict == "approve")
	case "edit":
		return b.startEditAsAdmin(ctx, chatID, rest)
	case "delete":
		return b.askDelete(ctx, chatID, rest)
	case "confirm":
		return b.handleConfirm(ctx, chatID)
	case "cancel":
		return b.handleDismiss(ctx, chatID)
	case "page":
		page, err := strconv.Atoi(rest)
		if err != nil {
			return nil
		}
		return b.showBoardPage(ctx, chatID, page)
	case "refresh":
		return b.handleShowBoard(ctx, chatID)
	case "newtask":
		return b.startNewTask(ctx, chatID)
	case "newboard":
		return b.startNewBoard(ctx, chatID, "")
	default:
		return nil
	}
}

func (b *Bot) moveTask(ctx context.Context, chatID int64, taskID string, target model.Status) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	b.resetDialogs(chatID)
	out, err := ob.view.Move(ctx, taskID, target)
	return b.handleOutcome(ctx, chatID, ob, out, err)
}

func (b *Bot) changePriority(ctx context.Context, chatID int64, taskID string, priority model.Priority) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	return b.afterMutation(ctx, chatID, ob, ob.view.ChangePriority(ctx, taskID, priority), "Failed to update priority")
}

func (b *Bot) startEditAsAdmin(ctx context.Context, chatID int64, taskID string) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	if !ob.view.IsAdmin() {
		return b.replyError(ctx, chatID, service.ErrAdminOnly, "")
	}
	b.resetDialogs(chatID)
	return b.startEdit(ctx, chatID, taskID)
}

func (b *Bot) askDelete(ctx context.Context, chatID int64, taskID string) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	if !ob.view.IsAdmin() {
		return b.replyError(ctx, chatID, service.ErrAdminOnly, "")
	}
	task, ok := ob.view.Task(taskID)
	if !ok {
		return b.sendText(chatID, "Task not found. It may have been deleted; see /board.")
	}
	b.resetDialogs(chatID)
	b.setConfirmation(chatID, confirmationRequest{action: actionDelete, taskID: taskID, title: task.Title})
	text := fmt.Sprintf("Are you sure you want to delete \"%s\"? This action cannot be undone.", escape(task.Title))
	return b.sendWithReplyMarkup(chatID, text, confirmInline("Delete", "Cancel"))
}

func (b *Bot) handleConfirm(ctx context.Context, chatID int64) error {
	req, ok := b.getConfirmation(chatID)
	if !ok {
		return b.sendText(chatID, "Nothing to confirm.")
	}
	b.clearConfirmation(chatID)

	switch req.action {
	case actionOverride:
		b.setConversation(chatID, &conversationState{stage: stageReopenRemark, taskID: req.taskID, target: req.target})
		return b.sendWithReplyMarkup(chatID, reopenRemarkPrompt, cancelKeyboard())
	case actionDelete:
		ob, err := b.requireBoard(ctx, chatID)
		if ob == nil {
			return err
		}
		err = ob.view.Delete(ctx, req.taskID)
		if err == nil {
			log.Printf("[info] task %q deleted chat=%d", req.title, chatID)
		}
		return b.afterMutation(ctx, chatID, ob, err, "Failed to delete task")
	default:
		return nil
	}
}

// handleDismiss closes a confirmation or notice and leaves the board as it was.
func (b *Bot) handleDismiss(ctx context.Context, chatID int64) error {
	b.resetDialogs(chatID)
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	if ob := b.boardView(chatID, session); ob != nil {
		return b.sendBoard(chatID, ob)
	}
	return b.sendText(chatID, "Cancelled.")
}
