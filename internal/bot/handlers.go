package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
	"kanban-planner/internal/service"
)

func (b *Bot) handleLogout(ctx context.Context, chatID int64) error {
	b.resetDialogs(chatID)
	b.setOpenBoard(chatID, nil)
	if err := b.auth.Logout(ctx, chatID); err != nil {
		return err
	}
	log.Printf("[info] logout chat=%d", chatID)
	return b.sendText(chatID, "👋 You are logged out. Use /login to sign in again.")
}

func (b *Bot) handleBoards(ctx context.Context, chatID int64) error {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	boards, err := b.boards.ListBoards(ctx, session)
	return b.sendBoardList(ctx, chatID, session, boards, err)
}

func (b *Bot) sendBoardList(ctx context.Context, chatID int64, session *model.Session, boards []model.Board, listErr error) error {
	if listErr != nil {
		log.Printf("list boards chat=%d: %v", chatID, listErr)
		if api.IsUnauthorized(listErr) {
			return b.replyError(ctx, chatID, listErr, "")
		}
	}
	b.rememberBoards(boards)
	text, markup := renderBoardList(session, b.viewedUserLabel(ctx, session), boards, listErr)
	return b.sendWithReplyMarkup(chatID, text, markup)
}

// viewedUserLabel names the active user when an admin looks at someone else's boards.
func (b *Bot) viewedUserLabel(ctx context.Context, session *model.Session) string {
	if session.ViewedUser() == session.CurrentUser() {
		return ""
	}
	users, err := b.boards.ListUsers(ctx, session)
	if err == nil {
		for _, user := range users {
			if user.ID == session.ViewedUser() {
				return user.DisplayName()
			}
		}
	}
	return session.ViewedUser()
}

func (b *Bot) startNewBoard(ctx context.Context, chatID int64, args string) error {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	if strings.TrimSpace(args) != "" {
		return b.createBoard(ctx, chatID, session, args)
	}
	b.setConversation(chatID, &conversationState{stage: stageBoardName})
	return b.sendWithReplyMarkup(chatID, "🆕 Name of the new board?", cancelKeyboard())
}

func (b *Bot) createBoard(ctx context.Context, chatID int64, session *model.Session, name string) error {
	boards, err := b.boards.CreateBoard(ctx, session, name)
	if errors.Is(err, service.ErrBlankName) {
		return b.replyError(ctx, chatID, err, "")
	}
	b.clearConversation(chatID)
	if err != nil {
		return b.replyError(ctx, chatID, err, "Failed to create board")
	}
	return b.sendBoardList(ctx, chatID, session, boards, nil)
}

func (b *Bot) handleUsers(ctx context.Context, chatID int64) error {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	users, err := b.boards.ListUsers(ctx, session)
	if err != nil {
		return b.replyError(ctx, chatID, err, "Failed to load users")
	}
	text, markup := renderUserList(session, users)
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) switchUser(ctx context.Context, chatID int64, userID string) error {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	var view *service.BoardView
	ob := b.boardView(chatID, session)
	if ob != nil {
		view = ob.view
	}

	boards, err := b.boards.SwitchActiveUser(ctx, session, userID, view)
	if errors.Is(err, service.ErrAdminOnly) || api.IsUnauthorized(err) {
		return b.replyError(ctx, chatID, err, "")
	}
	if sendErr := b.sendBoardList(ctx, chatID, session, boards, err); sendErr != nil {
		return sendErr
	}
	if ob != nil {
		b.mu.Lock()
		ob.page = 0
		b.mu.Unlock()
		return b.sendBoard(chatID, ob)
	}
	return nil
}

func (b *Bot) openBoardByID(ctx context.Context, chatID int64, boardID string) error {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	b.resetDialogs(chatID)
	ob := &openBoard{
		view: service.NewBoardView(b.backend, session, boardID),
		name: b.boardName(boardID),
	}
	b.setOpenBoard(chatID, ob)
	return b.loadAndSendBoard(ctx, chatID, ob)
}

func (b *Bot) handleShowBoard(ctx context.Context, chatID int64) error {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	ob := b.boardView(chatID, session)
	if ob == nil {
		return b.sendText(chatID, "No board is open. Pick one in /boards.")
	}
	return b.loadAndSendBoard(ctx, chatID, ob)
}

// loadAndSendBoard reloads the board and shows it. A rejected token ends the
// session instead of showing stale columns.
func (b *Bot) loadAndSendBoard(ctx context.Context, chatID int64, ob *openBoard) error {
	if err := ob.view.Load(ctx); err != nil {
		log.Printf("load board %s chat=%d: %v", ob.view.BoardID(), chatID, err)
		if api.IsUnauthorized(err) {
			return b.replyError(ctx, chatID, err, "")
		}
	}
	return b.sendBoard(chatID, ob)
}

func (b *Bot) showBoardPage(ctx context.Context, chatID int64, page int) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	b.mu.Lock()
	ob.page = page
	b.mu.Unlock()
	return b.sendBoard(chatID, ob)
}

func (b *Bot) sendBoard(chatID int64, ob *openBoard) error {
	b.mu.Lock()
	page := ob.page
	b.mu.Unlock()

	text, markup, page := renderBoard(ob.name, ob.view, page)

	b.mu.Lock()
	ob.page = page
	b.mu.Unlock()

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendTaskCard(ctx context.Context, chatID int64, taskID string) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	task, ok := ob.view.Task(taskID)
	if !ok {
		return b.sendText(chatID, "Task not found. It may have been deleted; see /board.")
	}
	text, markup := renderTaskCard(task, ob.view.IsOwner(), ob.view.IsAdmin())
	return b.sendWithReplyMarkup(chatID, text, markup)
}

// requireBoard returns the chat's open board, or nil after telling the user why not.
func (b *Bot) requireBoard(ctx context.Context, chatID int64) (*openBoard, error) {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return nil, err
	}
	ob := b.boardView(chatID, session)
	if ob == nil {
		return nil, b.sendText(chatID, "No board is open. Pick one in /boards.")
	}
	return ob, nil
}

// afterMutation re-renders the board, or reports an error that never reached the backend.
func (b *Bot) afterMutation(ctx context.Context, chatID int64, ob *openBoard, err error, fallback string) error {
	if err != nil && (ob.view.Error() == "" || api.IsUnauthorized(err)) {
		return b.replyError(ctx, chatID, err, fallback)
	}
	if err != nil {
		log.Printf("board %s chat=%d: %v", ob.view.BoardID(), chatID, err)
	}
	return b.sendBoard(chatID, ob)
}

// handleOutcome routes a status change result into its dialog.
func (b *Bot) handleOutcome(ctx context.Context, chatID int64, ob *openBoard, out service.Outcome, err error) error {
	if err != nil {
		return b.afterMutation(ctx, chatID, ob, err, "Failed to update task")
	}
	switch out.Dialog {
	case service.DialogRemark:
		b.setConversation(chatID, &conversationState{stage: stageCompletionRemark, taskID: out.TaskID, target: out.Target})
		return b.sendWithReplyMarkup(chatID, completionRemarkPrompt, cancelKeyboard())
	case service.DialogConfirmOverride:
		b.setConfirmation(chatID, confirmationRequest{action: actionOverride, taskID: out.TaskID, target: out.Target})
		text := fmt.Sprintf("<b>Move approved task?</b>\n%s\n\nReopening it needs a reason.", escape(out.Message))
		return b.sendWithReplyMarkup(chatID, text, confirmInline("Yes", "No"))
	case service.DialogLocked:
		text := fmt.Sprintf("<b>Task is locked</b>\n%s", escape(out.Message))
		return b.sendWithReplyMarkup(chatID, text, okInline())
	default:
		return b.sendBoard(chatID, ob)
	}
}

func (b *Bot) handleProfile(ctx context.Context, chatID int64) error {
	session, err := b.session(ctx, chatID)
	if session == nil {
		return err
	}
	return b.sendText(chatID, renderProfile(session))
}
