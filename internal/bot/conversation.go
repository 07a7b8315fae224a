package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
	"kanban-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageLoginUsername
	stageLoginPassword
	stageRegisterUsername
	stageRegisterPassword
	stageRegisterConfirm
	stageRegisterAdmin
	stageBoardName
	stageTaskTitle
	stageTaskDescription
	stageTaskDeadline
	stageTaskPriority
	stageCompletionRemark
	stageReopenRemark
	stageReviewRemark
	stageEditTitle
	stageEditDescription
	stageEditDeadline
	stageEditPriority
)

const (
	completionRemarkPrompt = "✍️ <b>Completion remark (max 20 words)</b>\nSend it to submit &amp; mark Done."
	reopenRemarkPrompt     = "✍️ <b>Task reopen reason (max 20 words)</b>"
	deadlineHint           = "Use <code>2025-11-30 18:00</code> or <code>2025-11-30</code>."
)

type conversationState struct {
	stage    conversationStage
	username string
	register service.RegisterInput
	task     service.TaskFields
	taskID   string
	target   model.Status
	approved bool
}

func (b *Bot) startLogin(chatID int64) error {
	b.resetDialogs(chatID)
	b.setConversation(chatID, &conversationState{stage: stageLoginUsername})
	return b.sendWithReplyMarkup(chatID, "🔐 <b>Kanban Login</b>\nUsername?", cancelKeyboard())
}

func (b *Bot) startRegister(chatID int64) error {
	b.resetDialogs(chatID)
	b.setConversation(chatID, &conversationState{stage: stageRegisterUsername})
	return b.sendWithReplyMarkup(chatID, "🆕 <b>Create your workspace</b>\nPick a username.", cancelKeyboard())
}

func (b *Bot) startNewTask(ctx context.Context, chatID int64) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	if !ob.view.IsAdmin() {
		return b.replyError(ctx, chatID, service.ErrAdminOnly, "")
	}
	b.resetDialogs(chatID)
	b.setConversation(chatID, &conversationState{stage: stageTaskTitle})
	return b.sendWithReplyMarkup(chatID, "🆕 New task.\n<b>Step 1:</b> title?", cancelKeyboard())
}

func (b *Bot) startEdit(ctx context.Context, chatID int64, taskID string) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	task, ok := ob.view.Task(taskID)
	if !ok {
		return b.sendText(chatID, "Task not found. It may have been deleted; see /board.")
	}
	state := &conversationState{stage: stageEditTitle, taskID: taskID}
	state.task = service.TaskFields{Title: task.Title, Description: task.Description, Priority: task.Priority}
	if task.Deadline != nil {
		state.task.Deadline = task.Deadline.In(time.Local)
	}
	b.setConversation(chatID, state)
	text := fmt.Sprintf("✏️ <b>Edit task</b>\nTitle (now: %s)?", escape(task.Title))
	return b.sendWithReplyMarkup(chatID, text, skipKeyboard())
}

func (b *Bot) startReview(ctx context.Context, chatID int64, taskID string, approved bool) error {
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	if !ob.view.IsAdmin() {
		return b.replyError(ctx, chatID, service.ErrAdminOnly, "")
	}
	b.setConversation(chatID, &conversationState{stage: stageReviewRemark, taskID: taskID, approved: approved})
	verb := "Approve"
	if !approved {
		verb = "Reject"
	}
	return b.sendWithReplyMarkup(chatID, fmt.Sprintf("%s task. Remark for the user?", verb), skipKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	state := b.getConversation(chatID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageLoginUsername:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "Username?", cancelKeyboard())
		}
		state.username = text
		state.stage = stageLoginPassword
		return b.sendWithReplyMarkup(chatID, "Password?", cancelKeyboard())
	case stageLoginPassword:
		b.deleteMessage(chatID, msg.MessageID)
		return b.finishLogin(ctx, chatID, state.username, msg.Text)
	case stageRegisterUsername:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "Pick a username.", cancelKeyboard())
		}
		state.register.Username = text
		state.stage = stageRegisterPassword
		return b.sendWithReplyMarkup(chatID, "Password?", cancelKeyboard())
	case stageRegisterPassword:
		b.deleteMessage(chatID, msg.MessageID)
		state.register.Password = msg.Text
		state.stage = stageRegisterConfirm
		return b.sendWithReplyMarkup(chatID, "Confirm password.", cancelKeyboard())
	case stageRegisterConfirm:
		b.deleteMessage(chatID, msg.MessageID)
		state.register.ConfirmPassword = msg.Text
		if state.register.Password != state.register.ConfirmPassword {
			state.stage = stageRegisterPassword
			return b.sendWithReplyMarkup(chatID, "⚠️ Passwords do not match\nPassword?", cancelKeyboard())
		}
		state.stage = stageRegisterAdmin
		return b.sendWithReplyMarkup(chatID, "Register as admin?", yesNoKeyboard())
	case stageRegisterAdmin:
		switch {
		case isYesInput(text):
			state.register.Admin = true
		case isNoInput(text):
			state.register.Admin = false
		default:
			return b.sendWithReplyMarkup(chatID, "Answer Yes or No.", yesNoKeyboard())
		}
		return b.finishRegister(ctx, chatID, state.register)
	case stageBoardName:
		session, err := b.session(ctx, chatID)
		if session == nil {
			return err
		}
		return b.createBoard(ctx, chatID, session, text)
	case stageTaskTitle:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The title is required.", cancelKeyboard())
		}
		state.task.Title = text
		state.stage = stageTaskDescription
		return b.sendWithReplyMarkup(chatID, "<b>Step 2:</b> description?", cancelKeyboard())
	case stageTaskDescription:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The description is required.", cancelKeyboard())
		}
		state.task.Description = text
		state.stage = stageTaskDeadline
		return b.sendWithReplyMarkup(chatID, "<b>Step 3:</b> deadline? "+deadlineHint, cancelKeyboard())
	case stageTaskDeadline:
		deadline, err := parseDeadline(text, time.Now())
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "⚠️ "+escape(err.Error())+" "+deadlineHint, cancelKeyboard())
		}
		state.task.Deadline = deadline
		state.stage = stageTaskPriority
		return b.sendWithReplyMarkup(chatID, "<b>Step 4:</b> priority?", priorityKeyboard(true))
	case stageTaskPriority:
		if !isSkipInput(text) {
			priority, ok := parsePriority(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick LOW, MEDIUM or HIGH.", priorityKeyboard(true))
			}
			state.task.Priority = priority
		}
		return b.finishCreateTask(ctx, chatID, state.task)
	case stageCompletionRemark, stageReopenRemark:
		return b.handleRemark(ctx, chatID, state, text)
	case stageReviewRemark:
		remark := text
		if isSkipInput(text) {
			remark = ""
		}
		return b.finishReview(ctx, chatID, state.taskID, state.approved, remark)
	case stageEditTitle:
		if !isSkipInput(text) && text != "" {
			state.task.Title = text
		}
		state.stage = stageEditDescription
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Description (now: %s)?", escape(orDash(state.task.Description))), skipKeyboard())
	case stageEditDescription:
		if !isSkipInput(text) {
			state.task.Description = text
		}
		state.stage = stageEditDeadline
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Deadline (now: %s)? %s", formatDeadline(state.task.Deadline), deadlineHint), skipKeyboard())
	case stageEditDeadline:
		if !isSkipInput(text) {
			deadline, err := parseDeadline(text, time.Time{})
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "⚠️ "+escape(err.Error())+" "+deadlineHint, skipKeyboard())
			}
			state.task.Deadline = deadline
		}
		state.stage = stageEditPriority
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Priority (now: %s)?", orDash(string(state.task.Priority))), priorityKeyboard(true))
	case stageEditPriority:
		if !isSkipInput(text) {
			priority, ok := parsePriority(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick LOW, MEDIUM or HIGH.", priorityKeyboard(true))
			}
			state.task.Priority = priority
		}
		if state.task.Priority == "" {
			state.task.Priority = model.PriorityMedium
		}
		return b.finishEdit(ctx, chatID, state.taskID, state.task)
	default:
		b.clearConversation(chatID)
		return b.sendText(chatID, "Input reset. Start again from /help.")
	}
}

func (b *Bot) finishLogin(ctx context.Context, chatID int64, username, password string) error {
	b.clearConversation(chatID)
	session, err := b.auth.Login(ctx, chatID, username, password)
	if err != nil {
		log.Printf("login chat=%d: %v", chatID, err)
		if errors.Is(err, service.ErrNoUserID) {
			return b.sendText(chatID, "⚠️ Login succeeded but the server did not say who you are.")
		}
		var apiErr *api.Error
		if errors.As(err, &apiErr) || errors.Is(err, service.ErrMissingFields) {
			return b.sendText(chatID, "⚠️ Login failed. Check username/password.")
		}
		return b.sendText(chatID, "⚠️ Login failed. Try again later.")
	}
	b.setOpenBoard(chatID, nil)
	if err := b.sendText(chatID, fmt.Sprintf("✅ Signed in as <b>%s</b>.", escape(session.Username))); err != nil {
		return err
	}
	return b.handleBoards(ctx, chatID)
}

func (b *Bot) finishRegister(ctx context.Context, chatID int64, input service.RegisterInput) error {
	b.clearConversation(chatID)
	if err := b.auth.Register(ctx, input); err != nil {
		log.Printf("register chat=%d: %v", chatID, err)
		return b.replyError(ctx, chatID, err, "Registration failed")
	}
	return b.sendText(chatID, "✅ Account created. Use /login to sign in.")
}

func (b *Bot) finishCreateTask(ctx context.Context, chatID int64, fields service.TaskFields) error {
	b.clearConversation(chatID)
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	err = ob.view.CreateTask(ctx, fields)
	if err == nil {
		log.Printf("[info] task %q created on board %s chat=%d", fields.Title, ob.view.BoardID(), chatID)
	}
	return b.afterMutation(ctx, chatID, ob, err, "Failed to create task")
}

// handleRemark submits a completion or reopen remark. Remarks over the word
// cap are refused here and never sent.
func (b *Bot) handleRemark(ctx context.Context, chatID int64, state *conversationState, text string) error {
	prompt := completionRemarkPrompt
	if state.stage == stageReopenRemark {
		prompt = reopenRemarkPrompt
	}
	if words := service.CountWords(text); words == 0 {
		return b.sendWithReplyMarkup(chatID, "A remark is required.\n"+prompt, cancelKeyboard())
	} else if words > service.MaxRemarkWords {
		reply := fmt.Sprintf("⚠️ That is %d words; the limit is %d. For example:\n<i>%s</i>\n%s",
			words, service.MaxRemarkWords, escape(service.LimitWords(text, service.MaxRemarkWords)), prompt)
		return b.sendWithReplyMarkup(chatID, reply, cancelKeyboard())
	}

	b.clearConversation(chatID)
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	if state.stage == stageReopenRemark {
		err := ob.view.OverrideStatus(ctx, state.taskID, state.target, text)
		if err == nil {
			log.Printf("[info] task %s reopened chat=%d", state.taskID, chatID)
		}
		return b.afterMutation(ctx, chatID, ob, err, "Failed to override task")
	}
	out, err := ob.view.ChangeStatus(ctx, state.taskID, state.target, service.StatusExtra{CompletionRemark: text})
	return b.handleOutcome(ctx, chatID, ob, out, err)
}

func (b *Bot) finishReview(ctx context.Context, chatID int64, taskID string, approved bool, remark string) error {
	b.clearConversation(chatID)
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	return b.afterMutation(ctx, chatID, ob, ob.view.ReviewTask(ctx, taskID, approved, remark), "Failed to review task")
}

func (b *Bot) finishEdit(ctx context.Context, chatID int64, taskID string, fields service.TaskFields) error {
	b.clearConversation(chatID)
	ob, err := b.requireBoard(ctx, chatID)
	if ob == nil {
		return err
	}
	return b.afterMutation(ctx, chatID, ob, ob.view.Edit(ctx, taskID, fields), "Failed to edit task")
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.out.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Printf("delete message: %v", err)
	}
}

var deadlineLayouts = []string{"2006-01-02 15:04", model.LocalMinuteLayout, "2006-01-02"}

// parseDeadline reads a local deadline. Date-only input means the end of that
// day. A non-zero notBefore rejects past deadlines.
func parseDeadline(raw string, notBefore time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range deadlineLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.Local)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			parsed = parsed.Add(23*time.Hour + 59*time.Minute)
		}
		if !notBefore.IsZero() && parsed.Before(notBefore) {
			return time.Time{}, service.ErrDeadlinePast
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("cannot read the date %q", raw)
}

func parsePriority(raw string) (model.Priority, bool) {
	p := model.Priority(strings.ToUpper(strings.TrimSpace(raw)))
	return p, p.Valid()
}
