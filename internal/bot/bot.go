package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
	"kanban-planner/internal/service"
)

// sender is the part of the Telegram API the bot writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type openBoard struct {
	view *service.BoardView
	name string
	page int
}

// Bot is the Kanban front end: every private chat is one client session.
type Bot struct {
	api     *tgbotapi.BotAPI
	out     sender
	auth    *service.AuthService
	boards  *service.BoardListService
	backend service.BackendFactory

	mu            sync.Mutex
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	open          map[int64]*openBoard
	boardNames    map[string]string
}

func New(token string, auth *service.AuthService, boards *service.BoardListService, backend service.BackendFactory) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", botAPI.Self.UserName)

	b := newBot(botAPI, auth, boards, backend)
	b.api = botAPI
	return b, nil
}

func newBot(out sender, auth *service.AuthService, boards *service.BoardListService, backend service.BackendFactory) *Bot {
	return &Bot{
		out:           out,
		auth:          auth,
		boards:        boards,
		backend:       backend,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		open:          make(map[int64]*openBoard),
		boardNames:    make(map[string]string),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if isCancelInput(msg.Text) || (msg.IsCommand() && msg.Command() == "cancel") {
		b.resetDialogs(chatID)
		return b.sendText(chatID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s", chatID, msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if b.hasConversation(chatID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(chatID).stage, chatID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(chatID, "I did not get that. Try /boards, or /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(chatID, helpText)
	case "login":
		return b.startLogin(chatID)
	case "register":
		return b.startRegister(chatID)
	case "logout":
		return b.handleLogout(ctx, chatID)
	case "boards":
		return b.handleBoards(ctx, chatID)
	case "newboard":
		return b.startNewBoard(ctx, chatID, msg.CommandArguments())
	case "users", "switch":
		return b.handleUsers(ctx, chatID)
	case "board":
		return b.handleShowBoard(ctx, chatID)
	case "newtask":
		return b.startNewTask(ctx, chatID)
	case "me":
		return b.handleProfile(ctx, chatID)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /login — sign in\n" +
	"• /register — create an account\n" +
	"• /boards — boards of the active user\n" +
	"• /newboard &lt;name&gt; — create a board\n" +
	"• /board — show the open board\n" +
	"• /newtask — add a task to the open board (admin)\n" +
	"• /users — switch the active user (admin)\n" +
	"• /me — your profile\n" +
	"• /logout — sign out\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>This is your Kanban board.</b>\n\n%s", escape(name), helpText)
	if _, err := b.auth.Session(ctx, msg.Chat.ID); err != nil {
		text += "\n\nStart with /login or /register."
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	switch strings.TrimSpace(msg.Text) {
	case menuLabelBoards:
		return true, b.handleBoards(ctx, chatID)
	case menuLabelBoard:
		return true, b.handleShowBoard(ctx, chatID)
	case menuLabelProfile:
		return true, b.handleProfile(ctx, chatID)
	case menuLabelHelp:
		return true, b.sendText(chatID, helpText)
	default:
		return false, nil
	}
}

// session returns the chat's live session, or nil after telling the user to log in.
func (b *Bot) session(ctx context.Context, chatID int64) (*model.Session, error) {
	session, err := b.auth.Session(ctx, chatID)
	if errors.Is(err, service.ErrNotAuthenticated) {
		return nil, b.sendText(chatID, "Please /login first.")
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// boardView returns the open board rebound to the current session.
func (b *Bot) boardView(chatID int64, session *model.Session) *openBoard {
	b.mu.Lock()
	defer b.mu.Unlock()
	ob := b.open[chatID]
	if ob != nil {
		ob.view.Rebind(session)
	}
	return ob
}

func (b *Bot) setOpenBoard(chatID int64, ob *openBoard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ob == nil {
		delete(b.open, chatID)
		return
	}
	b.open[chatID] = ob
}

func (b *Bot) rememberBoards(boards []model.Board) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, board := range boards {
		b.boardNames[board.ID] = board.Name
	}
}

func (b *Bot) boardName(boardID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name := b.boardNames[boardID]; name != "" {
		return name
	}
	return "Board"
}

func (b *Bot) resetDialogs(chatID int64) {
	b.clearConversation(chatID)
	b.clearConfirmation(chatID)
}

// replyError turns a failed operation into a chat message.
func (b *Bot) replyError(ctx context.Context, chatID int64, err error, fallback string) error {
	var text string
	switch {
	case errors.Is(err, service.ErrNotAuthenticated), api.IsUnauthorized(err):
		b.resetDialogs(chatID)
		b.setOpenBoard(chatID, nil)
		if logoutErr := b.auth.Logout(ctx, chatID); logoutErr != nil {
			log.Printf("clear session %d: %v", chatID, logoutErr)
		}
		text = "Your session has expired. Please /login again."
	case errors.Is(err, service.ErrAdminOnly):
		text = "Only an admin can do that."
	case errors.Is(err, service.ErrRemarkRequired):
		text = "A remark is required."
	case errors.Is(err, service.ErrRemarkTooLong):
		text = fmt.Sprintf("A remark is limited to %d words.", service.MaxRemarkWords)
	case errors.Is(err, service.ErrMissingFields):
		text = "Title, description and deadline are required."
	case errors.Is(err, service.ErrDeadlinePast):
		text = "The deadline must not be in the past."
	case errors.Is(err, service.ErrBlankName):
		text = "Board name must not be empty."
	case errors.Is(err, service.ErrPasswordMismatch):
		text = "Passwords do not match"
	default:
		text = api.Message(err, fallback)
	}
	return b.sendText(chatID, "⚠️ "+escape(text))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.out.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func (b *Bot) getConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[chatID]
	return req, ok
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[chatID] = req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, chatID)
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) hasConversation(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[chatID]
	return ok
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}
