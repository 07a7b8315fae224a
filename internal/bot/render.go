package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kanban-planner/internal/model"
	"kanban-planner/internal/service"
)

const displayLayout = "2006-01-02 15:04"

// maxListButtons stays under Telegram's 100 inline buttons per message.
const maxListButtons = 90

var statusIcons = map[model.Status]string{
	model.StatusTodo:       "📝",
	model.StatusInProgress: "🚧",
	model.StatusDone:       "✅",
}

var priorityIcons = map[model.Priority]string{
	model.PriorityLow:    "🟢",
	model.PriorityMedium: "🟡",
	model.PriorityHigh:   "🔴",
}

func renderBoardList(session *model.Session, viewedLabel string, boards []model.Board, listErr error) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🗂 <b>Boards</b>")
	if viewedLabel != "" {
		sb.WriteString(fmt.Sprintf(" of <b>%s</b>", escape(viewedLabel)))
	}
	sb.WriteByte('\n')

	if listErr != nil {
		sb.WriteString(fmt.Sprintf("⚠️ %s\n", escape(service.BoardsErrorMessage(listErr))))
	} else if len(boards) == 0 {
		sb.WriteString("No boards yet.\n")
	}

	if len(boards) > maxListButtons {
		sb.WriteString(fmt.Sprintf("Showing the first %d of %d boards.\n", maxListButtons, len(boards)))
		boards = boards[:maxListButtons]
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, board := range boards {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 "+shortTitle(board.Name, 32), "board:"+board.ID),
		))
	}
	controls := []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("➕ New board", "newboard:")}
	if session.Admin() {
		sb.WriteString("\nAdmins can switch the active user with /users.")
	}
	rows = append(rows, controls)
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func renderUserList(session *model.Session, users []model.User) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("👥 <b>Users</b>\nPick whose boards to view.\n")
	if len(users) == 0 {
		sb.WriteString("No users found.\n")
	}

	if len(users) > maxListButtons {
		sb.WriteString(fmt.Sprintf("Showing the first %d of %d users.\n", maxListButtons, len(users)))
		users = users[:maxListButtons]
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, user := range users {
		label := user.DisplayName()
		if user.ID == session.ViewedUser() {
			label = "● " + label
		}
		if user.IsAdmin {
			label += " (admin)"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(shortTitle(label, 40), "user:"+user.ID),
		))
	}
	if len(rows) == 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh:"),
		))
	}
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// boardPageSize keeps one board message well inside Telegram's text and
// inline keyboard limits.
const boardPageSize = 15

// renderBoard lays out the three status columns of the cached board. Tasks
// are paged in column order; the returned page is clamped to the last one.
func renderBoard(name string, view *service.BoardView, page int) (string, tgbotapi.InlineKeyboardMarkup, int) {
	buckets := view.Buckets()
	total := 0
	for _, status := range model.Statuses {
		total += len(buckets[status])
	}
	pages := (total + boardPageSize - 1) / boardPageSize
	if pages == 0 {
		pages = 1
	}
	page = min(max(page, 0), pages-1)
	first, last := page*boardPageSize, (page+1)*boardPageSize

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 <b>%s</b>", escape(shortTitle(name, 64))))
	if pages > 1 {
		sb.WriteString(fmt.Sprintf(" · page %d/%d", page+1, pages))
	}
	sb.WriteByte('\n')
	if msg := view.Error(); msg != "" {
		sb.WriteString(fmt.Sprintf("⚠️ %s\n", escape(shortTitle(msg, 200))))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	index := 0
	for _, status := range model.Statuses {
		tasks := buckets[status]
		sb.WriteString(fmt.Sprintf("\n%s <b>%s</b> · %s\n", statusIcons[status], status.Label(), taskCount(len(tasks))))
		if len(tasks) == 0 {
			sb.WriteString("<i>No tasks in this column.</i>\n")
			continue
		}
		shown := 0
		for _, task := range tasks {
			if index >= first && index < last {
				sb.WriteString(formatTaskLine(task))
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(
						fmt.Sprintf("%s %s", statusIcons[status], shortTitle(task.Title, 28)),
						"task:"+task.ID,
					),
				))
				shown++
			}
			index++
		}
		if shown == 0 {
			sb.WriteString("<i>On other pages.</i>\n")
		}
	}

	if pages > 1 {
		var nav []tgbotapi.InlineKeyboardButton
		if page > 0 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀️ Prev", fmt.Sprintf("page:%d", page-1)))
		}
		if page < pages-1 {
			nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ▶️", fmt.Sprintf("page:%d", page+1)))
		}
		rows = append(rows, nav)
	}

	controls := []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh:")}
	if view.IsAdmin() {
		controls = append([]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("➕ New task", "newtask:")}, controls...)
	}
	rows = append(rows, controls)
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...), page
}

func taskCount(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}

func formatTaskLine(task model.Task) string {
	line := fmt.Sprintf("• %s %s", priorityIcons[task.Priority], escape(shortTitle(task.Title, 60)))
	if task.Deadline != nil {
		line += fmt.Sprintf(" · ⏰ %s", localTime(task.Deadline))
	}
	if chip := approvalChip(task); chip != "" {
		line += " · " + chip
	}
	return line + "\n"
}

func approvalChip(task model.Task) string {
	switch task.ApprovalStatus {
	case model.ApprovalPending:
		return "⏳ Waiting admin approval"
	case model.ApprovalApproved:
		return "🏁 Task completed"
	case model.ApprovalRejected:
		return "❌ Completion rejected"
	default:
		return ""
	}
}

// renderTaskCard shows a task with the controls the viewer may use. Move
// buttons go to owner and admin alike; the backend decides on locks.
func renderTaskCard(task model.Task, isOwner, isAdmin bool) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n", statusIcons[task.Status], escape(task.Title)))
	if task.ApprovedReopened {
		sb.WriteString("🔁 <i>Reopened after approval</i>\n")
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("📝 %s\n", escape(shortTitle(task.Description, 1500))))
	}
	sb.WriteString(fmt.Sprintf("Status: %s\n", task.Status.Label()))
	if task.Priority != "" {
		sb.WriteString(fmt.Sprintf("Priority: %s %s\n", priorityIcons[task.Priority], task.Priority))
	}
	if task.Deadline != nil {
		sb.WriteString(fmt.Sprintf("⏰ Deadline: %s\n", localTime(task.Deadline)))
	}
	if task.AssignedAt != nil {
		sb.WriteString(fmt.Sprintf("Assigned: %s\n", localTime(task.AssignedAt)))
	}
	if task.CompletionRemark != "" {
		prefix := "User remark: "
		if task.ApprovedReopened {
			prefix = "Task Reopened Reason: "
		}
		sb.WriteString(fmt.Sprintf("💬 %s%s\n", prefix, escape(task.CompletionRemark)))
	}
	if chip := approvalChip(task); chip != "" {
		sb.WriteString(chip + "\n")
	}
	if task.ApprovalStatus == model.ApprovalRejected && task.Status == model.StatusTodo {
		sb.WriteString("Not accepted by admin as done\n")
	}
	if !task.ApprovedReopened {
		if task.AdminApprovalRemark != "" {
			sb.WriteString(fmt.Sprintf("Admin approval remark: %s\n", escape(task.AdminApprovalRemark)))
		}
		if task.AdminRejectionRemark != "" {
			sb.WriteString(fmt.Sprintf("Admin rejection remark: %s\n", escape(task.AdminRejectionRemark)))
		}
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if isOwner || isAdmin {
		var moves []tgbotapi.InlineKeyboardButton
		for _, status := range model.Statuses {
			if status == task.Status {
				continue
			}
			moves = append(moves, tgbotapi.NewInlineKeyboardButtonData(
				"→ "+status.Label(), fmt.Sprintf("move:%s:%s", task.ID, status)))
		}
		rows = append(rows, moves)

		var prios []tgbotapi.InlineKeyboardButton
		for _, p := range model.Priorities {
			if p == task.Priority {
				continue
			}
			prios = append(prios, tgbotapi.NewInlineKeyboardButtonData(
				priorityIcons[p]+" "+string(p), fmt.Sprintf("prio:%s:%s", task.ID, p)))
		}
		rows = append(rows, prios)
	}
	if isAdmin {
		if task.ApprovalStatus == model.ApprovalPending {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("👍 Approve", fmt.Sprintf("review:%s:approve", task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("👎 Reject", fmt.Sprintf("review:%s:reject", task.ID)),
			))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Edit", "edit:"+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", "delete:"+task.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📋 Back to board", "refresh:"),
	))
	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func renderProfile(session *model.Session) string {
	name := strings.TrimSpace(session.Name)
	if name == "" {
		name = "Unnamed user"
	}
	role := "User"
	if session.Admin() {
		role = "Admin"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 <b>[%s] %s</b>\n", avatarInitial(session.Name, session.Username), escape(name)))
	if session.Username != "" {
		sb.WriteString(fmt.Sprintf("Username: %s\n", escape(session.Username)))
	}
	if session.Email != "" {
		sb.WriteString(fmt.Sprintf("Email: %s\n", escape(session.Email)))
	}
	if avatar := strings.TrimSpace(session.ProfilePictureURL); strings.HasPrefix(avatar, "https://") || strings.HasPrefix(avatar, "http://") {
		sb.WriteString(fmt.Sprintf("<a href=\"%s\">Profile picture</a>\n", escape(avatar)))
	}
	sb.WriteString(fmt.Sprintf("Role: %s", role))
	if session.ExpiresAt != nil {
		sb.WriteString(fmt.Sprintf("\nSession valid until %s", session.ExpiresAt.In(time.Local).Format(displayLayout)))
	}
	return sb.String()
}

func avatarInitial(name, username string) string {
	for _, v := range []string{name, username} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(v)
		return escape(string(unicode.ToUpper(r)))
	}
	return "U"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

func formatDeadline(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.In(time.Local).Format(displayLayout)
}

// localTime formats backend timestamps in the bot's zone; RFC 3339 values
// arrive in whatever offset the backend used.
func localTime(ts *model.Timestamp) string {
	return ts.In(time.Local).Format(displayLayout)
}
