package bot

import (
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kanban-planner/internal/model"
)

const (
	btnSkip         = "⏭️ Skip"
	btnYes          = "Yes"
	btnNo           = "No"
	btnCancelDialog = "⏪ Cancel"

	menuLabelBoards  = "🗂 Boards"
	menuLabelBoard   = "📋 Board"
	menuLabelProfile = "👤 Profile"
	menuLabelHelp    = "ℹ️ Help"
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelBoards),
			tgbotapi.NewKeyboardButton(menuLabelBoard),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelProfile),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard(withSkip bool) tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		row = append(row, tgbotapi.NewKeyboardButton(string(p)))
	}
	last := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnCancelDialog)}
	if withSkip {
		last = append([]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnSkip)}, last...)
	}
	kb := tgbotapi.NewReplyKeyboard(row, last)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmInline(yes, no string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(yes, "confirm:"),
			tgbotapi.NewInlineKeyboardButtonData(no, "cancel:"),
		),
	)
}

func okInline() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("OK", "cancel:"),
		),
	)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isYesInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "yes" || value == "y"
}

func isNoInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "no" || value == "n"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
