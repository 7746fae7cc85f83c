package handler

import (
	"context"
	"fmt"
	"strings"

	"tg-appeals/internal/config"
	"tg-appeals/internal/logger"
	"tg-appeals/internal/models"
	"tg-appeals/internal/service"
	"tg-appeals/internal/storage"
)

// Appeals is the appeal lifecycle used by the command router.
// *service.AppealService implements it.
type Appeals interface {
	Submit(ctx context.Context, submitter service.Submitter, text string) (*models.Appeal, error)
	Approve(ctx context.Context, id uint, admin service.Admin) (*models.Appeal, service.UnbanResult, error)
	Reject(ctx context.Context, id uint, reason string, admin service.Admin) (*models.Appeal, error)
	Get(ctx context.Context, id uint) (*models.Appeal, error)
	ListPending(ctx context.Context) ([]*models.Appeal, error)
	RecentForUser(ctx context.Context, userID int64) ([]*models.Appeal, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

// Sender delivers HTML formatted messages.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
}

// User is the sender of a command.
type User struct {
	ID        int64
	Username  string
	FirstName string
}

// Request is a parsed command message.
type Request struct {
	ChatID    int64
	ChatType  string
	MessageID int
	From      *User
	// Command without the leading slash, lower case
	Command string
	// BotName is the @mention suffix of the command, if any
	BotName string
	// Payload is the text after the command token, trimmed
	Payload string
	Args    []string
	Text    string
	Edited  bool
}

// Handler routes commands to the appeal service and renders replies.
type Handler struct {
	appeals     Appeals
	sender      Sender
	adminChatID int64
	language    string
	community   string
	botUsername string
}

// New creates a command router for cfg.
func New(appeals Appeals, sender Sender, cfg *config.Config) *Handler {
	return &Handler{
		appeals:     appeals,
		sender:      sender,
		adminChatID: cfg.Bot.AdminGroupID,
		language:    cfg.Bot.Language,
		community:   cfg.Bot.CommunityName,
	}
}

// SetBotUsername makes the router ignore commands addressed to other bots.
func (h *Handler) SetBotUsername(username string) {
	h.botUsername = username
}

func (h *Handler) t(key string) string {
	return models.GetTranslation(h.language, key)
}

func (h *Handler) tf(key string, args ...interface{}) string {
	return fmt.Sprintf(h.t(key), args...)
}

func (h *Handler) reply(ctx context.Context, req Request, text string) error {
	if err := h.sender.Reply(ctx, req.ChatID, req.MessageID, text); err != nil {
		logger.Errorf("Failed to reply in chat %d: %v", req.ChatID, err)
		return err
	}
	return nil
}

func (h *Handler) isAdminChat(req Request) bool {
	return req.ChatID == h.adminChatID
}

// Handle dispatches one command. Unknown commands and admin commands outside
// the admin chat are ignored without a reply.
func (h *Handler) Handle(ctx context.Context, req Request) error {
	if req.From == nil {
		return nil
	}
	if req.BotName != "" && h.botUsername != "" && !strings.EqualFold(req.BotName, h.botUsername) {
		return nil
	}

	if req.Edited {
		if req.Command != "appeal" {
			return nil
		}
		return h.handleEditedAppeal(ctx, req)
	}

	switch req.Command {
	case "start", "help":
		return h.handleHelp(ctx, req)
	case "appeal":
		return h.handleAppeal(ctx, req)
	case "status":
		return h.handleStatus(ctx, req)
	}

	handler, ok := h.adminCommands()[req.Command]
	if !ok {
		return nil
	}
	if !h.isAdminChat(req) {
		logger.Debugf("Ignoring /%s from user %d outside the admin chat (chat %d)", req.Command, req.From.ID, req.ChatID)
		return nil
	}

	incrementCounter(&totalAdminCommands)
	return handler(ctx, req)
}

func (h *Handler) adminCommands() map[string]func(context.Context, Request) error {
	return map[string]func(context.Context, Request) error{
		"approve": h.handleApprove,
		"reject":  h.handleReject,
		"info":    h.handleInfo,
		"pending": h.handlePending,
		"stats":   h.handleStats,
	}
}

// ParseCommand splits "/cmd@bot payload" into its parts. ok is false when
// text is not a command.
func ParseCommand(text string) (command, botName, payload string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", "", false
	}

	token := text
	if i := strings.IndexAny(text, " \t\n\r"); i >= 0 {
		token = text[:i]
		payload = strings.TrimSpace(text[i:])
	}

	command = strings.TrimPrefix(token, "/")
	if i := strings.Index(command, "@"); i >= 0 {
		botName = command[i+1:]
		command = command[:i]
	}
	if command == "" {
		return "", "", "", false
	}

	return strings.ToLower(command), botName, payload, true
}

// NewRequest builds a Request from a command message text.
func NewRequest(chatID int64, chatType string, messageID int, from *User, text string, edited bool) (Request, bool) {
	command, botName, payload, ok := ParseCommand(text)
	if !ok {
		return Request{}, false
	}

	return Request{
		ChatID:    chatID,
		ChatType:  chatType,
		MessageID: messageID,
		From:      from,
		Command:   command,
		BotName:   botName,
		Payload:   payload,
		Args:      strings.Fields(payload),
		Text:      text,
		Edited:    edited,
	}, true
}
