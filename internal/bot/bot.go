package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-appeals/internal/config"
	"tg-appeals/internal/logger"
	"tg-appeals/internal/models"
)

var allowedUpdates = []string{"message", "edited_message"}

// BotService represents the Telegram bot service
type BotService struct {
	Bot      *telego.Bot
	Handler  *th.BotHandler
	Server   *WebServer
	Username string
}

// Start starts the bot handler
func (b *BotService) Start() {
	b.Handler.Start()
}

// Stop stops the bot handler
func (b *BotService) Stop() {
	b.Handler.Stop()
}

// telegoLogger routes telego logs into the application logger
type telegoLogger struct {
	token string
}

func (l telegoLogger) redact(format string, args []any) string {
	msg := fmt.Sprintf(format, args...)
	if l.token != "" {
		msg = strings.ReplaceAll(msg, l.token, "BOT_TOKEN")
	}
	return msg
}

func (l telegoLogger) Debugf(format string, args ...any) {
	logger.Debugf("telego: %s", l.redact(format, args))
}

func (l telegoLogger) Errorf(format string, args ...any) {
	logger.Errorf("telego: %s", l.redact(format, args))
}

// Initialize creates the bot, registers the command menu and prepares the
// update source selected by bot.mode. Handlers are attached by the caller
// before Start.
func Initialize(ctx context.Context, cfg *config.Config, health HealthCheck) (*BotService, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	bot, err := telego.NewBot(cfg.Bot.Token, telego.WithLogger(telegoLogger{token: cfg.Bot.Token}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", botUser.Username)

	setLocalizedCommands(ctx, bot, cfg)

	var extraStatus func(ctx context.Context) string
	if cfg.Bot.Mode == config.ModeWebhook {
		extraStatus = webhookStatus(bot)
	}
	server := NewWebServer(cfg.Bot.HTTP.ListenPort, cfg.Bot.HTTP.HealthPath, cfg.Bot.HTTP.DebugPath, health, extraStatus)

	var updates <-chan telego.Update
	switch cfg.Bot.Mode {
	case config.ModeWebhook:
		updates, err = SetupWebhook(ctx, bot, server, cfg.Bot.Webhook.Endpoint, webhookSecret(cfg.Bot.Token),
			cfg.Bot.Webhook.CertFile, cfg.Bot.Webhook.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to setup webhook: %w", err)
		}
	default:
		// a leftover webhook blocks getUpdates
		if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			return nil, fmt.Errorf("failed to delete existing webhook: %w", err)
		}

		updates, err = bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
			Timeout:        30,
			AllowedUpdates: allowedUpdates,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start long polling: %w", err)
		}
		logger.Infof("Receiving updates via long polling")
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot handler: %w", err)
	}

	return &BotService{
		Bot:      bot,
		Handler:  bh,
		Server:   server,
		Username: botUser.Username,
	}, nil
}

type commandKey struct {
	Command string
	DescKey string
}

var (
	userCommands = []commandKey{
		{Command: "start", DescKey: "cmd_desc_start"},
		{Command: "help", DescKey: "cmd_desc_help"},
		{Command: "appeal", DescKey: "cmd_desc_appeal"},
		{Command: "status", DescKey: "cmd_desc_status"},
	}
	adminCommands = []commandKey{
		{Command: "pending", DescKey: "cmd_desc_pending"},
		{Command: "info", DescKey: "cmd_desc_info"},
		{Command: "approve", DescKey: "cmd_desc_approve"},
		{Command: "reject", DescKey: "cmd_desc_reject"},
		{Command: "stats", DescKey: "cmd_desc_stats"},
	}
)

func buildCommands(lang string, keys []commandKey) []telego.BotCommand {
	commands := make([]telego.BotCommand, 0, len(keys))
	for _, cmd := range keys {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: models.GetTranslation(lang, cmd.DescKey),
		})
	}
	return commands
}

// setLocalizedCommands sets the command menu in every supported language.
// The admin chat additionally gets the review commands.
func setLocalizedCommands(ctx context.Context, bot *telego.Bot, cfg *config.Config) {
	adminScope := &telego.BotCommandScopeChat{
		Type:   telego.ScopeTypeChat,
		ChatID: telego.ChatID{ID: cfg.Bot.AdminGroupID},
	}

	// empty language code is the fallback for all users
	menus := []struct {
		Lang         string
		TelegramLang string
	}{
		{Lang: models.LangRussian, TelegramLang: "ru"},
		{Lang: models.LangEnglish, TelegramLang: "en"},
		{Lang: cfg.Bot.Language, TelegramLang: ""},
	}

	for _, menu := range menus {
		lang, telegramLang := menu.Lang, menu.TelegramLang
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     buildCommands(lang, userCommands),
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %q: %v", telegramLang, err)
		}

		err = bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     append(buildCommands(lang, userCommands), buildCommands(lang, adminCommands)...),
			Scope:        adminScope,
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set admin commands for %q: %v", telegramLang, err)
			continue
		}
		logger.Debugf("Command menu set in %s for %q", models.GetLanguageName(lang), telegramLang)
	}
}
