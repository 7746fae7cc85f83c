package handler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-appeals/internal/config"
	"tg-appeals/internal/crash"
	"tg-appeals/internal/logger"
)

var (
	activeHandlers             int64
	inFlight                   sync.WaitGroup
	messageProcessingSemaphore = make(chan struct{}, 100)
)

// Initialize sizes the handler concurrency limit from cfg
func Initialize(cfg *config.Config) {
	if cfg.Bot.MaxConcurrent > 0 {
		messageProcessingSemaphore = make(chan struct{}, cfg.Bot.MaxConcurrent)
	}
}

// GetActiveHandlersCount returns the number of updates being processed
func GetActiveHandlersCount() int64 {
	return atomic.LoadInt64(&activeHandlers)
}

// MaxConcurrent returns the concurrency limit of update handlers
func MaxConcurrent() int {
	return cap(messageProcessingSemaphore)
}

// WaitForHandlers waits until in-flight updates finish or timeout passes.
// It reports whether all handlers finished.
func WaitForHandlers(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		logger.Warningf("Timed out waiting for %d active handlers", GetActiveHandlersCount())
		return false
	}
}

// trackUpdate runs fn as one tracked unit of work: counted, bounded by the
// concurrency limit and protected against panics.
func trackUpdate(ctx context.Context, fn func() error) (err error) {
	inFlight.Add(1)
	atomic.AddInt64(&activeHandlers, 1)
	defer func() {
		atomic.AddInt64(&activeHandlers, -1)
		inFlight.Done()
	}()
	incrementCounter(&totalUpdatesProcessed)

	select {
	case messageProcessingSemaphore <- struct{}{}:
		defer func() { <-messageProcessingSemaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	defer func() {
		if errors.Is(err, crash.ErrPanic) {
			incrementCounter(&totalPanics)
		}
	}()
	defer crash.RecoverToError("update-handler", &err)

	return fn()
}

// SetupMessageHandlers configures the middleware and command handlers
func SetupMessageHandlers(bh *th.BotHandler, h *Handler) {
	bh.Use(func(ctx *th.Context, update telego.Update) error {
		err := trackUpdate(ctx.Context(), func() error {
			return ctx.Next(update)
		})
		if err != nil {
			incrementCounter(&totalErrors)
			logger.Errorf("Error processing update %d: %v", update.UpdateID, err)
		}
		return nil
	})

	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		return dispatchMessage(ctx.Context(), h, message, false)
	})

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		return dispatchMessage(ctx.Context(), h, *update.EditedMessage, true)
	}, th.AnyEditedMessage())
}

func dispatchMessage(ctx context.Context, h *Handler, message telego.Message, edited bool) error {
	if message.From == nil || message.From.IsBot {
		return nil
	}

	req, ok := NewRequest(message.Chat.ID, message.Chat.Type, message.MessageID, &User{
		ID:        message.From.ID,
		Username:  message.From.Username,
		FirstName: message.From.FirstName,
	}, message.Text, edited)
	if !ok {
		return nil
	}

	logger.Debugf("Command /%s from user %d in chat %d (edited=%t)", req.Command, req.From.ID, req.ChatID, edited)
	return h.Handle(ctx, req)
}

// TelegoSender sends messages through the Bot API in HTML parse mode.
type TelegoSender struct {
	bot *telego.Bot
}

// NewTelegoSender creates a Sender backed by bot
func NewTelegoSender(bot *telego.Bot) *TelegoSender {
	return &TelegoSender{bot: bot}
}

func (s *TelegoSender) Send(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: "HTML",
		LinkPreviewOptions: &telego.LinkPreviewOptions{
			IsDisabled: true,
		},
	})
	return err
}

func (s *TelegoSender) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: "HTML",
		LinkPreviewOptions: &telego.LinkPreviewOptions{
			IsDisabled: true,
		},
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{
			MessageID:                replyTo,
			AllowSendingWithoutReply: true,
		}
	}

	_, err := s.bot.SendMessage(ctx, params)
	return err
}
