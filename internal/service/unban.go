package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"github.com/valyala/fasthttp"

	"tg-appeals/internal/config"
	"tg-appeals/internal/logger"
)

// UnbanResult is the outcome of one unban attempt.
type UnbanResult struct {
	OK          bool
	Provider    string
	Description string
	Error       string
}

// Message returns the human readable failure reason shown to admins.
func (r UnbanResult) Message() string {
	if r.Description != "" {
		return r.Description
	}
	if r.Error != "" {
		return r.Error
	}
	return "Unknown error"
}

// UnbanProvider lifts a ban in the main group.
type UnbanProvider interface {
	Name() string
	Unban(ctx context.Context, userID int64) UnbanResult
}

// ChatMemberAPI is the part of the Telegram Bot API used for membership
// checks and unbans. *telego.Bot implements it.
type ChatMemberAPI interface {
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
	UnbanChatMember(ctx context.Context, params *telego.UnbanChatMemberParams) error
}

// TelegramUnbanProvider unbans through the Bot API directly.
type TelegramUnbanProvider struct {
	api     ChatMemberAPI
	groupID int64
}

// NewTelegramUnbanProvider creates a provider unbanning users in groupID
func NewTelegramUnbanProvider(api ChatMemberAPI, groupID int64) *TelegramUnbanProvider {
	return &TelegramUnbanProvider{api: api, groupID: groupID}
}

// Name identifies the provider in results and logs.
func (p *TelegramUnbanProvider) Name() string {
	return config.ProviderTelegram
}

// Unban calls unbanChatMember with only_if_banned set.
func (p *TelegramUnbanProvider) Unban(ctx context.Context, userID int64) UnbanResult {
	err := p.api.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       telego.ChatID{ID: p.groupID},
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		logger.Errorf("Telegram unbanChatMember failed for user %d: %v", userID, err)
		return UnbanResult{Provider: p.Name(), Error: err.Error()}
	}

	logger.Infof("User %d unbanned via Telegram API", userID)
	return UnbanResult{OK: true, Provider: p.Name()}
}

// ModerationAPIProvider asks the community moderation service to unban a
// user, so the service also clears its own ban records.
type ModerationAPIProvider struct {
	client   *fasthttp.Client
	url      string
	chatID   int64
	username string
	password string
	timeout  time.Duration
}

type moderationUnbanRequest struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

type moderationUnbanResponse struct {
	OK          *bool  `json:"ok"`
	Description string `json:"description"`
	Error       string `json:"error"`
}

// NewModerationAPIProvider creates a provider for cfg.ModerationAPIURL().
// A nil client gets a default one.
func NewModerationAPIProvider(cfg *config.Config, client *fasthttp.Client) *ModerationAPIProvider {
	timeout := cfg.Bot.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if client == nil {
		client = &fasthttp.Client{
			Name:         "tg-appeals",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		}
	}

	return &ModerationAPIProvider{
		client:   client,
		url:      cfg.ModerationAPIURL(),
		chatID:   cfg.Bot.MainGroupID,
		username: cfg.Unban.ModerationAPI.Username,
		password: cfg.Unban.ModerationAPI.Password,
		timeout:  timeout,
	}
}

// Name identifies the provider in results and logs.
func (p *ModerationAPIProvider) Name() string {
	return config.ProviderModerationAPI
}

// Unban posts the user and chat id to the moderation API.
func (p *ModerationAPIProvider) Unban(ctx context.Context, userID int64) UnbanResult {
	result := UnbanResult{Provider: p.Name()}

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	body, err := json.Marshal(moderationUnbanRequest{UserID: userID, ChatID: p.chatID})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if p.username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(p.username + ":" + p.password))
		req.Header.Set(fasthttp.HeaderAuthorization, "Basic "+token)
	}
	req.SetBody(body)

	if err := p.client.DoTimeout(req, resp, p.requestTimeout(ctx)); err != nil {
		logger.Errorf("Moderation API unban request for user %d failed: %v", userID, err)
		result.Error = err.Error()
		return result
	}

	status := resp.StatusCode()
	respBody := resp.Body()

	var decoded moderationUnbanResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			logger.Warningf("Moderation API returned a non-JSON body (status %d): %v", status, err)
		}
	}

	if status >= 200 && status < 300 && (decoded.OK == nil || *decoded.OK) {
		logger.Infof("User %d unbanned via moderation API", userID)
		result.OK = true
		return result
	}

	result.Description = decoded.Description
	if result.Description == "" {
		result.Description = decoded.Error
	}
	if result.Description == "" {
		result.Description = fmt.Sprintf("moderation API returned status %d", status)
	}

	logger.Warningf("Moderation API refused to unban user %d: %s", userID, result.Description)
	return result
}

// requestTimeout is the configured timeout bounded by the context deadline.
func (p *ModerationAPIProvider) requestTimeout(ctx context.Context) time.Duration {
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}

var _ UnbanProvider = (*UnbanChain)(nil)

// UnbanChain tries providers in order until one succeeds.
type UnbanChain struct {
	providers []UnbanProvider
}

// NewUnbanChain creates a chain trying providers in the given order
func NewUnbanChain(providers ...UnbanProvider) *UnbanChain {
	return &UnbanChain{providers: providers}
}

// NewUnbanChainFromConfig builds the chain listed in unban.providers.
func NewUnbanChainFromConfig(cfg *config.Config, api ChatMemberAPI) *UnbanChain {
	var providers []UnbanProvider
	for _, name := range cfg.Unban.Providers {
		switch name {
		case config.ProviderModerationAPI:
			if !cfg.Unban.UseModerationAPI {
				logger.Infof("Moderation API unban provider disabled")
				continue
			}
			providers = append(providers, NewModerationAPIProvider(cfg, nil))
		case config.ProviderTelegram:
			providers = append(providers, NewTelegramUnbanProvider(api, cfg.Bot.MainGroupID))
		default:
			logger.Warningf("Unknown unban provider %q, skipping", name)
		}
	}

	if len(providers) == 0 {
		logger.Warningf("No unban providers configured, falling back to %s", config.ProviderTelegram)
		providers = append(providers, NewTelegramUnbanProvider(api, cfg.Bot.MainGroupID))
	}

	return NewUnbanChain(providers...)
}

// Name lists the chained providers, comma separated.
func (c *UnbanChain) Name() string {
	return strings.Join(c.Providers(), ",")
}

// Providers returns the provider names in order.
func (c *UnbanChain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Unban returns the first successful result, or the last failure with the
// reasons of all failed providers.
func (c *UnbanChain) Unban(ctx context.Context, userID int64) UnbanResult {
	if len(c.providers) == 0 {
		return UnbanResult{Error: "no unban providers configured"}
	}

	var (
		last    UnbanResult
		reasons []string
	)
	for _, p := range c.providers {
		result := p.Unban(ctx, userID)
		if result.Provider == "" {
			result.Provider = p.Name()
		}
		if result.OK {
			return result
		}

		logger.Warningf("Unban provider %s failed for user %d: %s", result.Provider, userID, result.Message())
		reasons = append(reasons, result.Provider+": "+result.Message())
		last = result
	}

	if len(reasons) > 1 {
		last.Description = strings.Join(reasons, "; ")
	}
	return last
}
