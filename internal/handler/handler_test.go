package handler_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"tg-appeals/internal/config"
	"tg-appeals/internal/handler"
	"tg-appeals/internal/models"
	"tg-appeals/internal/service"
	"tg-appeals/internal/storage"
)

const (
	mainGroupID  int64 = -1001
	adminGroupID int64 = -2002
	userID       int64 = 12345
	adminID      int64 = 777
)

type sentMessage struct {
	ChatID  int64
	ReplyTo int
	Text    string
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	failFor  map[int64]bool
}

func (s *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	return s.Reply(context.Background(), chatID, 0, text)
}

func (s *fakeSender) Reply(_ context.Context, chatID int64, replyTo int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	s.messages = append(s.messages, sentMessage{ChatID: chatID, ReplyTo: replyTo, Text: text})
	return nil
}

func (s *fakeSender) To(chatID int64) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

type fakeMembership struct {
	banned bool
	err    error
}

func (f *fakeMembership) IsBanned(context.Context, int64) (bool, error) {
	return f.banned, f.err
}

type fakeUnban struct {
	result service.UnbanResult
	calls  int
}

func (f *fakeUnban) Name() string { return "fake" }

func (f *fakeUnban) Unban(context.Context, int64) service.UnbanResult {
	f.calls++
	return f.result
}

type fixture struct {
	repo       *storage.AppealRepository
	sender     *fakeSender
	membership *fakeMembership
	unban      *fakeUnban
	h          *handler.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithUnban(t, nil)
}

// newFixtureWithUnban uses unban instead of the fake provider when set.
func newFixtureWithUnban(t *testing.T, unban service.UnbanProvider) *fixture {
	t.Helper()

	cfg := &config.Config{
		Bot: config.BotConfig{
			Token:          "test-token",
			MainGroupID:    mainGroupID,
			AdminGroupID:   adminGroupID,
			Language:       models.LangEnglish,
			CommunityName:  "F1 <News>",
			RequestTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver:   config.DriverSQLite,
			Path:     filepath.Join(t.TempDir(), "appeals.db"),
			LogLevel: "SILENT",
		},
		Appeals: config.AppealsConfig{StatusLimit: 5},
	}

	db, err := storage.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	repo := storage.NewAppealRepository(db)
	require.NoError(t, repo.MigrateTable(context.Background()))

	f := &fixture{
		repo:       repo,
		sender:     &fakeSender{failFor: map[int64]bool{}},
		membership: &fakeMembership{banned: true},
		unban:      &fakeUnban{result: service.UnbanResult{OK: true, Provider: "fake"}},
	}
	var provider service.UnbanProvider = f.unban
	if unban != nil {
		provider = unban
	}
	svc := service.NewAppealService(repo, f.membership, provider, cfg, models.NewUserLocks())
	f.h = handler.New(svc, f.sender, cfg)
	f.h.SetBotUsername("AppealsBot")
	return f
}

var submitter = &handler.User{ID: userID, Username: "racer", FirstName: "Lewis"}
var admin = &handler.User{ID: adminID, Username: "mod", FirstName: "Admin"}

func (f *fixture) send(t *testing.T, chatID int64, from *handler.User, text string) {
	t.Helper()
	f.sendEdited(t, chatID, from, text, false)
}

func (f *fixture) sendEdited(t *testing.T, chatID int64, from *handler.User, text string, edited bool) {
	t.Helper()
	chatType := "private"
	if chatID < 0 {
		chatType = "supergroup"
	}
	req, ok := handler.NewRequest(chatID, chatType, 10, from, text, edited)
	require.True(t, ok, "not a command: %q", text)
	require.NoError(t, f.h.Handle(context.Background(), req))
}

func (f *fixture) submit(t *testing.T) *models.Appeal {
	t.Helper()
	f.send(t, userID, submitter, "/appeal I was discussing race strategy, honestly.")
	appeal, err := f.repo.GetPendingForUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, appeal)
	f.sender.Reset()
	return appeal
}

func lastText(t *testing.T, msgs []sentMessage) string {
	t.Helper()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1].Text
}

func TestSubmitAppeal(t *testing.T) {
	f := newFixture(t)
	text := "I was discussing race strategy, honestly."
	require.Len(t, []rune(text), 41)

	f.send(t, userID, submitter, "/appeal "+text)

	appeals, err := f.repo.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	appeal := appeals[0]
	assert.Equal(t, models.StatusPending, appeal.Status)
	assert.Equal(t, text, appeal.AppealText)

	replies := f.sender.To(userID)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Appeal submitted successfully")
	assert.Contains(t, replies[0].Text, "#1")
	assert.Equal(t, 10, replies[0].ReplyTo)

	notices := f.sender.To(adminGroupID)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, "New appeal")
	assert.Contains(t, notices[0].Text, "#1")
	assert.Contains(t, notices[0].Text, "Lewis (@racer)")
	assert.Contains(t, notices[0].Text, "12345")
	assert.Contains(t, notices[0].Text, text)
}

func TestSubmitAppealTwice(t *testing.T) {
	f := newFixture(t)
	first := f.submit(t)

	f.send(t, userID, submitter, "/appeal Another attempt with more details.")

	assert.Contains(t, lastText(t, f.sender.To(userID)), "already have a pending appeal (#1)")
	assert.Empty(t, f.sender.To(adminGroupID))

	count, err := f.repo.CountForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, uint(1), first.ID)
}

func TestSubmitAppealReplies(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		setup func(f *fixture)
		want  string
	}{
		{name: "no text", text: "/appeal", want: "Please provide an explanation"},
		{name: "too short", text: "/appeal sorry", want: "at least 10 characters"},
		{name: "too long", text: "/appeal " + strings.Repeat("a", 1001), want: "at most 1000 characters"},
		{
			name:  "not banned",
			text:  "/appeal I was discussing race strategy, honestly.",
			setup: func(f *fixture) { f.membership.banned = false },
			want:  "You are not banned in F1 &lt;News&gt;",
		},
		{
			name:  "membership check failure",
			text:  "/appeal I was discussing race strategy, honestly.",
			setup: func(f *fixture) { f.membership.err = errors.New("Bad Request: chat not found") },
			want:  "Could not verify your status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			f.send(t, userID, submitter, tt.text)

			replies := f.sender.To(userID)
			require.Len(t, replies, 1)
			assert.Contains(t, replies[0].Text, tt.want)
			assert.Empty(t, f.sender.To(adminGroupID))

			count, err := f.repo.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestEditedAppeal(t *testing.T) {
	f := newFixture(t)

	f.sendEdited(t, userID, submitter, "/appeal@AppealsBot", true)
	assert.Contains(t, lastText(t, f.sender.To(userID)), "Please add the appeal text")

	f.sendEdited(t, userID, submitter, "/appeal@AppealsBot  I was discussing race strategy, honestly.", true)
	assert.Contains(t, lastText(t, f.sender.To(userID)), "Appeal submitted successfully")

	appeal, err := f.repo.GetPendingForUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, appeal)
	assert.Equal(t, "I was discussing race strategy, honestly.", appeal.AppealText)

	// edits of other commands are ignored
	f.sender.Reset()
	f.sendEdited(t, userID, submitter, "/status", true)
	assert.Zero(t, f.sender.Count())
}

func TestCommandForOtherBotIgnored(t *testing.T) {
	f := newFixture(t)

	f.send(t, userID, submitter, "/help@SomeOtherBot")
	assert.Zero(t, f.sender.Count())

	f.send(t, userID, submitter, "/help@appealsbot")
	assert.Equal(t, 1, f.sender.Count())
}

func TestHelp(t *testing.T) {
	f := newFixture(t)

	f.send(t, userID, submitter, "/start")
	f.send(t, userID, submitter, "/help")

	replies := f.sender.To(userID)
	require.Len(t, replies, 2)
	assert.Equal(t, replies[0].Text, replies[1].Text)
	assert.Contains(t, replies[0].Text, "F1 &lt;News&gt;")
	assert.Contains(t, replies[0].Text, "/appeal")
}

func TestApproveUnbanFailure(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	f.unban.result = service.UnbanResult{Provider: "fake", Description: "Bad Request: not enough rights"}

	f.send(t, adminGroupID, admin, "/approve 1")

	assert.Contains(t, lastText(t, f.sender.To(adminGroupID)), "Failed to unban user. Error: Bad Request: not enough rights")
	assert.Empty(t, f.sender.To(userID))

	stored, err := f.repo.Get(context.Background(), appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.ProcessedAt)
}

type failingChatMemberAPI struct{}

func (failingChatMemberAPI) GetChatMember(context.Context, *telego.GetChatMemberParams) (telego.ChatMember, error) {
	return nil, errors.New("Bad Request: chat not found")
}

func (failingChatMemberAPI) UnbanChatMember(context.Context, *telego.UnbanChatMemberParams) error {
	return errors.New("Bad Request: not enough rights")
}

func TestApproveUnbanChainFailureReachesAdmin(t *testing.T) {
	cfg := &config.Config{
		Bot: config.BotConfig{MainGroupID: mainGroupID, RequestTimeout: time.Second},
		Unban: config.UnbanConfig{
			ModerationAPI: config.ModerationAPIConfig{URL: "http://moderation.local/unban"},
		},
	}
	unreachable := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		},
	}
	chain := service.NewUnbanChain(
		service.NewModerationAPIProvider(cfg, unreachable),
		service.NewTelegramUnbanProvider(failingChatMemberAPI{}, mainGroupID),
	)

	f := newFixtureWithUnban(t, chain)
	appeal := f.submit(t)

	f.send(t, adminGroupID, admin, "/approve 1")

	reply := lastText(t, f.sender.To(adminGroupID))
	assert.Contains(t, reply, "Failed to unban user. Error: moderation_api: ")
	assert.Contains(t, reply, "connection refused")
	assert.Contains(t, reply, "; telegram: Bad Request: not enough rights")
	assert.Empty(t, f.sender.To(userID))

	stored, err := f.repo.Get(context.Background(), appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	f.send(t, adminGroupID, admin, "/approve #1")

	assert.Contains(t, lastText(t, f.sender.To(adminGroupID)), "Appeal #1 approved")
	notices := f.sender.To(userID)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, "appeal #1 has been approved")
	assert.Zero(t, notices[0].ReplyTo)

	stored, err := f.repo.Get(context.Background(), appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Equal(t, 1, f.unban.calls)

	f.sender.Reset()
	f.send(t, adminGroupID, admin, "/approve 1")
	assert.Contains(t, lastText(t, f.sender.To(adminGroupID)), "Appeal #1 is already approved")
	assert.Empty(t, f.sender.To(userID))
	assert.Equal(t, 1, f.unban.calls)
}

func TestApproveNotificationFailureKeepsDecision(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)
	f.sender.failFor[userID] = true

	f.send(t, adminGroupID, admin, "/approve 1")

	assert.Contains(t, lastText(t, f.sender.To(adminGroupID)), "Appeal #1 approved")
	stored, err := f.repo.Get(context.Background(), appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	f.send(t, adminGroupID, admin, "/reject 1 spam")

	assert.Contains(t, lastText(t, f.sender.To(adminGroupID)), "Appeal #1 rejected")

	stored, err := f.repo.Get(context.Background(), appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)
	assert.Contains(t, stored.Decision(), "spam")

	notices := f.sender.To(userID)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Text, "appeal #1 has been rejected")
	assert.Contains(t, notices[0].Text, "spam")
	assert.Zero(t, f.unban.calls)
}

func TestRejectWithoutReason(t *testing.T) {
	f := newFixture(t)
	f.submit(t)

	f.send(t, adminGroupID, admin, "/reject 1")

	stored, err := f.repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Rejected: No reason given", stored.Decision())
	assert.Contains(t, lastText(t, f.sender.To(userID)), "No reason given")
}

func TestAdminCommandsOutsideAdminChatIgnored(t *testing.T) {
	f := newFixture(t)
	appeal := f.submit(t)

	for _, text := range []string{"/approve 1", "/reject 1 spam", "/info 1", "/pending", "/stats"} {
		f.send(t, userID, submitter, text)
		f.send(t, mainGroupID, admin, text)
	}

	assert.Zero(t, f.sender.Count())
	assert.Zero(t, f.unban.calls)

	stored, err := f.repo.Get(context.Background(), appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestAdminCommandArguments(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "/approve", want: "Please provide an appeal ID: <code>/approve 123</code>"},
		{text: "/reject", want: "Please provide an appeal ID: <code>/reject 123 [reason]</code>"},
		{text: "/info", want: "Please provide an appeal ID: <code>/info 123</code>"},
		{text: "/approve abc", want: "Invalid appeal ID"},
		{text: "/reject -5 spam", want: "Invalid appeal ID"},
		{text: "/info 0", want: "Invalid appeal ID"},
		{text: "/approve 42", want: "Appeal not found"},
		{text: "/reject 42 spam", want: "Appeal not found"},
		{text: "/info 42", want: "Appeal not found"},
	}

	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f.sender.Reset()
			f.send(t, adminGroupID, admin, tt.text)
			replies := f.sender.To(adminGroupID)
			require.Len(t, replies, 1)
			assert.Contains(t, replies[0].Text, tt.want)
		})
	}
	assert.Zero(t, f.unban.calls)
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	f.send(t, userID, &handler.User{ID: userID, FirstName: "<b>Lewis</b>"}, "/appeal I did nothing wrong & I can prove it")
	f.sender.Reset()

	f.send(t, adminGroupID, admin, "/info 1")
	card := lastText(t, f.sender.To(adminGroupID))
	assert.Contains(t, card, "Appeal #1")
	assert.Contains(t, card, "&lt;b&gt;Lewis&lt;/b&gt;")
	assert.Contains(t, card, "I did nothing wrong &amp; I can prove it")
	assert.Contains(t, card, "Pending")
	assert.NotContains(t, card, "Admin Decision")

	f.send(t, adminGroupID, admin, "/reject 1 no proof")
	f.send(t, adminGroupID, admin, "/info 1")
	card = lastText(t, f.sender.To(adminGroupID))
	assert.Contains(t, card, "Rejected: no proof")
	assert.Contains(t, card, "Processed")
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	f.send(t, userID, submitter, "/status")
	assert.Contains(t, lastText(t, f.sender.To(userID)), "You have no registered appeals")

	f.submit(t)
	f.send(t, adminGroupID, admin, "/reject 1 spam")
	f.send(t, userID, submitter, "/appeal Second appeal with new information.")
	f.sender.Reset()

	f.send(t, userID, submitter, "/status")
	text := lastText(t, f.sender.To(userID))
	assert.Contains(t, text, "Your appeals")
	assert.Contains(t, text, "⏳ <b>#2</b> - Pending")
	assert.Contains(t, text, "❌ <b>#1</b> - Rejected")
	assert.Contains(t, text, "💬 Rejected: spam")
	assert.Less(t, strings.Index(text, "#2"), strings.Index(text, "#1"))
}

func TestPendingAndStats(t *testing.T) {
	f := newFixture(t)

	f.send(t, adminGroupID, admin, "/pending")
	assert.Contains(t, lastText(t, f.sender.To(adminGroupID)), "No pending appeals")

	f.send(t, adminGroupID, admin, "/stats")
	stats := lastText(t, f.sender.To(adminGroupID))
	assert.Contains(t, stats, "Total Appeals:</b> 0")
	assert.NotContains(t, stats, "Pending")

	f.submit(t)
	f.send(t, 54321, &handler.User{ID: 54321, FirstName: "Max"}, "/appeal Please review my ban, it was a mistake.")
	f.send(t, adminGroupID, admin, "/approve 1")
	f.sender.Reset()

	f.send(t, adminGroupID, admin, "/pending")
	pending := lastText(t, f.sender.To(adminGroupID))
	assert.Contains(t, pending, "#2 - Max - ")
	assert.NotContains(t, pending, "#1 -")

	f.send(t, adminGroupID, admin, "/stats")
	stats = lastText(t, f.sender.To(adminGroupID))
	assert.Contains(t, stats, "Total Appeals:</b> 2")
	assert.Contains(t, stats, "⏳ <b>Pending:</b> 1")
	assert.Contains(t, stats, "✅ <b>Approved:</b> 1")
	assert.NotContains(t, stats, "Rejected")
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text    string
		command string
		botName string
		payload string
		ok      bool
	}{
		{text: "/appeal hello world", command: "appeal", payload: "hello world", ok: true},
		{text: "/Appeal@AppealsBot  multi\nline ", command: "appeal", botName: "AppealsBot", payload: "multi\nline", ok: true},
		{text: "  /status", command: "status", ok: true},
		{text: "/reject 1 spam and flood", command: "reject", payload: "1 spam and flood", ok: true},
		{text: "hello", ok: false},
		{text: "/", ok: false},
		{text: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			command, botName, payload, ok := handler.ParseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.command, command)
			assert.Equal(t, tt.botName, botName)
			assert.Equal(t, tt.payload, payload)
		})
	}
}
