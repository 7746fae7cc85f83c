package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-appeals/internal/config"
	"tg-appeals/internal/models"
	"tg-appeals/internal/service"
	"tg-appeals/internal/storage"
)

type fakeMembership struct {
	banned bool
	err    error
}

func (f *fakeMembership) IsBanned(context.Context, int64) (bool, error) {
	return f.banned, f.err
}

type serviceFixture struct {
	cfg        *config.Config
	repo       *storage.AppealRepository
	membership *fakeMembership
	unban      *fakeUnbanProvider
	svc        *service.AppealService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	cfg := newTestConfig()
	cfg.Database = config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "appeals.db"),
		LogLevel: "SILENT",
	}

	db, err := storage.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(db) })

	repo := storage.NewAppealRepository(db)
	require.NoError(t, repo.MigrateTable(context.Background()))

	f := &serviceFixture{
		cfg:        cfg,
		repo:       repo,
		membership: &fakeMembership{banned: true},
		unban:      &fakeUnbanProvider{name: "fake", result: service.UnbanResult{OK: true, Provider: "fake"}},
	}
	f.svc = service.NewAppealService(repo, f.membership, f.unban, cfg, models.NewUserLocks())
	return f
}

var (
	testSubmitter = service.Submitter{UserID: 12345, Username: "testuser", FirstName: "Test", Message: "/appeal I was discussing race strategy, not spam."}
	testAdmin     = service.Admin{UserID: 1, Username: "moderator", FirstName: "Mod"}
)

const testAppealText = "I was discussing race strategy, not spam."

func TestSubmitCreatesPendingAppeal(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	appeal, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)
	require.NotZero(t, appeal.ID)
	assert.Equal(t, models.StatusPending, appeal.Status)

	stored, err := f.repo.Get(ctx, appeal.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, testAppealText, stored.AppealText)
	assert.Equal(t, "Test (@testuser)", stored.DisplayName())
	require.NotNil(t, stored.OriginalMessage)
	assert.Equal(t, testSubmitter.Message, *stored.OriginalMessage)
}

func TestSubmitValidationRunsFirst(t *testing.T) {
	f := newServiceFixture(t)
	f.membership.err = errors.New("must not be called")

	_, err := f.svc.Submit(context.Background(), testSubmitter, "short")

	var validationErr *service.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "msg_appeal_too_short", validationErr.Key)

	count, err := f.repo.CountForUser(context.Background(), testSubmitter.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubmitNotBanned(t *testing.T) {
	f := newServiceFixture(t)
	f.membership.banned = false

	_, err := f.svc.Submit(context.Background(), testSubmitter, testAppealText)
	require.ErrorIs(t, err, service.ErrNotBanned)

	count, err := f.repo.CountForUser(context.Background(), testSubmitter.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubmitMembershipCheckFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.membership.err = errors.New("Bad Request: chat not found")

	_, err := f.svc.Submit(context.Background(), testSubmitter, testAppealText)
	require.ErrorIs(t, err, service.ErrMembershipCheck)
}

func TestSubmitPendingExists(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, testSubmitter, "Another explanation of what happened.")

	var pendingErr *service.PendingExistsError
	require.ErrorAs(t, err, &pendingErr)
	assert.Equal(t, first.ID, pendingErr.AppealID)

	count, err := f.repo.CountForUser(ctx, testSubmitter.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSubmitConcurrentSameUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		pending   int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(ctx, testSubmitter, testAppealText)

			mu.Lock()
			defer mu.Unlock()
			var pendingErr *service.PendingExistsError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &pendingErr):
				pending++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 9, pending)
}

func TestApprove(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	submitted, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	appeal, result, err := f.svc.Approve(ctx, submitted.ID, testAdmin)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, models.StatusApproved, appeal.Status)
	assert.Equal(t, "Approved", appeal.Decision())
	assert.NotNil(t, appeal.ProcessedAt)
	assert.Equal(t, []int64{testSubmitter.UserID}, f.unban.calls)

	// a decided appeal cannot be decided again
	_, _, err = f.svc.Approve(ctx, submitted.ID, testAdmin)
	var processedErr *service.AlreadyProcessedError
	require.ErrorAs(t, err, &processedErr)
	assert.Equal(t, models.StatusApproved, processedErr.Status)
	assert.Equal(t, 1, f.unban.Calls())
}

func TestApproveUnbanFailureKeepsPending(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.unban.result = service.UnbanResult{Provider: "fake", Description: "Bad Request: not enough rights"}

	submitted, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	_, result, err := f.svc.Approve(ctx, submitted.ID, testAdmin)
	require.ErrorIs(t, err, service.ErrUnbanFailed)
	assert.Equal(t, "Bad Request: not enough rights", result.Message())

	stored, err := f.repo.Get(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.ProcessedAt)
}

func TestApproveNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, _, err := f.svc.Approve(context.Background(), 99999, testAdmin)
	require.ErrorIs(t, err, service.ErrAppealNotFound)
	assert.Zero(t, f.unban.Calls())
}

func TestApproveShowsAdminName(t *testing.T) {
	f := newServiceFixture(t)
	f.cfg.Appeals.ShowAdminName = true
	ctx := context.Background()

	submitted, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	appeal, _, err := f.svc.Approve(ctx, submitted.ID, testAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Approved by Mod (@moderator)", appeal.Decision())
}

func TestReject(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	submitted, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	appeal, err := f.svc.Reject(ctx, submitted.ID, "spam", testAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, appeal.Status)
	assert.Contains(t, appeal.Decision(), "spam")
	assert.NotContains(t, appeal.Decision(), "moderator")
	assert.NotNil(t, appeal.ProcessedAt)
	assert.Zero(t, f.unban.Calls())

	_, err = f.svc.Reject(ctx, submitted.ID, "again", testAdmin)
	var processedErr *service.AlreadyProcessedError
	require.ErrorAs(t, err, &processedErr)
	assert.Equal(t, models.StatusRejected, processedErr.Status)
}

func TestRejectWithoutReason(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	submitted, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	appeal, err := f.svc.Reject(ctx, submitted.ID, "  ", testAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Rejected: No reason given", appeal.Decision())
}

func TestRejectShowsAdminName(t *testing.T) {
	f := newServiceFixture(t)
	f.cfg.Appeals.ShowAdminName = true
	ctx := context.Background()

	submitted, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	appeal, err := f.svc.Reject(ctx, submitted.ID, "spam", testAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Rejected by Mod (@moderator): spam", appeal.Decision())
}

func TestRecentForUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		appeal, err := f.svc.Submit(ctx, testSubmitter, testAppealText+strings.Repeat("!", i))
		require.NoError(t, err)
		_, err = f.svc.Reject(ctx, appeal.ID, "no", testAdmin)
		require.NoError(t, err)
	}

	recent, err := f.svc.RecentForUser(ctx, testSubmitter.UserID)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Greater(t, recent[0].ID, recent[4].ID)
}

func TestGetAndStats(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, 1)
	require.ErrorIs(t, err, service.ErrAppealNotFound)

	submitted, err := f.svc.Submit(ctx, testSubmitter, testAppealText)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.ID, got.ID)

	pending, err := f.svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Count(models.StatusPending))
}
