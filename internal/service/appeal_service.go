package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tg-appeals/internal/config"
	"tg-appeals/internal/logger"
	"tg-appeals/internal/models"
	"tg-appeals/internal/storage"
)

// AppealStore is the persistence used by AppealService.
// *storage.AppealRepository implements it.
type AppealStore interface {
	Create(ctx context.Context, appeal *models.Appeal) (uint, error)
	Get(ctx context.Context, id uint) (*models.Appeal, error)
	GetPendingForUser(ctx context.Context, userID int64) (*models.Appeal, error)
	ListPending(ctx context.Context) ([]*models.Appeal, error)
	ListForUserLimit(ctx context.Context, userID int64, limit int) ([]*models.Appeal, error)
	UpdateStatus(ctx context.Context, id uint, status models.Status, decision string) (bool, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

// Submitter is the user filing an appeal.
type Submitter struct {
	UserID    int64
	Username  string
	FirstName string
	// Message is the raw text of the command message
	Message string
}

// Admin is the administrator deciding an appeal.
type Admin struct {
	UserID    int64
	Username  string
	FirstName string
}

// DisplayName formats the admin as "First (@username)".
func (a Admin) DisplayName() string {
	return models.FormatUserMention(a.FirstName, a.Username)
}

// AppealService implements the appeal lifecycle on top of the store, the
// membership check and the unban gateway.
type AppealService struct {
	store      AppealStore
	membership MembershipChecker
	unban      UnbanProvider
	cfg        *config.Config
	locks      *models.UserLocks
}

// NewAppealService creates the service. locks may be nil.
func NewAppealService(store AppealStore, membership MembershipChecker, unban UnbanProvider, cfg *config.Config, locks *models.UserLocks) *AppealService {
	if locks == nil {
		locks = models.NewUserLocks()
	}
	return &AppealService{
		store:      store,
		membership: membership,
		unban:      unban,
		cfg:        cfg,
		locks:      locks,
	}
}

func (s *AppealService) translate(key string) string {
	return models.GetTranslation(s.cfg.Bot.Language, key)
}

// withTimeout bounds a call to an external dependency.
func (s *AppealService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Bot.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Bot.RequestTimeout)
}

// Submit validates and stores a new appeal. Checks run in order: text,
// ban status in the main group, then an existing pending appeal.
func (s *AppealService) Submit(ctx context.Context, submitter Submitter, text string) (*models.Appeal, error) {
	if ok, key := ValidateAppealText(text); !ok {
		return nil, &ValidationError{Key: key}
	}

	checkCtx, cancel := s.withTimeout(ctx)
	banned, err := s.membership.IsBanned(checkCtx, submitter.UserID)
	cancel()
	if err != nil {
		logger.Errorf("Failed to check ban status of user %d: %v", submitter.UserID, err)
		return nil, fmt.Errorf("%w: %v", ErrMembershipCheck, err)
	}
	if !banned {
		return nil, ErrNotBanned
	}

	release := s.locks.Lock(submitter.UserID)
	defer release()

	existing, err := s.store.GetPendingForUser(ctx, submitter.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &PendingExistsError{AppealID: existing.ID}
	}

	appeal := &models.Appeal{
		UserID:          submitter.UserID,
		Username:        models.StringPtr(submitter.Username),
		FirstName:       models.StringPtr(submitter.FirstName),
		AppealText:      text,
		OriginalMessage: models.StringPtr(submitter.Message),
	}

	if _, err := s.store.Create(ctx, appeal); err != nil {
		if errors.Is(err, storage.ErrPendingExists) {
			// lost a race against another process
			if pending, getErr := s.store.GetPendingForUser(ctx, submitter.UserID); getErr == nil && pending != nil {
				return nil, &PendingExistsError{AppealID: pending.ID}
			}
			return nil, &PendingExistsError{}
		}
		return nil, err
	}

	logger.Infof("Appeal #%d created for user %d", appeal.ID, appeal.UserID)
	return appeal, nil
}

// loadPending returns the appeal if it exists and is still pending.
func (s *AppealService) loadPending(ctx context.Context, id uint) (*models.Appeal, error) {
	appeal, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appeal == nil {
		return nil, ErrAppealNotFound
	}
	if appeal.Status != models.StatusPending {
		return appeal, &AlreadyProcessedError{AppealID: appeal.ID, Status: appeal.Status}
	}
	return appeal, nil
}

// Approve unbans the submitter and marks the appeal approved. The appeal
// stays pending when every unban provider fails.
func (s *AppealService) Approve(ctx context.Context, id uint, admin Admin) (*models.Appeal, UnbanResult, error) {
	appeal, err := s.loadPending(ctx, id)
	if err != nil {
		return appeal, UnbanResult{}, err
	}

	unbanCtx, cancel := s.withTimeout(ctx)
	result := s.unban.Unban(unbanCtx, appeal.UserID)
	cancel()
	if !result.OK {
		logger.Warningf("Appeal #%d: failed to unban user %d: %s", appeal.ID, appeal.UserID, result.Message())
		return appeal, result, ErrUnbanFailed
	}

	decision := s.translate("decision_approved")
	if s.cfg.Appeals.ShowAdminName {
		decision = fmt.Sprintf(s.translate("decision_approved_by"), admin.DisplayName())
	}

	updated, err := s.finish(ctx, appeal, models.StatusApproved, decision)
	if err != nil {
		return appeal, result, err
	}

	logger.Infof("Appeal #%d approved by %d (unbanned via %s)", appeal.ID, admin.UserID, result.Provider)
	return updated, result, nil
}

// Reject marks the appeal rejected with the given reason.
func (s *AppealService) Reject(ctx context.Context, id uint, reason string, admin Admin) (*models.Appeal, error) {
	appeal, err := s.loadPending(ctx, id)
	if err != nil {
		return appeal, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = s.translate("reason_not_given")
	}

	decision := fmt.Sprintf(s.translate("decision_rejected"), reason)
	if s.cfg.Appeals.ShowAdminName {
		decision = fmt.Sprintf(s.translate("decision_rejected_by"), admin.DisplayName(), reason)
	}

	updated, err := s.finish(ctx, appeal, models.StatusRejected, decision)
	if err != nil {
		return appeal, err
	}

	logger.Infof("Appeal #%d rejected by %d", appeal.ID, admin.UserID)
	return updated, nil
}

// finish persists a terminal status and returns the stored appeal.
func (s *AppealService) finish(ctx context.Context, appeal *models.Appeal, status models.Status, decision string) (*models.Appeal, error) {
	ok, err := s.store.UpdateStatus(ctx, appeal.ID, status, decision)
	if err != nil {
		logger.Errorf("Failed to update appeal #%d: %v", appeal.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}
	if !ok {
		// decided concurrently by another admin
		current, getErr := s.store.Get(ctx, appeal.ID)
		if getErr == nil && current != nil && current.Status.IsTerminal() {
			return current, &AlreadyProcessedError{AppealID: current.ID, Status: current.Status}
		}
		return nil, ErrUpdateFailed
	}

	stored, err := s.store.Get(ctx, appeal.ID)
	if err != nil || stored == nil {
		now := time.Now().UTC()
		appeal.Status = status
		appeal.AdminDecision = &decision
		appeal.ProcessedAt = &now
		return appeal, nil
	}
	return stored, nil
}

// Get returns the appeal or ErrAppealNotFound.
func (s *AppealService) Get(ctx context.Context, id uint) (*models.Appeal, error) {
	appeal, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appeal == nil {
		return nil, ErrAppealNotFound
	}
	return appeal, nil
}

// ListPending returns the review queue, oldest first.
func (s *AppealService) ListPending(ctx context.Context) ([]*models.Appeal, error) {
	return s.store.ListPending(ctx)
}

// RecentForUser returns the newest appeals of a user for /status.
func (s *AppealService) RecentForUser(ctx context.Context, userID int64) ([]*models.Appeal, error) {
	limit := s.cfg.Appeals.StatusLimit
	if limit <= 0 {
		limit = 5
	}
	return s.store.ListForUserLimit(ctx, userID, limit)
}

// Stats returns the per-status appeal counts.
func (s *AppealService) Stats(ctx context.Context) (storage.Stats, error) {
	return s.store.Stats(ctx)
}
