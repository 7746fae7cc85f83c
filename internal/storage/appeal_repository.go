package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tg-appeals/internal/logger"
	"tg-appeals/internal/models"
)

var (
	// ErrPendingExists is returned by Create when the user already has a pending appeal.
	ErrPendingExists = errors.New("user already has a pending appeal")
	// ErrInvalidTransition is returned when the target status is not terminal.
	ErrInvalidTransition = errors.New("invalid appeal status transition")
)

const onePendingIndex = "idx_appeals_one_pending"

// Stats holds the number of appeals per status.
type Stats struct {
	Counts map[models.Status]int64
	Total  int64
}

// Count returns the number of appeals with the given status.
func (s Stats) Count(status models.Status) int64 {
	return s.Counts[status]
}

// AppealRepository handles database operations for Appeal
type AppealRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAppealRepository creates a new AppealRepository
func NewAppealRepository(db *gorm.DB) *AppealRepository {
	return &AppealRepository{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// MigrateTable ensures the appeals table and its indexes exist
func (r *AppealRepository) MigrateTable(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&models.Appeal{}); err != nil {
		return err
	}

	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON appeals (user_id) WHERE status = '%s'",
			onePendingIndex, models.StatusPending)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", onePendingIndex, err)
		}
	default:
		logger.Warningf("%s does not support partial indexes, one pending appeal per user is enforced in-process only",
			db.Dialector.Name())
	}

	return nil
}

// Create inserts a new pending appeal and returns its id
func (r *AppealRepository) Create(ctx context.Context, appeal *models.Appeal) (uint, error) {
	appeal.ID = 0
	appeal.Status = models.StatusPending
	appeal.AdminDecision = nil
	appeal.ProcessedAt = nil
	appeal.CreatedAt = r.now()

	if err := r.db.WithContext(ctx).Create(appeal).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, ErrPendingExists
		}
		return 0, err
	}

	logger.Infof("Created appeal #%d for user %d", appeal.ID, appeal.UserID)
	return appeal.ID, nil
}

// Get returns the appeal with the given id, or nil if it does not exist
func (r *AppealRepository) Get(ctx context.Context, id uint) (*models.Appeal, error) {
	var appeal models.Appeal
	result := r.db.WithContext(ctx).First(&appeal, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &appeal, nil
}

// GetPendingForUser returns the newest pending appeal of a user, or nil
func (r *AppealRepository) GetPendingForUser(ctx context.Context, userID int64) (*models.Appeal, error) {
	var appeal models.Appeal
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.StatusPending).
		Order("created_at DESC").Order("id DESC").
		First(&appeal)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &appeal, nil
}

// ListPending returns all pending appeals, oldest first
func (r *AppealRepository) ListPending(ctx context.Context) ([]*models.Appeal, error) {
	var appeals []*models.Appeal
	result := r.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").Order("id ASC").
		Find(&appeals)
	return appeals, result.Error
}

// ListForUser returns all appeals of a user, newest first
func (r *AppealRepository) ListForUser(ctx context.Context, userID int64) ([]*models.Appeal, error) {
	return r.ListForUserLimit(ctx, userID, 0)
}

// ListForUserLimit is ListForUser bounded to limit rows; limit <= 0 means all
func (r *AppealRepository) ListForUserLimit(ctx context.Context, userID int64, limit int) ([]*models.Appeal, error) {
	var appeals []*models.Appeal
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&appeals)
	return appeals, result.Error
}

// UpdateStatus moves a pending appeal to a terminal status, recording the
// decision text and processing time in the same statement. It returns false
// when the appeal does not exist or was already processed.
func (r *AppealRepository) UpdateStatus(ctx context.Context, id uint, status models.Status, decision string) (bool, error) {
	if !models.StatusPending.CanTransitionTo(status) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, models.StatusPending, status)
	}

	result := r.db.WithContext(ctx).Model(&models.Appeal{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"admin_decision": decision,
			"processed_at":   r.now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	updated := result.RowsAffected > 0
	if updated {
		logger.Infof("Updated appeal #%d status to %s", id, status)
	}
	return updated, nil
}

// Stats returns per-status counts and the total
func (r *AppealRepository) Stats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Status models.Status
		Count  int64
	}

	result := r.db.WithContext(ctx).Model(&models.Appeal{}).
		Select("status, COUNT(id) AS count").
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return Stats{}, result.Error
	}

	stats := Stats{Counts: make(map[models.Status]int64, len(models.AllStatuses))}
	for _, row := range rows {
		stats.Counts[row.Status] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

// Count returns the total number of appeals
func (r *AppealRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Appeal{}).Count(&count).Error
	return count, err
}

// CountForUser returns the number of appeals submitted by a user
func (r *AppealRepository) CountForUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Appeal{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, onePendingIndex)
}
