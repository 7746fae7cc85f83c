package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Status is the lifecycle state of an appeal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// AllStatuses in display order.
var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected}

// ParseStatus converts a stored value into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown appeal status: %q", s)
	}
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo allows only pending -> approved and pending -> rejected.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

func (s Status) Emoji() string {
	switch s {
	case StatusPending:
		return "⏳"
	case StatusApproved:
		return "✅"
	case StatusRejected:
		return "❌"
	default:
		return "❓"
	}
}

// Appeal is a request for reinstatement submitted by a removed user.
type Appeal struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	UserID          int64     `gorm:"index;not null"`
	Username        *string   `gorm:"size:255"`
	FirstName       *string   `gorm:"size:255"`
	AppealText      string    `gorm:"type:text;not null"`
	OriginalMessage *string   `gorm:"type:text"`
	Status          Status    `gorm:"type:varchar(16);index;not null;default:pending"`
	AdminDecision   *string   `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index;not null;autoCreateTime:false"`
	ProcessedAt     *time.Time
}

// TableName - set the table name.
func (Appeal) TableName() string {
	return "appeals"
}

// AfterFind rejects rows whose status is not one of the known values.
func (a *Appeal) AfterFind(*gorm.DB) error {
	status, err := ParseStatus(string(a.Status))
	if err != nil {
		return fmt.Errorf("appeal #%d: %w", a.ID, err)
	}
	a.Status = status
	return nil
}

// DisplayName returns "First (@username)", falling back to "Unknown".
func (a *Appeal) DisplayName() string {
	return FormatUserMention(deref(a.FirstName), deref(a.Username))
}

// Decision returns the stored admin decision or an empty string.
func (a *Appeal) Decision() string {
	return deref(a.AdminDecision)
}

// FormatUserMention formats a user for display.
func FormatUserMention(firstName, username string) string {
	name := firstName
	if name == "" {
		name = "Unknown"
	}
	if username != "" {
		return fmt.Sprintf("%s (@%s)", name, username)
	}
	return name
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
