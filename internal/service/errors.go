package service

import (
	"errors"
	"fmt"

	"tg-appeals/internal/models"
)

var (
	ErrNotBanned       = errors.New("user is not banned in the main group")
	ErrMembershipCheck = errors.New("failed to check membership")
	ErrAppealNotFound  = errors.New("appeal not found")
	ErrUnbanFailed     = errors.New("unban failed")
	ErrUpdateFailed    = errors.New("failed to update appeal status")
)

// ValidationError carries the translation key of the violated rule.
type ValidationError struct {
	Key string
}

func (e *ValidationError) Error() string {
	return "invalid appeal text: " + e.Key
}

// PendingExistsError is returned when the user already waits for a decision.
type PendingExistsError struct {
	AppealID uint
}

func (e *PendingExistsError) Error() string {
	return fmt.Sprintf("user already has pending appeal #%d", e.AppealID)
}

// AlreadyProcessedError is returned when an admin acts on a decided appeal.
type AlreadyProcessedError struct {
	AppealID uint
	Status   models.Status
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("appeal #%d is already %s", e.AppealID, e.Status)
}
