package handler

import (
	"context"

	"tg-appeals/internal/logger"
	"tg-appeals/internal/models"
)

// notifyAdmins posts a new appeal to the admin chat. Failures are logged
// only; the appeal is already stored.
func (h *Handler) notifyAdmins(ctx context.Context, appeal *models.Appeal) {
	if err := h.sender.Send(ctx, h.adminChatID, h.formatAdminNotice(appeal)); err != nil {
		incrementCounter(&totalNotifyFailures)
		logger.Errorf("Failed to notify admins about appeal #%d: %v", appeal.ID, err)
	}
}

// notifyDecision tells the submitter about a decision in their private chat.
// reason is used for rejections only.
func (h *Handler) notifyDecision(ctx context.Context, appeal *models.Appeal, reason string) {
	var text string
	switch appeal.Status {
	case models.StatusApproved:
		text = h.tf("notify_approved", appeal.ID, escape(h.community))
	case models.StatusRejected:
		if reason == "" {
			reason = h.t("reason_not_given")
		}
		text = h.tf("notify_rejected", appeal.ID, escape(reason))
	default:
		return
	}

	if err := h.sender.Send(ctx, appeal.UserID, text); err != nil {
		incrementCounter(&totalNotifyFailures)
		logger.Errorf("Failed to notify user %d about appeal #%d: %v", appeal.UserID, appeal.ID, err)
		return
	}
	logger.Infof("User %d notified about appeal #%d (%s)", appeal.UserID, appeal.ID, appeal.Status)
}
