package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"tg-appeals/internal/logger"
	"tg-appeals/internal/models"
	"tg-appeals/internal/service"
)

// handleHelp sends the help text; /start shows the same message
func (h *Handler) handleHelp(ctx context.Context, req Request) error {
	logger.Infof("/%s used by user %d", req.Command, req.From.ID)
	return h.reply(ctx, req, h.tf("help_message", escape(h.community)))
}

func (h *Handler) handleAppeal(ctx context.Context, req Request) error {
	if req.Payload == "" {
		return h.reply(ctx, req, h.t("appeal_usage"))
	}
	return h.submitAppeal(ctx, req, req.Payload)
}

// handleEditedAppeal processes an /appeal message after the user edited it
func (h *Handler) handleEditedAppeal(ctx context.Context, req Request) error {
	if req.Payload == "" {
		return h.reply(ctx, req, h.t("appeal_edit_usage"))
	}
	return h.submitAppeal(ctx, req, req.Payload)
}

func (h *Handler) submitAppeal(ctx context.Context, req Request, text string) error {
	incrementCounter(&totalSubmissions)

	appeal, err := h.appeals.Submit(ctx, service.Submitter{
		UserID:    req.From.ID,
		Username:  req.From.Username,
		FirstName: req.From.FirstName,
		Message:   req.Text,
	}, text)

	var (
		validationErr *service.ValidationError
		pendingErr    *service.PendingExistsError
	)
	switch {
	case err == nil:
	case errors.As(err, &validationErr):
		return h.reply(ctx, req, h.tf("validation_error", h.validationMessage(validationErr.Key)))
	case errors.Is(err, service.ErrNotBanned):
		return h.reply(ctx, req, h.tf("not_banned", escape(h.community)))
	case errors.Is(err, service.ErrMembershipCheck):
		return h.reply(ctx, req, h.t("membership_check_failed"))
	case errors.As(err, &pendingErr):
		return h.reply(ctx, req, h.tf("pending_exists", pendingErr.AppealID))
	default:
		incrementCounter(&totalErrors)
		logger.Errorf("Failed to create appeal for user %d: %v", req.From.ID, err)
		return h.reply(ctx, req, h.t("appeal_submit_failed"))
	}

	if err := h.reply(ctx, req, h.tf("appeal_submitted", appeal.ID)); err != nil {
		logger.Warningf("Appeal #%d stored but confirmation was not delivered", appeal.ID)
	}
	h.notifyAdmins(ctx, appeal)
	return nil
}

func (h *Handler) validationMessage(key string) string {
	if arg, ok := service.ValidationMessageArg(key); ok {
		return h.tf(key, arg)
	}
	return h.t(key)
}

// handleStatus lists the caller's newest appeals
func (h *Handler) handleStatus(ctx context.Context, req Request) error {
	appeals, err := h.appeals.RecentForUser(ctx, req.From.ID)
	if err != nil {
		incrementCounter(&totalErrors)
		logger.Errorf("Failed to load appeals of user %d: %v", req.From.ID, err)
		return h.reply(ctx, req, h.t("generic_failure"))
	}

	if len(appeals) == 0 {
		return h.reply(ctx, req, h.t("status_none"))
	}

	return h.reply(ctx, req, h.formatStatus(appeals))
}

// parseAppealID reads the appeal id argument, replying on bad input.
func (h *Handler) parseAppealID(ctx context.Context, req Request, usageKey string) (uint, bool) {
	if len(req.Args) == 0 {
		_ = h.reply(ctx, req, h.t(usageKey))
		return 0, false
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(req.Args[0], "#"), 10, 64)
	if err != nil || id == 0 {
		_ = h.reply(ctx, req, h.t("invalid_id"))
		return 0, false
	}
	return uint(id), true
}

func adminFrom(req Request) service.Admin {
	return service.Admin{
		UserID:    req.From.ID,
		Username:  req.From.Username,
		FirstName: req.From.FirstName,
	}
}

// replyLookupError renders the errors shared by the admin commands.
func (h *Handler) replyLookupError(ctx context.Context, req Request, err error) error {
	var processedErr *service.AlreadyProcessedError
	switch {
	case errors.Is(err, service.ErrAppealNotFound):
		return h.reply(ctx, req, h.t("not_found"))
	case errors.As(err, &processedErr):
		label := strings.ToLower(models.StatusLabel(h.language, processedErr.Status))
		return h.reply(ctx, req, h.tf("already_processed", processedErr.AppealID, label))
	case errors.Is(err, service.ErrUpdateFailed):
		return h.reply(ctx, req, h.t("update_failed"))
	default:
		incrementCounter(&totalErrors)
		logger.Errorf("/%s failed: %v", req.Command, err)
		return h.reply(ctx, req, h.t("generic_failure"))
	}
}

func (h *Handler) handleApprove(ctx context.Context, req Request) error {
	id, ok := h.parseAppealID(ctx, req, "approve_usage")
	if !ok {
		return nil
	}

	appeal, result, err := h.appeals.Approve(ctx, id, adminFrom(req))
	if errors.Is(err, service.ErrUnbanFailed) {
		return h.reply(ctx, req, h.tf("unban_failed", escape(result.Message())))
	}
	if err != nil {
		return h.replyLookupError(ctx, req, err)
	}

	logger.Infof("Appeal #%d approved by admin %d", appeal.ID, req.From.ID)
	_ = h.reply(ctx, req, h.tf("approved_admin", appeal.ID, escape(appeal.DisplayName())))
	h.notifyDecision(ctx, appeal, "")
	return nil
}

func (h *Handler) handleReject(ctx context.Context, req Request) error {
	id, ok := h.parseAppealID(ctx, req, "reject_usage")
	if !ok {
		return nil
	}

	reason := strings.Join(req.Args[1:], " ")
	if reason == "" {
		reason = h.t("reason_not_given")
	}

	appeal, err := h.appeals.Reject(ctx, id, reason, adminFrom(req))
	if err != nil {
		return h.replyLookupError(ctx, req, err)
	}

	logger.Infof("Appeal #%d rejected by admin %d", appeal.ID, req.From.ID)
	_ = h.reply(ctx, req, h.tf("rejected_admin", appeal.ID))
	h.notifyDecision(ctx, appeal, reason)
	return nil
}

func (h *Handler) handleInfo(ctx context.Context, req Request) error {
	id, ok := h.parseAppealID(ctx, req, "info_usage")
	if !ok {
		return nil
	}

	appeal, err := h.appeals.Get(ctx, id)
	if err != nil {
		return h.replyLookupError(ctx, req, err)
	}

	return h.reply(ctx, req, h.formatAppealInfo(appeal))
}

func (h *Handler) handlePending(ctx context.Context, req Request) error {
	appeals, err := h.appeals.ListPending(ctx)
	if err != nil {
		return h.replyLookupError(ctx, req, err)
	}

	if len(appeals) == 0 {
		return h.reply(ctx, req, h.t("pending_none"))
	}

	return h.reply(ctx, req, h.formatPending(appeals))
}

func (h *Handler) handleStats(ctx context.Context, req Request) error {
	stats, err := h.appeals.Stats(ctx)
	if err != nil {
		return h.replyLookupError(ctx, req, err)
	}

	return h.reply(ctx, req, h.formatStats(stats))
}
