package handler

import (
	"fmt"
	"html"
	"strings"
	"time"

	"tg-appeals/internal/models"
	"tg-appeals/internal/storage"
)

const dateTimeLayout = "2006-01-02 15:04"

// escape makes user supplied text safe for HTML parse mode
func escape(s string) string {
	return html.EscapeString(s)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return t.UTC().Format(dateTimeLayout)
}

func (h *Handler) formatAdminNotice(appeal *models.Appeal) string {
	return h.tf("admin_new_appeal",
		appeal.ID,
		escape(appeal.DisplayName()),
		appeal.UserID,
		escape(appeal.AppealText),
	)
}

func (h *Handler) formatStatus(appeals []*models.Appeal) string {
	var sb strings.Builder
	sb.WriteString(h.t("status_title"))
	sb.WriteString("\n\n")

	for _, appeal := range appeals {
		fmt.Fprintf(&sb, "%s <b>#%d</b> - %s\n", appeal.Status.Emoji(), appeal.ID,
			models.StatusLabel(h.language, appeal.Status))
		fmt.Fprintf(&sb, "📅 %s\n", formatDateTime(appeal.CreatedAt))
		if decision := appeal.Decision(); decision != "" {
			fmt.Fprintf(&sb, "💬 %s\n", escape(decision))
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) formatAppealInfo(appeal *models.Appeal) string {
	lines := []string{
		h.tf("info_title", appeal.ID),
		"",
		h.tf("info_user", escape(appeal.DisplayName())),
		h.tf("info_user_id", appeal.UserID),
		h.tf("info_submitted", formatDateTime(appeal.CreatedAt)),
		h.tf("info_text", escape(appeal.AppealText)),
		h.tf("info_status", appeal.Status.Emoji()+" "+models.StatusLabel(h.language, appeal.Status)),
	}

	if decision := appeal.Decision(); decision != "" {
		lines = append(lines, h.tf("info_decision", escape(decision)))
	}
	if appeal.ProcessedAt != nil {
		lines = append(lines, h.tf("info_processed", formatDateTime(*appeal.ProcessedAt)))
	}

	return strings.Join(lines, "\n")
}

func (h *Handler) formatPending(appeals []*models.Appeal) string {
	var sb strings.Builder
	sb.WriteString(h.t("pending_title"))
	sb.WriteString("\n\n")

	for _, appeal := range appeals {
		fmt.Fprintf(&sb, "#%d - %s - %s\n", appeal.ID, escape(appeal.DisplayName()), formatDateTime(appeal.CreatedAt))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (h *Handler) formatStats(stats storage.Stats) string {
	var sb strings.Builder
	sb.WriteString(h.t("stats_title"))
	sb.WriteString("\n\n")
	sb.WriteString(h.tf("stats_total", stats.Total))

	var lines []string
	for _, status := range models.AllStatuses {
		if count := stats.Count(status); count > 0 {
			lines = append(lines, h.tf("stats_line", status.Emoji(), models.StatusLabel(h.language, status), count))
		}
	}
	if len(lines) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(strings.Join(lines, "\n"))
	}

	return sb.String()
}
