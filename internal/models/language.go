package models

// Language constants
const (
	LangRussian = "ru"
	LangEnglish = "en"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangRussian: {
		"help_message": "🤖 <b>Бот %[1]s для подачи апелляций</b>\n\n" +
			"Если вас заблокировали в нашей группе и вы считаете это ошибкой, вы можете подать апелляцию здесь.\n\n" +
			"Используйте: <code>/appeal [ваше объяснение]</code>\n\n" +
			"<b>Пример:</b>\n<code>/appeal Я обсуждал гоночную стратегию, а не оскорблял участников.</code>\n\n" +
			"Апелляции рассматриваются администраторами в течение 24 часов.\n\n" +
			"<b>Команды:</b>\n" +
			"• <code>/appeal [текст]</code> - Подать апелляцию\n" +
			"• <code>/status</code> - Проверить статус апелляций\n" +
			"• <code>/help</code> - Показать это справочное сообщение",

		// Command descriptions for Telegram command menu
		"cmd_desc_start":   "Начать работу с ботом",
		"cmd_desc_help":    "Показать справку",
		"cmd_desc_appeal":  "Подать апелляцию",
		"cmd_desc_status":  "Статус ваших апелляций",
		"cmd_desc_approve": "Одобрить апелляцию",
		"cmd_desc_reject":  "Отклонить апелляцию",
		"cmd_desc_info":    "Подробности апелляции",
		"cmd_desc_pending": "Ожидающие апелляции",
		"cmd_desc_stats":   "Статистика апелляций",

		"appeal_usage":      "❌ Пожалуйста, предоставьте объяснение для апелляции.\n\nПример: <code>/appeal Я обсуждал гоночную стратегию, а не оскорблял.</code>",
		"appeal_edit_usage": "❌ Пожалуйста, добавьте текст апелляции после команды <code>/appeal</code>.",

		"msg_appeal_empty":     "Текст апелляции не может быть пустым",
		"msg_appeal_too_short": "Текст апелляции должен содержать не менее %d символов",
		"msg_appeal_too_long":  "Текст апелляции должен быть не длиннее %d символов",
		"validation_error":     "❌ %s",

		"not_banned":              "ℹ️ Вы не заблокированы в группе %s. Апелляции могут подавать только заблокированные пользователи.",
		"membership_check_failed": "❌ Не удалось проверить ваш статус в группе. Попробуйте еще раз позже.",
		"pending_exists":          "⏳ У вас уже есть незавершенная апелляция (#%d). Пожалуйста, дождитесь рассмотрения администратором.",
		"appeal_submitted":        "✅ Апелляция подана успешно!\nID апелляции: #%d\n\nАдминистраторы рассмотрят ваше дело в течение 24 часов.",
		"appeal_submit_failed":    "❌ Не удалось подать апелляцию. Попробуйте еще раз позже.",

		"admin_new_appeal": "🆕 <b>Новая апелляция</b> #%[1]d\n\n" +
			"👤 <b>Пользователь:</b> %[2]s\n" +
			"🆔 <b>ID:</b> <code>%[3]d</code>\n" +
			"📝 <b>Апелляция:</b> %[4]s\n\n" +
			"<b>Действия:</b>\n" +
			"• <code>/approve %[1]d</code> - Разблокировать пользователя\n" +
			"• <code>/reject %[1]d [причина]</code> - Отклонить апелляцию\n" +
			"• <code>/info %[1]d</code> - Подробности",

		"status_none":     "У вас нет зарегистрированных апелляций.",
		"status_title":    "📋 <b>Ваши апелляции:</b>",
		"status_pending":  "На рассмотрении",
		"status_approved": "Одобрена",
		"status_rejected": "Отклонена",

		"approve_usage":     "❌ Укажите ID апелляции: <code>/approve 123</code>",
		"reject_usage":      "❌ Укажите ID апелляции: <code>/reject 123 [причина]</code>",
		"info_usage":        "❌ Укажите ID апелляции: <code>/info 123</code>",
		"invalid_id":        "❌ Неверный ID апелляции.",
		"not_found":         "❌ Апелляция не найдена.",
		"already_processed": "❌ Апелляция #%d уже %s.",
		"unban_failed":      "❌ Не удалось разблокировать пользователя. Ошибка: %s",
		"approved_admin":    "✅ Апелляция #%d одобрена. Пользователь %s разблокирован.",
		"rejected_admin":    "❌ Апелляция #%d отклонена.",
		"update_failed":     "❌ Не удалось обновить статус апелляции.",
		"generic_failure":   "❌ Что-то пошло не так. Попробуйте еще раз позже.",

		"decision_approved":    "Одобрена",
		"decision_approved_by": "Одобрена администратором %s",
		"decision_rejected":    "Отклонена: %s",
		"decision_rejected_by": "Отклонена администратором %s: %s",
		"reason_not_given":     "Причина не указана",

		"notify_approved": "✅ Отличные новости! Ваша апелляция #%d была одобрена.\n\n" +
			"Теперь вы можете присоединиться к группе %s. Пожалуйста, соблюдайте правила сообщества.",
		"notify_rejected": "❌ Ваша апелляция #%d была отклонена.\n\n" +
			"<b>Причина:</b> %s\n\n" +
			"Вы можете подать новую апелляцию, если у вас есть дополнительная информация.",

		"info_title":     "📋 <b>Апелляция #%d</b>",
		"info_user":      "👤 <b>Пользователь:</b> %s",
		"info_user_id":   "🆔 <b>ID пользователя:</b> <code>%d</code>",
		"info_submitted": "📅 <b>Подана:</b> %s UTC",
		"info_text":      "📝 <b>Текст апелляции:</b> %s",
		"info_status":    "🔄 <b>Статус:</b> %s",
		"info_decision":  "⚖️ <b>Решение:</b> %s",
		"info_processed": "✅ <b>Обработана:</b> %s UTC",

		"pending_none":  "✅ Нет ожидающих апелляций.",
		"pending_title": "⏳ <b>Ожидающие апелляции:</b>",

		"stats_title": "📊 <b>Статистика апелляций</b>",
		"stats_total": "<b>Всего апелляций:</b> %d",
		"stats_line":  "%s <b>%s:</b> %d",
	},
	LangEnglish: {
		"help_message": "🤖 <b>%[1]s appeals bot</b>\n\n" +
			"If you were banned from our group and believe it was a mistake, you can submit an appeal here.\n\n" +
			"Use: <code>/appeal [your explanation]</code>\n\n" +
			"<b>Example:</b>\n<code>/appeal I was discussing race strategy, not insulting anyone.</code>\n\n" +
			"Appeals are reviewed by administrators within 24 hours.\n\n" +
			"<b>Commands:</b>\n" +
			"• <code>/appeal [text]</code> - Submit an appeal\n" +
			"• <code>/status</code> - Check the status of your appeals\n" +
			"• <code>/help</code> - Show this help message",

		"cmd_desc_start":   "Start the bot",
		"cmd_desc_help":    "Show help",
		"cmd_desc_appeal":  "Submit an appeal",
		"cmd_desc_status":  "Status of your appeals",
		"cmd_desc_approve": "Approve an appeal",
		"cmd_desc_reject":  "Reject an appeal",
		"cmd_desc_info":    "Appeal details",
		"cmd_desc_pending": "Pending appeals",
		"cmd_desc_stats":   "Appeal statistics",

		"appeal_usage":      "❌ Please provide an explanation for your appeal.\n\nExample: <code>/appeal I was discussing race strategy, not insulting anyone.</code>",
		"appeal_edit_usage": "❌ Please add the appeal text after the <code>/appeal</code> command.",

		"msg_appeal_empty":     "Appeal text cannot be empty",
		"msg_appeal_too_short": "Appeal text must be at least %d characters long",
		"msg_appeal_too_long":  "Appeal text must be at most %d characters long",
		"validation_error":     "❌ %s",

		"not_banned":              "ℹ️ You are not banned in %s. Only banned users can submit appeals.",
		"membership_check_failed": "❌ Could not verify your status in the group. Please try again later.",
		"pending_exists":          "⏳ You already have a pending appeal (#%d). Please wait for an administrator to review it.",
		"appeal_submitted":        "✅ Appeal submitted successfully!\nAppeal ID: #%d\n\nAdministrators will review your case within 24 hours.",
		"appeal_submit_failed":    "❌ Failed to submit the appeal. Please try again later.",

		"admin_new_appeal": "🆕 <b>New appeal</b> #%[1]d\n\n" +
			"👤 <b>User:</b> %[2]s\n" +
			"🆔 <b>ID:</b> <code>%[3]d</code>\n" +
			"📝 <b>Appeal:</b> %[4]s\n\n" +
			"<b>Actions:</b>\n" +
			"• <code>/approve %[1]d</code> - Unban the user\n" +
			"• <code>/reject %[1]d [reason]</code> - Reject the appeal\n" +
			"• <code>/info %[1]d</code> - Details",

		"status_none":     "You have no registered appeals.",
		"status_title":    "📋 <b>Your appeals:</b>",
		"status_pending":  "Pending",
		"status_approved": "Approved",
		"status_rejected": "Rejected",

		"approve_usage":     "❌ Please provide an appeal ID: <code>/approve 123</code>",
		"reject_usage":      "❌ Please provide an appeal ID: <code>/reject 123 [reason]</code>",
		"info_usage":        "❌ Please provide an appeal ID: <code>/info 123</code>",
		"invalid_id":        "❌ Invalid appeal ID.",
		"not_found":         "❌ Appeal not found.",
		"already_processed": "❌ Appeal #%d is already %s.",
		"unban_failed":      "❌ Failed to unban user. Error: %s",
		"approved_admin":    "✅ Appeal #%d approved. User %s has been unbanned.",
		"rejected_admin":    "❌ Appeal #%d rejected.",
		"update_failed":     "❌ Failed to update the appeal status.",
		"generic_failure":   "❌ Something went wrong. Please try again later.",

		"decision_approved":    "Approved",
		"decision_approved_by": "Approved by %s",
		"decision_rejected":    "Rejected: %s",
		"decision_rejected_by": "Rejected by %s: %s",
		"reason_not_given":     "No reason given",

		"notify_approved": "✅ Good news! Your appeal #%d has been approved.\n\n" +
			"You can now rejoin %s. Please follow the community rules.",
		"notify_rejected": "❌ Your appeal #%d has been rejected.\n\n" +
			"<b>Reason:</b> %s\n\n" +
			"You may submit a new appeal if you have additional information.",

		"info_title":     "📋 <b>Appeal #%d</b>",
		"info_user":      "👤 <b>User:</b> %s",
		"info_user_id":   "🆔 <b>User ID:</b> <code>%d</code>",
		"info_submitted": "📅 <b>Submitted:</b> %s UTC",
		"info_text":      "📝 <b>Appeal Text:</b> %s",
		"info_status":    "🔄 <b>Status:</b> %s",
		"info_decision":  "⚖️ <b>Admin Decision:</b> %s",
		"info_processed": "✅ <b>Processed:</b> %s UTC",

		"pending_none":  "✅ No pending appeals.",
		"pending_title": "⏳ <b>Pending Appeals:</b>",

		"stats_title": "📊 <b>Appeals Statistics</b>",
		"stats_total": "<b>Total Appeals:</b> %d",
		"stats_line":  "%s <b>%s:</b> %d",
	},
}

// GetTranslation returns the correct translation for a given language code and key
func GetTranslation(lang, key string) string {
	// Default to Russian if language not supported
	if _, ok := Translations[lang]; !ok {
		lang = LangRussian
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	// Fall back to Russian if key not found in specified language
	if translation, ok := Translations[LangRussian][key]; ok {
		return translation
	}

	// Return the key itself if translation not found
	return key
}

// GetLanguageName returns the localized name of a language code
func GetLanguageName(langCode string) string {
	switch langCode {
	case LangRussian:
		return "Русский"
	case LangEnglish:
		return "English"
	default:
		return langCode
	}
}

// StatusLabel returns the translated label of a status.
func StatusLabel(lang string, s Status) string {
	return GetTranslation(lang, "status_"+string(s))
}
