package service

import (
	"context"

	"github.com/mymmrac/telego"

	"tg-appeals/internal/logger"
)

// MembershipChecker reports whether a user is banned in the main group.
type MembershipChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// TelegramMembershipChecker looks the user up with getChatMember.
type TelegramMembershipChecker struct {
	api     ChatMemberAPI
	groupID int64
}

// NewTelegramMembershipChecker creates a checker for groupID
func NewTelegramMembershipChecker(api ChatMemberAPI, groupID int64) *TelegramMembershipChecker {
	return &TelegramMembershipChecker{api: api, groupID: groupID}
}

// IsBanned is true only for the "kicked" member status.
func (c *TelegramMembershipChecker) IsBanned(ctx context.Context, userID int64) (bool, error) {
	member, err := c.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: c.groupID},
		UserID: userID,
	})
	if err != nil {
		return false, err
	}

	status := member.MemberStatus()
	logger.Debugf("User %d has status %q in group %d", userID, status, c.groupID)
	return status == telego.MemberStatusBanned, nil
}
