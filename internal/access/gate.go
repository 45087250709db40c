package access

import "errors"

// Level is the access level a command requires.
type Level int

const (
	// LevelMember allows the admin, allow-listed users in private chats and
	// anyone in an allow-listed group.
	LevelMember Level = iota
	// LevelAdmin allows only the admin.
	LevelAdmin
)

func (l Level) String() string {
	if l == LevelAdmin {
		return "admin"
	}
	return "member"
}

var (
	// ErrAdminOnly is returned for admin commands invoked by anyone else.
	ErrAdminOnly = errors.New("command is restricted to the bot admin")
	// ErrUnauthorized is returned when the user or group is not allow-listed.
	ErrUnauthorized = errors.New("user or chat is not allowed to use the bot")
)

// AllowList is the state the gate consults.
type AllowList interface {
	IsAdmin(userID int64) bool
	HasUser(userID int64) bool
	HasGroup(chatID int64) bool
}

// Gate decides whether a user may run a command in a chat.
type Gate struct {
	list AllowList
}

// NewGate creates a gate over list.
func NewGate(list AllowList) *Gate {
	return &Gate{list: list}
}

// IsPrivateChat reports whether chatID is a one-to-one conversation.
// Telegram gives private chats the (positive) user ID and groups negative IDs.
func IsPrivateChat(chatID int64) bool {
	return chatID > 0
}

// CanUse reports whether userID may run a command in chatID.
//
// Admin-only commands pass only for the admin. Otherwise the admin always
// passes; in private chats the user must be allow-listed; in groups only
// the group's allow-listing counts and the user list is not consulted.
func (g *Gate) CanUse(userID, chatID int64, requireAdmin bool) bool {
	if requireAdmin {
		return g.list.IsAdmin(userID)
	}
	if g.list.IsAdmin(userID) {
		return true
	}
	if IsPrivateChat(chatID) {
		return g.list.HasUser(userID)
	}
	return g.list.HasGroup(chatID)
}

// Authorize is CanUse with a typed denial.
func (g *Gate) Authorize(userID, chatID int64, level Level) error {
	if g.CanUse(userID, chatID, level == LevelAdmin) {
		return nil
	}
	if level == LevelAdmin {
		return ErrAdminOnly
	}
	return ErrUnauthorized
}
