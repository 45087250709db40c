package access

import (
	"errors"
	"testing"
)

// staticList is an in-memory AllowList for gate tests.
type staticList struct {
	admin  int64
	users  map[int64]bool
	groups map[int64]bool
}

func (l staticList) IsAdmin(userID int64) bool  { return userID == l.admin }
func (l staticList) HasUser(userID int64) bool  { return l.users[userID] }
func (l staticList) HasGroup(chatID int64) bool { return l.groups[chatID] }

func TestGateCanUse(t *testing.T) {
	list := staticList{
		admin:  1,
		users:  map[int64]bool{10: true},
		groups: map[int64]bool{-500: true},
	}
	gate := NewGate(list)

	tests := []struct {
		name         string
		userID       int64
		chatID       int64
		requireAdmin bool
		want         bool
	}{
		{"admin private admin-only", 1, 1, true, true},
		{"admin in unknown group admin-only", 1, -999, true, true},
		{"admin private", 1, 1, false, true},
		{"admin in unknown group", 1, -999, false, true},
		{"allowed user admin-only", 10, 10, true, false},
		{"allowed user private", 10, 10, false, true},
		{"unknown user private", 20, 20, false, false},
		{"unknown user in allowed group", 20, -500, false, true},
		{"allowed user in unknown group", 10, -999, false, false},
		{"allowed user in allowed group admin-only", 10, -500, true, false},
		{"zero chat id is a group", 20, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gate.CanUse(tt.userID, tt.chatID, tt.requireAdmin); got != tt.want {
				t.Errorf("CanUse(%d, %d, %v) = %v, want %v", tt.userID, tt.chatID, tt.requireAdmin, got, tt.want)
			}
		})
	}
}

// Exhaustive check of the decision table over a small id space.
func TestGateProperties(t *testing.T) {
	const admin = 7
	users := map[int64]bool{2: true, 4: true}
	groups := map[int64]bool{-2: true, -4: true}
	gate := NewGate(staticList{admin: admin, users: users, groups: groups})

	for userID := int64(-5); userID <= 8; userID++ {
		for chatID := int64(-5); chatID <= 8; chatID++ {
			for _, requireAdmin := range []bool{false, true} {
				got := gate.CanUse(userID, chatID, requireAdmin)

				var want bool
				switch {
				case userID == admin:
					want = true
				case requireAdmin:
					want = false
				case chatID > 0:
					want = users[userID]
				default:
					want = groups[chatID]
				}
				if got != want {
					t.Errorf("CanUse(%d, %d, %v) = %v, want %v", userID, chatID, requireAdmin, got, want)
				}
			}
		}
	}
}

func TestGateAuthorize(t *testing.T) {
	gate := NewGate(staticList{admin: 1, users: map[int64]bool{10: true}})

	if err := gate.Authorize(1, 1, LevelAdmin); err != nil {
		t.Errorf("admin denied: %v", err)
	}
	if err := gate.Authorize(10, 10, LevelAdmin); !errors.Is(err, ErrAdminOnly) {
		t.Errorf("expected ErrAdminOnly, got %v", err)
	}
	if err := gate.Authorize(10, 10, LevelMember); err != nil {
		t.Errorf("allowed user denied: %v", err)
	}
	if err := gate.Authorize(99, 99, LevelMember); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGateWithStore(t *testing.T) {
	s, _ := newFileStore(t)
	_ = s.AddUser(10)
	_ = s.AddGroup(-500)
	gate := NewGate(s)

	if !gate.CanUse(10, 10, false) {
		t.Error("allow-listed user denied in private chat")
	}
	if gate.CanUse(10, -1, false) {
		t.Error("user allow-listing must not grant access in an unlisted group")
	}
	if !gate.CanUse(55, -500, false) {
		t.Error("any member of an allow-listed group should pass")
	}

	_ = s.RemoveGroup(-500)
	if gate.CanUse(55, -500, false) {
		t.Error("gate must see group removal immediately")
	}
}

func TestLevelString(t *testing.T) {
	if LevelAdmin.String() != "admin" || LevelMember.String() != "member" {
		t.Errorf("unexpected level names %q %q", LevelAdmin, LevelMember)
	}
}
