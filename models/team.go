package models

import (
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// InviteCodeLength is the length of team invite codes
	InviteCodeLength = 6

	// inviteCodeAlphabet avoids easily-confused characters (0/O, 1/I/L)
	inviteCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	// Team name length bounds
	MinTeamNameLength = 3
	MaxTeamNameLength = 32
)

// TeamMember is a denormalized snapshot of a user on a team roster.
// Username and avatar are cached copies; the user document stays the
// source of truth and profile updates cascade into the snapshot.
type TeamMember struct {
	UserID   string    `json:"uid" bson:"uid"`
	Username string    `json:"username" bson:"username"`
	Avatar   int       `json:"avatar" bson:"avatar"`
	JoinedAt time.Time `json:"joinedAt" bson:"joinedAt"`
}

// Team represents a competing team
type Team struct {
	ID        string       `json:"id" bson:"_id"`
	Name      string       `json:"teamName" bson:"teamName"`
	Code      string       `json:"teamCode" bson:"teamCode"`
	LeaderID  string       `json:"leaderId" bson:"leaderId"`
	Members   []TeamMember `json:"members" bson:"members"`
	MaxSize   int          `json:"maxSize" bson:"maxSize"`
	Points    int          `json:"points" bson:"points"`
	CreatedAt time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time    `json:"lastUpdated" bson:"lastUpdated"`
}

// HasMember reports whether the user is on the roster
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the roster has reached maxSize
func (t *Team) IsFull() bool {
	return len(t.Members) >= t.MaxSize
}

// MemberIDs returns the user IDs of all current members in roster order
func (t *Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// NewInviteCode generates a random invite code. Uniqueness is enforced
// by the store's unique index plus a retry loop in the team service.
func NewInviteCode() (string, error) {
	code, err := gonanoid.Generate(inviteCodeAlphabet, InviteCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	return code, nil
}

// NormalizeInviteCode upper-cases and trims a user-supplied code
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateTeamName checks team name length after trimming
func ValidateTeamName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < MinTeamNameLength {
		return fmt.Errorf("team name must be at least %d characters", MinTeamNameLength)
	}
	if len(trimmed) > MaxTeamNameLength {
		return fmt.Errorf("team name must be at most %d characters", MaxTeamNameLength)
	}
	return nil
}

// ValidateInviteCode checks the shape of a normalized invite code
func ValidateInviteCode(code string) error {
	if len(code) != InviteCodeLength {
		return fmt.Errorf("invite code must be exactly %d characters", InviteCodeLength)
	}
	for _, r := range code {
		if !strings.ContainsRune(inviteCodeAlphabet, r) {
			return fmt.Errorf("invite code contains invalid character %q", r)
		}
	}
	return nil
}
