package models

// TogglesDocID is the well-known ID of the single toggles document
const TogglesDocID = "app"

// Toggles is the remotely-toggled feature document. A missing document
// or missing leaderboardLive field means the leaderboard is live: a
// fresh deployment must not hide the leaderboard by default.
type Toggles struct {
	ID              string          `json:"-" bson:"_id"`
	LeaderboardLive *bool           `json:"leaderboardLive,omitempty" bson:"leaderboardLive,omitempty"`
	Rounds          map[string]bool `json:"rounds,omitempty" bson:"rounds,omitempty"`
}

// IsLeaderboardLive resolves the live flag, defaulting to true
func (t *Toggles) IsLeaderboardLive() bool {
	if t == nil || t.LeaderboardLive == nil {
		return true
	}
	return *t.LeaderboardLive
}

// IsRoundActive reports whether a round toggle is switched on.
// Unknown rounds are inactive.
func (t *Toggles) IsRoundActive(roundKey string) bool {
	if t == nil || t.Rounds == nil {
		return false
	}
	return t.Rounds[roundKey]
}
