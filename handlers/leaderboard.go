package handlers

import (
	"net/http"
	"strconv"

	"quiz-portal-go/services"
)

// LeaderboardHandler serves one-shot leaderboard reads. Live updates
// flow through the SSE handler instead.
type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboard *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// TopTeams returns the current top teams along with the live flag
func (h *LeaderboardHandler) TopTeams(w http.ResponseWriter, r *http.Request) {
	n := services.DefaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		n = parsed
	}

	teams, err := h.leaderboard.TopTeams(r.Context(), n)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	live, err := h.leaderboard.LiveFlag(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"teams": teams,
		"live":  live,
	})
}

// LiveFlag returns just the leaderboard live flag
func (h *LeaderboardHandler) LiveFlag(w http.ResponseWriter, r *http.Request) {
	live, err := h.leaderboard.LiveFlag(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"live": live})
}
