package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"quiz-portal-go/logging"
	"quiz-portal-go/services"

	"github.com/gorilla/mux"
)

// ToggleWriter flips the remote feature toggles
type ToggleWriter interface {
	SetLeaderboardLive(ctx context.Context, live bool) error
	SetRound(ctx context.Context, roundKey string, active bool) error
}

// AdminHandler exposes the operator surface: flipping toggles and
// awarding points. Every route requires the shared admin token; with no
// token configured the whole surface is disabled.
type AdminHandler struct {
	toggles     ToggleWriter
	teamService *services.TeamService
	token       string
	logger      *logging.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(toggles ToggleWriter, teamService *services.TeamService, token string) *AdminHandler {
	return &AdminHandler{
		toggles:     toggles,
		teamService: teamService,
		token:       token,
		logger:      logging.WithPrefix("Admin"),
	}
}

// RequireToken guards admin routes with the X-Admin-Token header
func (h *AdminHandler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			WriteError(w, http.StatusNotFound, "not found")
			return
		}
		provided := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
			h.logger.Warnf("Rejected admin request from %s", r.RemoteAddr)
			WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type setLiveRequest struct {
	Live bool `json:"live"`
}

// SetLive flips the leaderboard live flag. Flipping it off freezes the
// public leaderboard; flipping it back on triggers the reveal countdown.
func (h *AdminHandler) SetLive(w http.ResponseWriter, r *http.Request) {
	var req setLiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.toggles.SetLeaderboardLive(r.Context(), req.Live); err != nil {
		h.logger.Errorf("Failed to set live flag: %v", err)
		WriteError(w, http.StatusBadGateway, "service temporarily unavailable, please try again")
		return
	}
	h.logger.Infof("Leaderboard live flag set to %t", req.Live)
	WriteJSON(w, http.StatusOK, map[string]bool{"live": req.Live})
}

type setRoundRequest struct {
	Open bool `json:"open"`
}

// SetRound opens or closes a round
func (h *AdminHandler) SetRound(w http.ResponseWriter, r *http.Request) {
	roundID := mux.Vars(r)["round"]

	var req setRoundRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.toggles.SetRound(r.Context(), roundID, req.Open); err != nil {
		h.logger.Errorf("Failed to set round %s: %v", roundID, err)
		WriteError(w, http.StatusBadGateway, "service temporarily unavailable, please try again")
		return
	}
	h.logger.Infof("Round %s set to open=%t", roundID, req.Open)
	WriteJSON(w, http.StatusOK, map[string]interface{}{"round": roundID, "open": req.Open})
}

type awardPointsRequest struct {
	UserID string `json:"userId"`
	Delta  int    `json:"delta"`
}

// AwardPoints adjusts a user's score and re-syncs their team aggregate
func (h *AdminHandler) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var req awardPointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		WriteError(w, http.StatusBadRequest, "userId is required")
		return
	}

	total, err := h.teamService.AwardPoints(r.Context(), req.UserID, req.Delta)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.logger.Infof("Awarded %d points to %s (total now %d)", req.Delta, req.UserID, total)
	WriteJSON(w, http.StatusOK, map[string]interface{}{"userId": req.UserID, "points": total})
}
