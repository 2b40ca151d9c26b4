package handlers

import (
	"net/http"

	"quiz-portal-go/logging"
	"quiz-portal-go/middleware"
	"quiz-portal-go/models"
	"quiz-portal-go/services"
)

// TeamHandler handles team registry HTTP requests
type TeamHandler struct {
	teamService *services.TeamService
	logger      *logging.Logger
}

// NewTeamHandler creates a new team handler
func NewTeamHandler(teamService *services.TeamService) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
		logger:      logging.WithPrefix("TeamHandler"),
	}
}

type createTeamRequest struct {
	Name    string `json:"name"`
	MaxSize int    `json:"maxSize"`
}

type joinTeamRequest struct {
	Code string `json:"code"`
}

// Create registers a new team with the requester as leader
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	team, err := h.teamService.CreateTeam(r.Context(), req.Name, user.ID, req.MaxSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, team)
}

// Join adds the requester to the team matching the invite code
func (h *TeamHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req joinTeamRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	team, err := h.teamService.JoinTeam(r.Context(), req.Code, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, team)
}

// Leave removes the requester from their current team
func (h *TeamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if user.TeamID == "" {
		WriteError(w, http.StatusBadRequest, "you are not in a team")
		return
	}

	if err := h.teamService.LeaveTeam(r.Context(), user.TeamID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// MyTeam returns the requester's current team
func (h *TeamHandler) MyTeam(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if user.TeamID == "" {
		WriteJSON(w, http.StatusOK, nil)
		return
	}

	team, err := h.teamService.GetTeam(r.Context(), user.TeamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, team)
}

// UpdateSettings applies team settings changes. Only the team leader
// may change settings.
func (h *TeamHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if user.TeamID == "" {
		WriteError(w, http.StatusBadRequest, "you are not in a team")
		return
	}

	team, err := h.teamService.GetTeam(r.Context(), user.TeamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if team.LeaderID != user.ID {
		WriteError(w, http.StatusForbidden, "only the team leader can change settings")
		return
	}

	var update services.TeamSettingsUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	if err := h.teamService.UpdateTeamSettings(r.Context(), user.TeamID, update); err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := h.teamService.GetTeam(r.Context(), user.TeamID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// UpdateProfile updates the requester's profile and cascades the change
// into their team's member snapshot
func (h *TeamHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var update models.ProfileUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	if err := h.teamService.UpdateUserProfile(r.Context(), user.ID, update); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
