package handlers

import (
	"net/http"

	"quiz-portal-go/services"

	"github.com/gorilla/mux"
)

// RoundHandler serves round status and content
type RoundHandler struct {
	roundService *services.RoundService
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(roundService *services.RoundService) *RoundHandler {
	return &RoundHandler{roundService: roundService}
}

// Status reports whether a round is currently open
func (h *RoundHandler) Status(w http.ResponseWriter, r *http.Request) {
	roundID := mux.Vars(r)["round"]

	open, err := h.roundService.RoundStatus(r.Context(), roundID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"round": roundID,
		"open":  open,
	})
}

// Content returns an open round's config and questions
func (h *RoundHandler) Content(w http.ResponseWriter, r *http.Request) {
	roundID := mux.Vars(r)["round"]

	content, err := h.roundService.Content(r.Context(), roundID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, content)
}
