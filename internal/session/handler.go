package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"courier/internal/auth"
	"courier/internal/models"
	"courier/internal/web"
)

type Handler struct {
	sessions *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{sessions: s}
}

// ActiveSessions lists the caller's active, non-expired sessions for the
// logout-elsewhere UI.
func (h *Handler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}

	sessions, err := h.sessions.ListActive(r.Context(), id.User.ID)
	if err != nil {
		log.Error().Err(err).Msg("list active sessions")
		web.Error(w, http.StatusInternalServerError, "failed to list sessions, please try again")
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}

	w.Header().Set("Cache-Control", "no-store")
	web.JSON(w, http.StatusOK, sessions)
}

// TerminateSession deactivates one session owned by the caller.
func (h *Handler) TerminateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sess, err := h.sessions.Terminate(r.Context(), id.User.ID, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.Error(w, http.StatusNotFound, "session not found or already terminated")
			return
		}
		log.Error().Err(err).Msg("terminate session")
		web.Error(w, http.StatusInternalServerError, "failed to terminate session, please try again")
		return
	}

	web.JSON(w, http.StatusOK, sess)
}
