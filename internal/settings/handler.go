package settings

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"courier/internal/auth"
	"courier/internal/web"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}

	s, err := h.svc.Get(r.Context(), id.User.ID)
	if err != nil {
		log.Error().Err(err).Msg("get settings")
		web.Error(w, http.StatusInternalServerError, "failed to load settings, please try again")
		return
	}
	web.JSON(w, http.StatusOK, s)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	var req UpdateRequest
	if v := r.PostFormValue("max_sessions"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			web.Error(w, http.StatusBadRequest, "max_sessions must be an integer")
			return
		}
		req.MaxSessions = &n
	}
	if v := r.PostFormValue("notifications_enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			web.Error(w, http.StatusBadRequest, "notifications_enabled must be a boolean")
			return
		}
		req.NotificationsEnabled = &b
	}

	s, err := h.svc.Update(r.Context(), id.User.ID, req)
	if err != nil {
		log.Error().Err(err).Msg("update settings")
		web.Error(w, http.StatusInternalServerError, "failed to update settings, please try again")
		return
	}
	web.JSON(w, http.StatusOK, s)
}
