package user

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"courier/internal/auth"
	"courier/internal/models"
	"courier/internal/session"
	"courier/internal/web"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// PublicUser is the client-facing user shape; it never carries the hash or
// the normalized form.
type PublicUser struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
}

func publicUser(u *models.User) PublicUser {
	return PublicUser{ID: u.ID.String(), Username: u.DisplayUsername}
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	u, err := h.svc.SignUp(r.Context(),
		r.PostFormValue("display_username"),
		r.PostFormValue("password"),
		r.PostFormValue("repeat_password"),
	)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			web.Error(w, http.StatusBadRequest, "username already registered")
		case errors.Is(err, ErrPasswordMismatch):
			web.Error(w, http.StatusBadRequest, "passwords do not match")
		case errors.Is(err, ErrInvalidUsername):
			web.Error(w, http.StatusBadRequest, "username must be 4-50 characters")
		case errors.Is(err, ErrInvalidPassword):
			web.Error(w, http.StatusBadRequest, "password must be 8-255 characters")
		default:
			log.Error().Err(err).Msg("sign-up")
			web.Error(w, http.StatusInternalServerError, "failed to create user, please try again")
		}
		return
	}

	web.JSON(w, http.StatusCreated, publicUser(u))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	tok, err := h.svc.SignIn(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
		session.DeviceInfo(r),
		session.ClientIP(r),
	)
	if err != nil {
		// Unknown user and wrong password get the identical response.
		if errors.Is(err, ErrInvalidCredentials) {
			web.Unauthorized(w)
			return
		}
		log.Error().Err(err).Msg("sign-in")
		web.Error(w, http.StatusInternalServerError, "failed to create session, please try again")
		return
	}

	web.JSON(w, http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}
	web.JSON(w, http.StatusOK, publicUser(id.User))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), id.User, UpdateRequest{
		CurrentPassword:   r.PostFormValue("current_password"),
		NewUsername:       r.PostFormValue("new_username"),
		NewPassword:       r.PostFormValue("new_password"),
		RepeatNewPassword: r.PostFormValue("repeat_new_password"),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			web.Error(w, http.StatusBadRequest, "username already taken")
		case errors.Is(err, ErrNoChanges):
			web.Error(w, http.StatusBadRequest, "at least one field must be provided for update")
		case errors.Is(err, ErrInvalidUsername):
			web.Error(w, http.StatusBadRequest, "username must be 4-50 characters")
		case errors.Is(err, ErrInvalidPassword):
			web.Error(w, http.StatusBadRequest, "password must be 8-255 characters")
		case errors.Is(err, ErrPasswordMismatch):
			web.Error(w, http.StatusBadRequest, "new passwords do not match")
		case errors.Is(err, ErrWrongPassword):
			web.Error(w, http.StatusUnauthorized, "current password is incorrect")
		default:
			log.Error().Err(err).Msg("update profile")
			web.Error(w, http.StatusInternalServerError, "failed to update profile, please try again")
		}
		return
	}

	web.JSON(w, http.StatusOK, publicUser(updated))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}
	if err := h.svc.Logout(r.Context(), id.Session.ID); err != nil {
		log.Error().Err(err).Msg("logout")
		web.Error(w, http.StatusInternalServerError, "failed to log out, please try again")
		return
	}
	web.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), id.User, r.PostFormValue("password")); err != nil {
		if errors.Is(err, ErrWrongPassword) {
			web.Error(w, http.StatusForbidden, "password incorrect")
			return
		}
		log.Error().Err(err).Msg("delete account")
		web.Error(w, http.StatusInternalServerError, "failed to delete account, please try again")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
