package handlers

import (
	"errors"
	"net/http"

	"github.com/pribylovaa/quest-gateway/internal/cookie"
	apierrors "github.com/pribylovaa/quest-gateway/internal/errors"
	"github.com/pribylovaa/quest-gateway/internal/models"
	"github.com/pribylovaa/quest-gateway/internal/session"
)

// Login - обмен токена провайдера на серверную сессию и подписанную cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		h.fail(w, r, apierrors.BadRequest("provider and access_token are required"))
		return
	}

	m, err := h.Sessions.Login(r.Context(), in.Provider, in.AccessToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.Cookies.Set(w, m.ID()); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m.Snapshot().Public())
}

// Logout удаляет сессию и cookie. Без сессии - тоже 204.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := h.Cookies.Read(r)
	if err == nil {
		if err := h.Sessions.Logout(r.Context(), id); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	h.Cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Session - публичное представление сессии для UI. Поле error
// (refresh-failed / unauthorized) сигнализирует о принудительном выходе.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	id, err := h.Cookies.Read(r)
	if err != nil {
		if errors.Is(err, cookie.ErrInvalid) {
			h.Cookies.Clear(w)
		}
		apierrors.WriteError(w, r, session.ErrUnauthorized)
		return
	}

	m, err := h.Sessions.Resolve(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m.Snapshot().Public())
}
