package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/quest-gateway/internal/errors"
	"github.com/pribylovaa/quest-gateway/internal/models"
)

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	api, ok := h.api(w, r)
	if !ok {
		return
	}

	raw, err := api.Profile(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

// UpdateProfile требует first_name, last_name и contact_address строками.
// Пустой ответ бэкенда - 204.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	api, ok := h.api(w, r)
	if !ok {
		return
	}

	var in models.ProfileUpdate
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		h.fail(w, r, apierrors.BadRequest("first_name, last_name and contact_address are required"))
		return
	}

	raw, err := api.UpdateProfile(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if raw == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}
