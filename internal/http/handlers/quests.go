package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/quest-gateway/internal/errors"
)

// Category - квесты по категории; параметр пути декодируется и уходит как tag.
func (h *Handlers) Category(w http.ResponseWriter, r *http.Request) {
	api, ok := h.api(w, r)
	if !ok {
		return
	}

	tag, err := url.PathUnescape(chi.URLParam(r, "category"))
	if err != nil || tag == "" {
		h.fail(w, r, apierrors.BadRequest("invalid category"))
		return
	}

	raw, err := api.QuestsByTag(r.Context(), tag)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

// Incomplete - пагинация (page, page_size) передаётся бэкенду как есть.
func (h *Handlers) Incomplete(w http.ResponseWriter, r *http.Request) {
	api, ok := h.api(w, r)
	if !ok {
		return
	}

	raw, err := api.Incomplete(r.Context(), r.URL.RawQuery)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

func (h *Handlers) Saved(w http.ResponseWriter, r *http.Request) {
	api, ok := h.api(w, r)
	if !ok {
		return
	}

	raw, err := api.Saved(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

func (h *Handlers) Completed(w http.ResponseWriter, r *http.Request) {
	api, ok := h.api(w, r)
	if !ok {
		return
	}

	raw, err := api.Completed(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

func (h *Handlers) QuestMeta(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api, ok := h.api(w, r)
	if !ok {
		return
	}

	raw, err := api.Quest(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

func (h *Handlers) QuestReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api, ok := h.api(w, r)
	if !ok {
		return
	}

	raw, err := api.Reviews(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeRaw(w, http.StatusOK, raw)
}

// QuestStatus - {is_saved, is_completed} из двух вызовов бэкенда.
func (h *Handlers) QuestStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api, ok := h.api(w, r)
	if !ok {
		return
	}

	st, err := api.Status(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}
