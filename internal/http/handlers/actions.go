package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/quest-gateway/internal/errors"
	"github.com/pribylovaa/quest-gateway/internal/models"
)

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handlers) SaveQuest(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api, ok := h.api(w, r)
	if !ok {
		return
	}

	if err := api.Save(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// AddReview проверяет rating (целое 1..5) и comment (не пустой после trim,
// не длиннее 500 символов) до обращения к бэкенду.
func (h *Handlers) AddReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api, ok := h.api(w, r)
	if !ok {
		return
	}

	var in models.ReviewInput
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		var ve *apierrors.ValidationError
		if errors.As(err, &ve) {
			err = apierrors.BadRequest("rating must be an integer between 1 and 5 and comment a string")
		}
		h.fail(w, r, err)
		return
	}
	if err := h.validate.StructPartial(in, "Rating"); err != nil {
		h.fail(w, r, apierrors.BadRequest("rating must be an integer between 1 and 5"))
		return
	}
	if err := h.validate.StructPartial(in, "Comment"); err != nil {
		h.fail(w, r, apierrors.BadRequest("comment must be a non-empty string (max 500 characters)"))
		return
	}
	in.Comment = strings.TrimSpace(in.Comment)

	if err := api.AddReview(r.Context(), id, in); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type completeRequest struct {
	Base64Image *string `json:"base64Image"`
}

// CompleteQuest принимает фото как data URL (data:image/...;base64,...),
// декодирует его и отправляет бэкенду multipart-полем media.
func (h *Handlers) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuestID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api, ok := h.api(w, r)
	if !ok {
		return
	}

	maxEncoded := h.MaxImageBytes * 4 / 3

	var in completeRequest
	if err := decodeJSON(w, r, maxEncoded+maxJSONBody, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.Base64Image == nil || !strings.HasPrefix(*in.Base64Image, "data:image/") {
		h.fail(w, r, apierrors.BadRequest("base64Image must be a data:image/... string"))
		return
	}
	if int64(len(*in.Base64Image)) > maxEncoded {
		h.fail(w, r, apierrors.ErrPayloadTooLarge)
		return
	}

	img, err := decodeDataURL(*in.Base64Image)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := api.Complete(r.Context(), id, img); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// decodeDataURL разбирает data:image/<type>[;params];base64,<payload>.
func decodeDataURL(s string) (models.CompletionImage, error) {
	bad := apierrors.BadRequest("unable to decode base64Image")

	meta, payload, found := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !found {
		return models.CompletionImage{}, bad
	}

	params := strings.Split(meta, ";")
	if len(params) < 2 || params[len(params)-1] != "base64" || !strings.HasPrefix(params[0], "image/") {
		return models.CompletionImage{}, bad
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil || len(data) == 0 {
		return models.CompletionImage{}, bad
	}

	return models.CompletionImage{ContentType: params[0], Data: data}, nil
}
