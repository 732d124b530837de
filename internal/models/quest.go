// Входные/выходные модели REST, которые шлюз понимает сам.
// Остальные ответы бэкенда (квесты, отзывы, списки) проксируются как есть.
package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// QuestStatus - признаки квеста для текущего пользователя.
type QuestStatus struct {
	IsSaved     bool `json:"is_saved"`
	IsCompleted bool `json:"is_completed"`
}

// ReviewInput - тело POST /api/quests/{id}/actions/add-review.
type ReviewInput struct {
	Rating  Rating `json:"rating"  validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"notblank,max=500"`
}

// Rating принимает число или числовую строку; дробные значения отклоняются.
type Rating int

var ErrRatingNotInteger = errors.New("rating must be an integer")

func (r *Rating) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrRatingNotInteger
	}

	if unq, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unq)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return ErrRatingNotInteger
	}

	if f > math.MaxInt32 || f < math.MinInt32 {
		return ErrRatingNotInteger
	}

	*r = Rating(f)
	return nil
}

func (r Rating) MarshalJSON() ([]byte, error) { return json.Marshal(int(r)) }

// ProfileUpdate - тело PATCH /api/profile/update. Все поля обязательны,
// пустая строка допустима.
type ProfileUpdate struct {
	FirstName      *string `json:"first_name"      validate:"required"`
	LastName       *string `json:"last_name"       validate:"required"`
	ContactAddress *string `json:"contact_address" validate:"required"`
}

// CompletionImage - декодированное фото выполнения квеста.
type CompletionImage struct {
	ContentType string
	Data        []byte
}

// LoginRequest - тело POST /api/auth/login: токен, полученный браузером у провайдера.
type LoginRequest struct {
	Provider    string `json:"provider"     validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
}
