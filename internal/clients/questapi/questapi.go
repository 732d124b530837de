// questapi - ресурсные вызовы бэкенда квестов от имени пользователя.
//
// Все вызовы идут через Caller (Manager сессии), который подставляет
// bearer-токен и обновляет его по 401. Ответы со списками и карточками
// проксируются как есть (json.RawMessage).
package questapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/pribylovaa/quest-gateway/internal/clients/backend"
	"github.com/pribylovaa/quest-gateway/internal/models"
)

// Caller - аутентифицированный вызов бэкенда.
type Caller interface {
	CallAuthenticated(ctx context.Context, req backend.Request) (*backend.Response, error)
}

type Client struct {
	caller Caller
}

func New(c Caller) *Client { return &Client{caller: c} }

func (c *Client) Profile(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "questapi.Profile", "/accounts/profile/", "", "Failed to fetch profile")
}

// UpdateProfile - PATCH профиля. Пустое тело успешного ответа даёт nil.
func (c *Client) UpdateProfile(ctx context.Context, in models.ProfileUpdate) (json.RawMessage, error) {
	const op = "questapi.UpdateProfile"

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.call(ctx, backend.Request{
		Method:      http.MethodPatch,
		Path:        "/accounts/update/",
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%s: %w", op, backend.AsStatusError(resp, "Failed to update profile"))
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}

	return rawJSON(op, resp.Body)
}

// QuestsByTag - квесты категории; tag уже декодирован из пути.
func (c *Client) QuestsByTag(ctx context.Context, tag string) (json.RawMessage, error) {
	q := url.Values{"tag": {tag}}.Encode()
	return c.getJSON(ctx, "questapi.QuestsByTag", "/quests/search/", q, "Failed to fetch quests by category")
}

// Incomplete - невыполненные квесты; rawQuery (page, page_size) передаётся как есть.
func (c *Client) Incomplete(ctx context.Context, rawQuery string) (json.RawMessage, error) {
	return c.getJSON(ctx, "questapi.Incomplete", "/incomplete/", rawQuery, "Failed to fetch incomplete quests")
}

func (c *Client) Saved(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "questapi.Saved", "/quests/saved/", "", "Failed to fetch saved quests")
}

func (c *Client) Completed(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "questapi.Completed", "/completed-quests/", "", "Failed to fetch completed quests")
}

func (c *Client) Quest(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.getJSON(ctx, "questapi.Quest", questPath(id, ""), "", "Quest not found")
}

func (c *Client) Reviews(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.getJSON(ctx, "questapi.Reviews", questPath(id, "reviews/"), "", "Failed to fetch reviews")
}

// AddReview отправляет уже проверенный отзыв.
func (c *Client) AddReview(ctx context.Context, id int64, in models.ReviewInput) error {
	const op = "questapi.AddReview"

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return c.action(ctx, op, backend.Request{
		Method:      http.MethodPost,
		Path:        questPath(id, "reviews/add/"),
		Body:        body,
		ContentType: "application/json",
	}, "Add review failed")
}

func (c *Client) Save(ctx context.Context, id int64) error {
	return c.action(ctx, "questapi.Save", backend.Request{
		Method: http.MethodPost,
		Path:   questPath(id, "save/"),
	}, "Save failed")
}

// Complete загружает фото выполнения: multipart, поле media, имя completion.jpg.
func (c *Client) Complete(ctx context.Context, id int64, img models.CompletionImage) error {
	const op = "questapi.Complete"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="media"; filename="completion.jpg"`)
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return c.action(ctx, op, backend.Request{
		Method:      http.MethodPost,
		Path:        questPath(id, "complete/"),
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
	}, "Complete failed")
}

// Status - is_saved, затем is_completed; значения приводятся к bool.
func (c *Client) Status(ctx context.Context, id int64) (models.QuestStatus, error) {
	const op = "questapi.Status"

	saved, err := c.flag(ctx, questPath(id, "is_saved/"), "is_saved", "Failed to fetch save status")
	if err != nil {
		return models.QuestStatus{}, fmt.Errorf("%s: %w", op, err)
	}

	completed, err := c.flag(ctx, questPath(id, "is_completed/"), "is_completed", "Failed to fetch complete status")
	if err != nil {
		return models.QuestStatus{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.QuestStatus{IsSaved: saved, IsCompleted: completed}, nil
}

func (c *Client) flag(ctx context.Context, path, field, fallback string) (bool, error) {
	resp, err := c.call(ctx, backend.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return false, err
	}
	if !resp.OK() {
		return false, backend.AsStatusError(resp, fallback)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return false, backend.ErrMalformedResponse
	}

	return truthy(payload[field]), nil
}

func (c *Client) getJSON(ctx context.Context, op, path, query, fallback string) (json.RawMessage, error) {
	resp, err := c.call(ctx, backend.Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%s: %w", op, backend.AsStatusError(resp, fallback))
	}

	return rawJSON(op, resp.Body)
}

// action - вызов без полезного ответа. Сообщение ошибки: detail, иначе
// JSON-тело целиком, иначе fallback.
func (c *Client) action(ctx context.Context, op string, req backend.Request, fallback string) error {
	resp, err := c.call(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.OK() {
		return nil
	}

	if json.Valid(resp.Body) {
		fallback = backend.Detail(resp.Body, string(bytes.TrimSpace(resp.Body)))
	}

	return fmt.Errorf("%s: %w", op, &backend.StatusError{Status: resp.StatusCode, Detail: fallback})
}

func (c *Client) call(ctx context.Context, req backend.Request) (*backend.Response, error) {
	return c.caller.CallAuthenticated(ctx, req)
}

func questPath(id int64, suffix string) string {
	return "/quests/" + strconv.FormatInt(id, 10) + "/" + suffix
}

func rawJSON(op string, body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: %w", op, backend.ErrMalformedResponse)
	}

	return json.RawMessage(body), nil
}

// truthy - приведение JSON-значения к bool по правилам JS.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
