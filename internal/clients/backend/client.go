// backend - HTTP-клиент REST API бэкенда: обмен identity-токена, refresh
// и произвольные ресурсные вызовы с bearer-токеном.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pribylovaa/quest-gateway/internal/clients/transport"
	"github.com/pribylovaa/quest-gateway/internal/config"
	"github.com/pribylovaa/quest-gateway/internal/metrics"
	"github.com/pribylovaa/quest-gateway/internal/models"
)

// maxResponseBytes ограничивает чтение тела ответа бэкенда.
const maxResponseBytes = 16 << 20

// Request - ресурсный вызов. Body хранится целиком, поэтому запрос
// можно безопасно повторить после refresh.
type Request struct {
	Method      string
	Path        string
	Query       string
	Body        []byte
	ContentType string
}

// Response - полностью прочитанный ответ бэкенда.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// ExchangeResult - ответ POST /accounts/{provider}/.
type ExchangeResult struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    models.User `json:"user"`
}

// RefreshResult - ответ POST /token/refresh/. Refresh может отсутствовать.
type RefreshResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type Client struct {
	baseURL string
	scheme  string
	http    *http.Client
	maxBody int64
}

// New собирает клиент с цепочкой транспорта: metadata -> timeout -> logging -> metrics.
func New(cfg config.BackendConfig, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	const op = "internal/clients/backend/New"

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("%s: empty backend base url", op)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", op, err)
	}

	scheme := cfg.AuthScheme
	if scheme == "" {
		scheme = "Bearer"
	}

	rt := transport.Chain(http.DefaultTransport,
		transport.WithMetadata(cfg.UserAgent),
		transport.WithTimeout(cfg.Timeout),
		transport.WithLogging(log),
		transport.WithMetrics(m),
	)

	return &Client{
		baseURL: base,
		scheme:  scheme,
		http:    &http.Client{Transport: rt},
		maxBody: maxResponseBytes,
	}, nil
}

// Exchange меняет токен провайдера на пару токенов бэкенда и профиль.
func (c *Client) Exchange(ctx context.Context, provider, accessToken string) (*ExchangeResult, error) {
	const op = "internal/clients/backend/Exchange"

	body, err := json.Marshal(map[string]string{"access_token": accessToken})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/accounts/" + url.PathEscape(provider) + "/",
		Body:        body,
		ContentType: "application/json",
	}, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%s: %w", op, AsStatusError(resp, "Authentication failed"))
	}

	var out ExchangeResult
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedResponse)
	}
	if out.Access == "" || out.Refresh == "" {
		return nil, fmt.Errorf("%s: %w: missing tokens", op, ErrMalformedResponse)
	}

	return &out, nil
}

// Refresh выпускает новую пару по refresh-токену. Повторов нет.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	const op = "internal/clients/backend/Refresh"

	body, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/token/refresh/",
		Body:        body,
		ContentType: "application/json",
	}, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%s: %w", op, AsStatusError(resp, "Token refresh failed"))
	}

	var out RefreshResult
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedResponse)
	}
	if out.Access == "" {
		return nil, fmt.Errorf("%s: %w: missing access", op, ErrMalformedResponse)
	}

	return &out, nil
}

// Do выполняет запрос и читает тело целиком. Не-2xx статус ошибкой не считается:
// решение принимает вызывающий (менеджер сессии смотрит на 401).
// Пустой accessToken - запрос без Authorization.
func (c *Client) Do(ctx context.Context, req Request, accessToken string) (*Response, error) {
	const op = "internal/clients/backend/Do"

	target := c.baseURL + req.Path
	if req.Query != "" {
		target += "?" + strings.TrimPrefix(req.Query, "?")
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}
	hreq.Header.Set("Accept", "application/json")
	if accessToken != "" {
		hreq.Header.Set("Authorization", c.scheme+" "+accessToken)
	}

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	defer hresp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(hresp.Body, c.maxBody+1))
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	if int64(len(raw)) > c.maxBody {
		return nil, fmt.Errorf("%s: %w: more than %d bytes", op, ErrResponseTooLarge, c.maxBody)
	}

	return &Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       raw,
	}, nil
}

// transportError отличает отмену вызывающим от недоступности бэкенда.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
