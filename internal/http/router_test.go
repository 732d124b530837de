package http

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/clients/backend"
	"github.com/pribylovaa/quest-gateway/internal/config"
	"github.com/pribylovaa/quest-gateway/internal/cookie"
	apierrors "github.com/pribylovaa/quest-gateway/internal/errors"
	"github.com/pribylovaa/quest-gateway/internal/session"
	"github.com/pribylovaa/quest-gateway/internal/storage/memory"

	"github.com/stretchr/testify/require"
)

// fakeBackend - REST API бэкенда на httptest с управляемыми отказами.
type fakeBackend struct {
	mu           sync.Mutex
	rejected     map[string]bool // access-токены, на которые бэкенд отвечает 401
	refreshFails bool
	lastToken    string
	completeCT   string
	completeData []byte
	reviewBody   map[string]any

	refreshCalls atomic.Int32
	reviewCalls  atomic.Int32
}

func (f *fakeBackend) reject(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected[token] = true
}

func (f *fakeBackend) authorized(w http.ResponseWriter, r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	f.lastToken = token
	bad := f.rejected[token]
	f.mu.Unlock()

	if bad {
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token_not_valid"})
		return false
	}
	return true
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /accounts/google/", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{
			"access":  "A1",
			"refresh": "R1",
			"user":    map[string]any{"id": 1, "first_name": "Ann", "last_name": "Lee", "email": "ann@example.com"},
		})
	})

	mux.HandleFunc("POST /token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)

		f.mu.Lock()
		fails := f.refreshFails
		f.mu.Unlock()

		if fails {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{"access": "A2"})
	})

	mux.HandleFunc("GET /accounts/profile/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{"first_name": "Ann"})
	})

	mux.HandleFunc("GET /quests/7/is_saved/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"is_saved": true})
	})

	mux.HandleFunc("GET /quests/7/is_completed/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"is_completed": 0})
	})

	mux.HandleFunc("GET /quests/404/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	})

	mux.HandleFunc("POST /quests/7/reviews/add/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		f.reviewCalls.Add(1)

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.reviewBody = body
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("POST /quests/7/complete/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		file, hdr, err := r.FormFile("media")
		if err != nil {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		f.mu.Lock()
		f.completeCT = hdr.Header.Get("Content-Type")
		f.completeData = data
		f.mu.Unlock()

		writeTestJSON(w, http.StatusOK, map[string]any{})
	})

	return mux
}

type gateway struct {
	t       *testing.T
	handler http.Handler
	backend *fakeBackend
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	fb := &fakeBackend{rejected: make(map[string]bool)}
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)

	lg := slog.New(slog.NewTextHandler(io.Discard, nil))

	bc, err := backend.New(config.BackendConfig{
		BaseURL:    srv.URL,
		AuthScheme: "Bearer",
		Timeout:    5 * time.Second,
		UserAgent:  "quest-gateway-test",
	}, lg, nil)
	require.NoError(t, err)

	reg := session.NewRegistry(bc, memory.New(time.Hour), session.Config{
		AccessTokenTTL: time.Minute,
		Providers:      []string{"google"},
	})
	codec := cookie.New(config.SessionConfig{Secret: "test-secret", CookieName: "qg_session", MaxAge: time.Hour})

	h := NewRouter(reg, codec, Options{
		Logger:        lg,
		Timeout:       5 * time.Second,
		MaxImageBytes: 1024,
	})

	return &gateway{t: t, handler: h, backend: fb}
}

func (g *gateway) do(method, path, body string, ck *http.Cookie) *httptest.ResponseRecorder {
	g.t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ck != nil {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func (g *gateway) login() *http.Cookie {
	g.t.Helper()

	rec := g.do(http.MethodPost, "/api/auth/login", `{"provider":"google","access_token":"idp-token"}`, nil)
	require.Equal(g.t, http.StatusOK, rec.Code, rec.Body.String())

	ck := sessionCookie(rec)
	require.NotNil(g.t, ck)
	return ck
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "qg_session" {
			return c
		}
	}
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()

	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestRouter_LoginAndSession(t *testing.T) {
	g := newGateway(t)

	rec := g.do(http.MethodPost, "/api/auth/login", `{"provider":"google","access_token":"idp-token"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotContains(t, rec.Body.String(), "A1")
	require.NotContains(t, rec.Body.String(), "R1")

	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	require.True(t, ck.HttpOnly)

	rec = g.do(http.MethodGet, "/api/auth/session", "", ck)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess struct {
		User struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.Equal(t, "Ann Lee", sess.User.Name)
	require.Equal(t, "ann@example.com", sess.User.Email)
	require.Empty(t, sess.Error)
	require.NotContains(t, rec.Body.String(), "A1")
}

func TestRouter_LoginUnknownProvider(t *testing.T) {
	g := newGateway(t)

	rec := g.do(http.MethodPost, "/api/auth/login", `{"provider":"github","access_token":"x"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, sessionCookie(rec))
}

func TestRouter_Unauthenticated(t *testing.T) {
	g := newGateway(t)

	rec := g.do(http.MethodGet, "/api/profile/get", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", decodeError(t, rec).Code)

	rec = g.do(http.MethodGet, "/api/auth/session", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProxyProfile(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	rec := g.do(http.MethodGet, "/api/profile/get", "", ck)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"first_name":"Ann"}`, rec.Body.String())
}

func TestRouter_AddReviewValidation(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	bad := []string{
		`{"rating":6,"comment":"nice"}`,
		`{"rating":0,"comment":"nice"}`,
		`{"rating":2.5,"comment":"nice"}`,
		`{"comment":"nice"}`,
		`{"rating":3,"comment":"   "}`,
		`{"rating":3,"comment":12}`,
		`{"rating":3,"comment":"` + strings.Repeat("a", 501) + `"}`,
	}
	for _, body := range bad {
		rec := g.do(http.MethodPost, "/api/quests/7/actions/add-review", body, ck)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	require.Zero(t, g.backend.reviewCalls.Load())

	rec := g.do(http.MethodPost, "/api/quests/7/actions/add-review", `{"rating":"4","comment":"  great quest "}`, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"success":true}`, rec.Body.String())
	require.EqualValues(t, 1, g.backend.reviewCalls.Load())

	g.backend.mu.Lock()
	defer g.backend.mu.Unlock()
	require.Equal(t, float64(4), g.backend.reviewBody["rating"])
	require.Equal(t, "great quest", g.backend.reviewBody["comment"])
}

func TestRouter_InvalidQuestID(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	for _, path := range []string{"/api/quests/abc/meta", "/api/quests/0/status", "/api/quests/-3/reviews"} {
		rec := g.do(http.MethodGet, path, "", ck)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := g.do(http.MethodPost, "/api/quests/1.5/actions/save", "", ck)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_QuestStatus(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	rec := g.do(http.MethodGet, "/api/quests/7/status", "", ck)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"is_saved":true,"is_completed":false}`, rec.Body.String())
}

func TestRouter_BackendErrorDetail(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	rec := g.do(http.MethodGet, "/api/quests/404/meta", "", ck)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Not found.", decodeError(t, rec).Message)
}

func TestRouter_CompleteQuest(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	path := "/api/quests/7/actions/complete"

	rec := g.do(http.MethodPost, path, `{"base64Image":"iVBORw0KGgo="}`, ck)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = g.do(http.MethodPost, path, `{}`, ck)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	huge := "data:image/png;base64," + strings.Repeat("A", 2000)
	rec = g.do(http.MethodPost, path, `{"base64Image":"`+huge+`"}`, ck)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = g.do(http.MethodPost, path, `{"base64Image":"data:image/png;base64,@@@"}`, ck)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	img := []byte("\x89PNG\r\n\x1a\nfake")
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
	rec = g.do(http.MethodPost, path, `{"base64Image":"`+url+`"}`, ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.JSONEq(t, `{"success":true}`, rec.Body.String())

	g.backend.mu.Lock()
	defer g.backend.mu.Unlock()
	require.Equal(t, "image/png", g.backend.completeCT)
	require.Equal(t, img, g.backend.completeData)
}

func TestRouter_RefreshOnRejectedToken(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	g.backend.reject("A1")

	rec := g.do(http.MethodGet, "/api/profile/get", "", ck)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, 1, g.backend.refreshCalls.Load())

	rec = g.do(http.MethodGet, "/api/profile/get", "", ck)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, g.backend.refreshCalls.Load())

	g.backend.mu.Lock()
	defer g.backend.mu.Unlock()
	require.Equal(t, "A2", g.backend.lastToken)
}

func TestRouter_RefreshFailureForcesLogout(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	g.backend.reject("A1")
	g.backend.mu.Lock()
	g.backend.refreshFails = true
	g.backend.mu.Unlock()

	rec := g.do(http.MethodGet, "/api/profile/get", "", ck)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	apiErr := decodeError(t, rec)
	require.Equal(t, "session_expired", apiErr.Code)
	require.Equal(t, "/login", apiErr.LoginURL)

	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)

	// UI узнаёт причину через session.
	rec = g.do(http.MethodGet, "/api/auth/session", "", ck)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"error":"refresh-failed"`)

	// Терминальное состояние: повторного refresh нет.
	rec = g.do(http.MethodGet, "/api/profile/get", "", ck)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.EqualValues(t, 1, g.backend.refreshCalls.Load())
}

func TestRouter_Logout(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	rec := g.do(http.MethodPost, "/api/auth/logout", "", ck)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Less(t, sessionCookie(rec).MaxAge, 0)

	rec = g.do(http.MethodGet, "/api/auth/session", "", ck)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = g.do(http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_PageGate(t *testing.T) {
	g := newGateway(t)
	ck := g.login()

	rec := g.do(http.MethodGet, "/profile", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	rec = g.do(http.MethodGet, "/login", "", ck)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "/profile", rec.Header().Get("Location"))

	// без каталога страниц - 404 после проверки
	rec = g.do(http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
