package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/quest-gateway/internal/cookie"
	"github.com/pribylovaa/quest-gateway/internal/http/handlers"
	"github.com/pribylovaa/quest-gateway/internal/http/middleware"
)

// Sessions - реестр сессий: нужен и обработчикам API, и фильтру страниц.
type Sessions interface {
	handlers.Sessions
	middleware.SessionResolver
}

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger        *slog.Logger
	Timeout       time.Duration
	MaxImageBytes int64
	PagesDir      string // пустой - страницы не отдаются, остаются только редиректы
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(sessions Sessions, codec *cookie.Codec, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(sessions, codec, opts.MaxImageBytes)

	root.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore())
		registerRoutes(r, h)
	})

	// Страницы: редиректы по наличию сессии.
	root.Group(func(r chi.Router) {
		r.Use(middleware.PageGate(codec, sessions))
		r.Get("/login", handlers.Page(opts.PagesDir, "login"))
		r.Get("/profile", handlers.Page(opts.PagesDir, "profile"))
	})

	return root
}

// registerRoutes - единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// auth
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/session", h.Session)

	// profile
	r.Get("/profile/get", h.GetProfile)
	r.Patch("/profile/update", h.UpdateProfile)

	// quests
	r.Get("/category/{category}", h.Category)
	r.Get("/quests/incomplete", h.Incomplete)
	r.Get("/quests/saved", h.Saved)
	r.Get("/quests/completed-quests", h.Completed)
	r.Get("/quests/{id}/meta", h.QuestMeta)
	r.Get("/quests/{id}/reviews", h.QuestReviews)
	r.Get("/quests/{id}/status", h.QuestStatus)

	// actions
	r.Post("/quests/{id}/actions/save", h.SaveQuest)
	r.Post("/quests/{id}/actions/add-review", h.AddReview)
	r.Post("/quests/{id}/actions/complete", h.CompleteQuest)
}
