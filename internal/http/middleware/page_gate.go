package middleware

import (
	"context"
	"net/http"

	"github.com/pribylovaa/quest-gateway/internal/cookie"
	"github.com/pribylovaa/quest-gateway/internal/session"
)

// SessionResolver - поиск сессии по id из cookie.
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*session.Manager, error)
}

// PageGate управляет доступом к страницам:
//   - /login для вошедшего пользователя - редирект на /profile;
//   - /profile для анонима - редирект на /login;
//   - прочие пути проходят без проверки.
//
// Сессия в состоянии invalid считается анонимной.
func PageGate(codec *cookie.Codec, sessions SessionResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var target string
			switch r.URL.Path {
			case "/login":
				if loggedIn(r, codec, sessions) {
					target = "/profile"
				}
			case "/profile":
				if !loggedIn(r, codec, sessions) {
					target = "/login"
				}
			}

			if target != "" {
				u := *r.URL
				u.Path = target
				u.RawPath = ""
				http.Redirect(w, r, u.String(), http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func loggedIn(r *http.Request, codec *cookie.Codec, sessions SessionResolver) bool {
	id, err := codec.Read(r)
	if err != nil {
		return false
	}

	m, err := sessions.Resolve(r.Context(), id)
	if err != nil {
		return false
	}

	return m.State() != session.StateInvalid && m.State() != session.StateAbsent
}
