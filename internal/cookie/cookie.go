// cookie - подписанная session-cookie: HS256 JWT, в котором лежит только id сессии.
// Токены бэкенда в cookie не попадают.
package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "quest-gateway"

var (
	// ErrMissing - cookie отсутствует.
	ErrMissing = errors.New("session cookie missing")
	// ErrInvalid - подпись/формат неверны или срок истёк.
	ErrInvalid = errors.New("session cookie invalid")
)

type claims struct {
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	name   string
	secure bool
	domain string
	maxAge time.Duration
	now    func() time.Time
}

func New(cfg config.SessionConfig) *Codec {
	return &Codec{
		secret: []byte(cfg.Secret),
		name:   cfg.CookieName,
		secure: cfg.CookieSecure,
		domain: cfg.CookieDomain,
		maxAge: cfg.MaxAge,
		now:    time.Now,
	}
}

func (c *Codec) Name() string { return c.name }

// Encode подписывает id сессии.
func (c *Codec) Encode(sessionID string) (string, error) {
	const op = "internal/cookie/Encode"

	now := c.now()
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Decode проверяет подпись и срок и возвращает id сессии.
func (c *Codec) Decode(value string) (string, error) {
	const op = "internal/cookie/Decode"

	token, err := jwt.ParseWithClaims(value, &claims{},
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	cl, ok := token.Claims.(*claims)
	if !ok || !token.Valid || cl.Subject == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	return cl.Subject, nil
}

// Read достаёт id сессии из запроса.
func (c *Codec) Read(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.name)
	if err != nil || ck.Value == "" {
		return "", ErrMissing
	}

	return c.Decode(ck.Value)
}

// Set выставляет подписанную cookie для сессии.
func (c *Codec) Set(w http.ResponseWriter, sessionID string) error {
	value, err := c.Encode(sessionID)
	if err != nil {
		return err
	}

	http.SetCookie(w, c.cookie(value, int(c.maxAge/time.Second)))
	return nil
}

// Clear удаляет cookie у браузера (принудительный выход).
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *Codec) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
