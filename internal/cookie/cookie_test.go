package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pribylovaa/quest-gateway/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newCodec(secret string) *Codec {
	return New(config.SessionConfig{
		Secret:     secret,
		CookieName: "qg_session",
		MaxAge:     time.Hour,
	})
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCodec("s3cret")
	v, err := c.Encode("sid-1")
	require.NoError(t, err)

	sid, err := c.Decode(v)
	require.NoError(t, err)
	require.Equal(t, "sid-1", sid)
}

func TestCodec_RejectsForeignSignature(t *testing.T) {
	t.Parallel()

	v, err := newCodec("other").Encode("sid-1")
	require.NoError(t, err)

	_, err = newCodec("s3cret").Decode(v)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCodec_RejectsExpired(t *testing.T) {
	t.Parallel()

	c := newCodec("s3cret")
	t0 := time.Now()
	c.now = func() time.Time { return t0 }
	v, err := c.Encode("sid-1")
	require.NoError(t, err)

	c.now = func() time.Time { return t0.Add(2 * time.Hour) }
	_, err = c.Decode(v)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCodec_RejectsNoneAlg(t *testing.T) {
	t.Parallel()

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "sid-1", Issuer: issuer})
	v, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newCodec("s3cret").Decode(v)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCodec_SetReadClear(t *testing.T) {
	t.Parallel()

	c := newCodec("s3cret")

	rec := httptest.NewRecorder()
	require.NoError(t, c.Set(rec, "sid-9"))

	set := rec.Result().Cookies()
	require.Len(t, set, 1)
	require.True(t, set[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, set[0].SameSite)
	require.Equal(t, 3600, set[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(set[0])
	sid, err := c.Read(req)
	require.NoError(t, err)
	require.Equal(t, "sid-9", sid)

	_, err = c.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, ErrMissing)

	rec = httptest.NewRecorder()
	c.Clear(rec)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, "qg_session", cleared[0].Name)
	require.Empty(t, cleared[0].Value)
	require.Less(t, cleared[0].MaxAge, 0)
}
