package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenPair_RotateKeepsRefreshWhenOmitted(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p1 := NewTokenPair("A1", "R1", t0, time.Minute)

	t1 := t0.Add(61 * time.Second)
	p2 := p1.Rotate("A2", "", t1, time.Minute)

	require.Equal(t, "A2", p2.AccessToken)
	require.Equal(t, "R1", p2.RefreshToken)
	require.Equal(t, t1.Add(time.Minute), p2.ExpiresAt)

	// исходная пара не изменилась
	require.Equal(t, "A1", p1.AccessToken)
	require.Equal(t, t0.Add(time.Minute), p1.ExpiresAt)

	p3 := p2.Rotate("A3", "R3", t1, time.Minute)
	require.Equal(t, "R3", p3.RefreshToken)
}

func TestTokenPair_Fresh(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewTokenPair("A", "R", t0, 60*time.Second)

	require.True(t, p.Fresh(t0))
	require.True(t, p.Fresh(t0.Add(59*time.Second)))
	require.False(t, p.Fresh(t0.Add(60*time.Second)))

	var nilPair *TokenPair
	require.False(t, nilPair.Fresh(t0))
}

func TestRating_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Rating
		wantErr bool
	}{
		{in: `3`, want: 3},
		{in: `"4"`, want: 4},
		{in: `5.0`, want: 5},
		{in: `0`, want: 0},
		{in: `2.5`, wantErr: true},
		{in: `"abc"`, wantErr: true},
		{in: `null`, wantErr: true},
		{in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		var r Rating
		err := json.Unmarshal([]byte(tt.in), &r)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, r, tt.in)
	}
}

func TestSession_PublicHidesTokens(t *testing.T) {
	t.Parallel()

	s := &Session{
		ID:   "sid",
		Pair: NewTokenPair("A1", "R1", time.Now(), time.Minute),
		User: User{ID: 7, FirstName: "Taro", LastName: "Yamada", Email: "taro@example.com"},
	}

	raw, err := json.Marshal(s.Public())
	require.NoError(t, err)
	require.JSONEq(t, `{"user":{"name":"Taro Yamada","email":"taro@example.com"}}`, string(raw))

	s.LastError = ErrTagRefreshFailed
	require.True(t, s.Invalid())
	require.Equal(t, ErrTagRefreshFailed, s.Public().Error)
}
