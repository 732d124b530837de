package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ascii", in: "foobar@example.com", want: "fo***@example.com"},
		{name: "short_local", in: "ab@ex.com", want: "***@ex.com"},
		{name: "no_at", in: "no-at-here", want: "***"},
		{name: "multiple_at", in: "a@b@c", want: "***"},
		{name: "empty", in: "", want: "***"},
		{name: "unicode", in: "юзер@пример.рф", want: "юз***@пример.рф"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Email(tt.in))
		})
	}
}

func TestToken_StableFingerprint(t *testing.T) {
	t.Parallel()

	a := Token("access-A1")
	require.True(t, strings.HasPrefix(a, "tok:"))
	require.Len(t, a, len("tok:")+8)
	require.Equal(t, a, Token("access-A1"))
	require.NotEqual(t, a, Token("access-A2"))
	require.NotContains(t, a, "A1")
	require.Equal(t, "tok:-", Token(""))
}
