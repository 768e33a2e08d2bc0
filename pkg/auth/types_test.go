package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		metadata map[string]any
		want     string
	}{
		{"nil metadata", nil, ""},
		{"full name", map[string]any{"full_name": "Ana Pérez", "name": "Ana"}, "Ana Pérez"},
		{"falls back to name", map[string]any{"name": " Ana "}, "Ana"},
		{"blank full name", map[string]any{"full_name": "  ", "name": "Ana"}, "Ana"},
		{"non-string value", map[string]any{"full_name": 42}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, User{Metadata: tt.metadata}.DisplayName())
		})
	}
}

func TestSessionToken(t *testing.T) {
	t.Parallel()

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Session{AccessToken: "acc", RefreshToken: "ref", ExpiresAt: exp}

	tok := s.Token()
	assert.Equal(t, "acc", tok.AccessToken)
	assert.Equal(t, "ref", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.Equal(t, exp, tok.Expiry)

	assert.False(t, s.Expired(exp.Add(-time.Second)))
	assert.True(t, s.Expired(exp))
	assert.False(t, (&Session{}).Expired(time.Now()))
}

func TestUserUpdateEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, UserUpdate{}.Empty())
	assert.True(t, UserUpdate{Metadata: map[string]any{}}.Empty())
	assert.False(t, UserUpdate{Email: "a@b.co"}.Empty())
}
