package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/testutil"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestStaticTokens_Verify(t *testing.T) {
	p := NewStaticTokens(&common.AuthConfig{Tokens: []common.AuthToken{
		{Token: "secret-1", UserID: "user_1", Email: "one@example.com"},
		{Token: "secret-2", UserID: "user_2"},
		{Token: "", UserID: "user_3"},
	}})

	claims, err := p.Verify(context.Background(), "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, "one@example.com", claims.Email)

	_, err = p.Verify(context.Background(), "wrong")
	assert.True(t, common.IsPermission(err))

	_, err = p.Verify(context.Background(), "")
	assert.True(t, common.IsPermission(err))
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	claims := NewStaticTokens(&common.AuthConfig{Tokens: []common.AuthToken{{Token: "tok", UserID: "user_1", Email: "a@b.c"}}})
	svc := NewService(claims, env.Storage.UserStorage(), env.Logger)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, "user_1", user.ID)

	stored, err := env.Storage.UserStorage().GetUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", stored.Email)

	again, err := svc.Authenticate(ctx, "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, user.CreatedAt.Unix(), again.CreatedAt.Unix())

	_, err = svc.Authenticate(ctx, "Bearer nope")
	assert.True(t, common.IsPermission(err))

	_, err = svc.Authenticate(ctx, "")
	assert.True(t, common.IsPermission(err))
}
