package identitysvc

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/juku/core"
)

const (
	testChannelID = "1657000000"
	testSecret    = "channel-secret"
)

func newTestLINEService() *lineService {
	conf := &core.Config{Identity: core.IdentityConfig{ChannelID: testChannelID, ChannelSecret: testSecret}}
	return NewLINEService(conf)
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims lineClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() lineClaims {
	now := time.Now()
	return lineClaims{
		Name:    "Yamada Taro",
		Picture: "https://profile.line-scdn.net/abc",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultLINEIssuer,
			Subject:   "U4af4980629",
			Audience:  jwt.ClaimStrings{testChannelID},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func TestLINEService_CurrentUser(t *testing.T) {
	svc := newTestLINEService()

	usr, err := svc.Provider(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())).CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "U4af4980629", usr.ExternalID)
	assert.Equal(t, "Yamada Taro", usr.DisplayName)
	assert.Equal(t, "https://profile.line-scdn.net/abc", usr.AvatarURL)
}

func TestLINEService_CurrentUser_invalid(t *testing.T) {
	svc := newTestLINEService()

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://example.com"

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"other-channel"}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims())},
		{name: "wrong algorithm", token: signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())},
		{name: "wrong issuer", token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer)},
		{name: "wrong audience", token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAudience)},
		{name: "expired", token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{name: "no subject", token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := svc.Provider(tt.token)
			assert.True(t, p.IsLoggedIn())
			_, err := p.CurrentUser(context.Background())
			assert.True(t, core.IsIdentityError(err), "got %v", err)
		})
	}
}

func TestLINEService_notLoggedIn(t *testing.T) {
	p := newTestLINEService().Provider("  ")
	assert.False(t, p.IsLoggedIn())
	_, err := p.CurrentUser(context.Background())
	assert.True(t, core.IsIdentityError(err))
}

func TestMockService(t *testing.T) {
	p := NewMockService("Udev", "Dev User").Provider("")
	assert.True(t, p.IsLoggedIn())
	usr, err := p.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Udev", usr.ExternalID)
	assert.Equal(t, "Dev User", usr.DisplayName)

	assert.False(t, NewMockService("", "").Provider("token").IsLoggedIn())
}
