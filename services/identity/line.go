package identitysvc

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/identity"
)

const DefaultLINEIssuer = "https://access.line.me"

var (
	errNotLoggedIn  = errors.New("no identity token")
	errIdentityText = "please open this page from the app"
)

// lineClaims are the claims of a LINE ID token.
type lineClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// lineService verifies the ID tokens issued by LINE Login to the app's channel.
type lineService struct {
	channelID string
	secret    []byte
	issuer    string
	parser    *jwt.Parser
	now       func() time.Time
}

var _ identity.Authenticator = (*lineService)(nil)

func NewLINEService(conf *core.Config) *lineService {
	issuer := conf.Identity.Issuer
	if issuer == "" {
		issuer = DefaultLINEIssuer
	}
	return &lineService{
		channelID: conf.Identity.ChannelID,
		secret:    []byte(conf.Identity.ChannelSecret),
		issuer:    issuer,
		parser:    jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
		now:       time.Now,
	}
}

func (svc *lineService) Provider(token string) identity.Provider {
	return &lineProvider{svc: svc, token: strings.TrimSpace(token)}
}

func (svc *lineService) verify(token string) (identity.User, error) {
	claims := new(lineClaims)
	_, err := svc.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return svc.secret, nil
	})
	if err != nil {
		return identity.User{}, errors.Wrap(err, "parsing ID token")
	}

	now := svc.now()
	switch {
	case !claims.VerifyIssuer(svc.issuer, true):
		return identity.User{}, errors.Errorf("unexpected issuer %q", claims.Issuer)
	case !claims.VerifyAudience(svc.channelID, true):
		return identity.User{}, errors.Errorf("unexpected audience %v", claims.Audience)
	case !claims.VerifyExpiresAt(now, true):
		return identity.User{}, errors.New("token is expired")
	case claims.Subject == "":
		return identity.User{}, errors.New("missing subject")
	}

	return identity.User{
		ExternalID:  claims.Subject,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}, nil
}

type lineProvider struct {
	svc   *lineService
	token string
}

func (p *lineProvider) IsLoggedIn() bool {
	return p.token != ""
}

func (p *lineProvider) CurrentUser(_ context.Context) (identity.User, error) {
	if !p.IsLoggedIn() {
		return identity.User{}, core.NewIdentityError(errNotLoggedIn, errIdentityText)
	}
	usr, err := p.svc.verify(p.token)
	if err != nil {
		return identity.User{}, core.NewIdentityError(err, errIdentityText)
	}
	return usr, nil
}
