package identitysvc

import (
	"context"

	"github.com/trezcool/juku/core/identity"
)

// mockService logs every request in as the same user. Development only.
type mockService struct {
	usr identity.User
}

var _ identity.Authenticator = (*mockService)(nil)

func NewMockService(externalID, displayName string) *mockService {
	return &mockService{usr: identity.User{ExternalID: externalID, DisplayName: displayName}}
}

func (svc *mockService) Provider(string) identity.Provider {
	return mockProvider{usr: svc.usr}
}

type mockProvider struct {
	usr identity.User
}

func (p mockProvider) IsLoggedIn() bool { return p.usr.ExternalID != "" }

func (p mockProvider) CurrentUser(context.Context) (identity.User, error) {
	return p.usr, nil
}
