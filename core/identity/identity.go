package identity

import "context"

// User is the account of the messaging platform the app is opened from.
type User struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type (
	// Provider exposes the current user of an embedded browser session.
	Provider interface {
		IsLoggedIn() bool
		// CurrentUser fails with a core.IdentityError when the user cannot be identified.
		CurrentUser(ctx context.Context) (User, error)
	}

	// Authenticator builds a Provider from the token sent by the embedded browser.
	Authenticator interface {
		Provider(token string) Provider
	}
)
