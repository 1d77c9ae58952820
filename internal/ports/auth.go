package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
)

// Session is a live, freshly-authenticated identity-backend session.
// Adapters map provider-specific token responses into this shape.
type Session struct {
	TokenSet domainauth.TokenSet
	User     domainauth.User
}

// IsZero reports whether the session carries no credential material.
func (s Session) IsZero() bool { return s.TokenSet.IsZero() }

// HostSession wraps the chat-app mini-program host SDK surface.
// Init must be idempotent; Login reports whether the user is linked to the
// host platform, which is not yet a backend session.
type HostSession interface {
	Init(ctx context.Context) error
	Login(ctx context.Context, redirectTarget string) (bool, error)
	LoggedIn(ctx context.Context) bool

	// AccessToken returns the host-issued access token for the current
	// host login. Empty when the user is not linked.
	AccessToken(ctx context.Context) (string, error)
	Profile(ctx context.Context) (domainauth.HostProfile, error)
	Logout(ctx context.Context) error

	// Embedded reports whether the app runs inside the host's webview.
	// Challenge widgets must render visibly there.
	Embedded() bool
}

// IdentityClient talks to the managed identity backend. Token issuance is
// opaque upstream: credential in, signed token with expiry out.
type IdentityClient interface {
	SignInWithCustomToken(ctx context.Context, customToken string) (Session, error)
	SendVerificationCode(ctx context.Context, phoneNumber, challengeToken string) (string, error)
	SignInWithPhoneCredential(ctx context.Context, verificationID, code string) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error

	// ExchangeHostToken trades a host-issued access token for a backend
	// custom session token consumable by SignInWithCustomToken.
	ExchangeHostToken(ctx context.Context, hostToken string) (string, error)

	// OnSessionChange registers a callback fired after every successful
	// sign-in or refresh. A zero-value session signals sign-out.
	OnSessionChange(fn func(Session))
}

// TokenSync persists a live session's token material for a track. Persisting
// must complete before any state transition that depends on reading it back.
type TokenSync interface {
	SyncFromSession(ctx context.Context, track domainauth.Track, sess Session) error
}

// PrimaryProvider is the standing-session sign-in flow over the host SSO.
type PrimaryProvider interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, redirectTarget string) (bool, error)
	SignInWithHostToken(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
}

// PhoneVerifier is the one-shot phone proof-of-possession flow. Expected
// failures (bad number, wrong code) are reported through return values,
// not errors.
type PhoneVerifier interface {
	StartVerification(ctx context.Context, phoneNumber string) (string, error)
	VerifyCode(ctx context.Context, code string) (bool, error)
	Reset()
}

// ChallengeWidget is a live bot-check widget instance. At most one may
// exist at a time; creators must destroy any prior instance first.
type ChallengeWidget interface {
	Token(ctx context.Context) (string, error)
	Destroy()
}

// ChallengeWidgetFactory renders challenge widgets. Visible controls the
// widget size: visible inside the embedded webview, invisible elsewhere.
type ChallengeWidgetFactory interface {
	Render(ctx context.Context, visible bool) (ChallengeWidget, error)
}

// RegistrationChecker queries the business backend for the application-user
// record linked to the currently authorized identity. A nil record with nil
// error means the identity is authenticated but not registered.
type RegistrationChecker interface {
	CurrentUser(ctx context.Context) (*domainauth.AccountRecord, error)
}

// AccountCreator registers a new application user against the business
// backend using the current authorization headers.
type AccountCreator interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*domainauth.AccountRecord, error)
}

// CreateUserInput carries the fields required to register an application user.
type CreateUserInput struct {
	DisplayName string
	Email       string
	PhoneNumber string
}
