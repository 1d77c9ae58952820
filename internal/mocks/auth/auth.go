package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.HostSession            = (*FakeHostSession)(nil)
	_ ports.PrimaryProvider        = (*FakePrimaryProvider)(nil)
	_ ports.PhoneVerifier          = (*FakePhoneVerifier)(nil)
	_ ports.IdentityClient         = (*FakeIdentityClient)(nil)
	_ ports.ChallengeWidget        = (*FakeWidget)(nil)
	_ ports.ChallengeWidgetFactory = (*FakeWidgetFactory)(nil)
	_ ports.RegistrationChecker    = (*FakeRegistrationChecker)(nil)
	_ ports.AccountCreator         = (*FakeAccountCreator)(nil)
	_ ports.TokenSync              = (*RecordingSync)(nil)
)

// FakeHostSession simulates the mini-program host SDK.
type FakeHostSession struct {
	mu sync.Mutex

	InitErr       error
	InitCalls     int
	LoginResult   bool
	LoginErr      error
	Token         string
	TokenErr      error
	ProfileResult domainauth.HostProfile
	ProfileErr    error
	LogoutErr     error
	LogoutCalls   int
	IsEmbedded    bool
}

func (f *FakeHostSession) Init(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *FakeHostSession) Login(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoginErr != nil {
		return false, f.LoginErr
	}
	if f.LoginResult {
		// A successful host login links an access token.
		if f.Token == "" {
			f.Token = "host-token"
		}
	}
	return f.LoginResult, nil
}

func (f *FakeHostSession) LoggedIn(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Token != ""
}

func (f *FakeHostSession) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Token, f.TokenErr
}

func (f *FakeHostSession) Profile(context.Context) (domainauth.HostProfile, error) {
	return f.ProfileResult, f.ProfileErr
}

func (f *FakeHostSession) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	if f.LogoutErr != nil {
		return f.LogoutErr
	}
	f.Token = ""
	return nil
}

func (f *FakeHostSession) Embedded() bool { return f.IsEmbedded }

// FakePrimaryProvider simulates the host SSO sign-in flow. SignInFunc, when
// set, runs on sign-in so tests can persist tokens as the real provider does.
type FakePrimaryProvider struct {
	mu sync.Mutex

	InitErr      error
	LoginLinked  bool
	LoginErr     error
	SignInResult bool
	SignInErr    error
	SignInFunc   func(ctx context.Context) (bool, error)
	LogoutErr    error

	InitCalls   int
	LoginCalls  int
	SignInCalls int
	LogoutCalls int
}

func (f *FakePrimaryProvider) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *FakePrimaryProvider) Login(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	return f.LoginLinked, f.LoginErr
}

func (f *FakePrimaryProvider) SignInWithHostToken(ctx context.Context) (bool, error) {
	f.mu.Lock()
	f.SignInCalls++
	f.mu.Unlock()
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx)
	}
	return f.SignInResult, f.SignInErr
}

func (f *FakePrimaryProvider) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	return f.LogoutErr
}

// FakePhoneVerifier simulates the one-shot phone verification flow.
type FakePhoneVerifier struct {
	mu sync.Mutex

	StartResult string
	StartErr    error
	VerifyOK    bool
	VerifyErr   error
	VerifyFunc  func(ctx context.Context, code string) (bool, error)

	StartCalls  int
	VerifyCalls int
	ResetCalls  int
}

func (f *FakePhoneVerifier) StartVerification(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartCalls++
	return f.StartResult, f.StartErr
}

func (f *FakePhoneVerifier) VerifyCode(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	f.VerifyCalls++
	f.mu.Unlock()
	if f.VerifyFunc != nil {
		return f.VerifyFunc(ctx, code)
	}
	return f.VerifyOK, f.VerifyErr
}

func (f *FakePhoneVerifier) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResetCalls++
}

// FakeIdentityClient simulates the identity backend. Zero value behaves as a
// healthy backend minting deterministic sessions; Func fields override
// individual calls.
type FakeIdentityClient struct {
	mu sync.Mutex

	ExchangeHostTokenFunc func(ctx context.Context, hostToken string) (string, error)
	SignInCustomFunc      func(ctx context.Context, customToken string) (ports.Session, error)
	SendCodeFunc          func(ctx context.Context, phoneNumber, challengeToken string) (string, error)
	SignInPhoneFunc       func(ctx context.Context, verificationID, code string) (ports.Session, error)
	RefreshFunc           func(ctx context.Context, refreshToken string) (ports.Session, error)
	SignOutFunc           func(ctx context.Context, accessToken string) error

	SendCodeCalls   int
	SignInCalls     int
	RefreshCalls    int
	SignOutTokens   []string
	sessionClock    int
	sessionCallback []func(ports.Session)
}

// NewSession mints a deterministic fake session.
func (f *FakeIdentityClient) NewSession(subject string) ports.Session {
	f.mu.Lock()
	f.sessionClock++
	n := f.sessionClock
	f.mu.Unlock()

	return ports.Session{
		TokenSet: domainauth.TokenSet{
			AccessToken:  fmt.Sprintf("access-%s-%d", subject, n),
			RefreshToken: fmt.Sprintf("refresh-%s-%d", subject, n),
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		User: domainauth.User{
			SubjectID:   subject,
			DisplayName: "Fake " + subject,
			Email:       subject + "@example.com",
		},
	}
}

func (f *FakeIdentityClient) ExchangeHostToken(ctx context.Context, hostToken string) (string, error) {
	if f.ExchangeHostTokenFunc != nil {
		return f.ExchangeHostTokenFunc(ctx, hostToken)
	}
	if hostToken == "" {
		return "", errors.New("host token is required")
	}
	return "custom-" + hostToken, nil
}

func (f *FakeIdentityClient) SignInWithCustomToken(ctx context.Context, customToken string) (ports.Session, error) {
	f.mu.Lock()
	f.SignInCalls++
	f.mu.Unlock()

	if f.SignInCustomFunc != nil {
		return f.SignInCustomFunc(ctx, customToken)
	}
	sess := f.NewSession("primary-user")
	f.fire(sess)
	return sess, nil
}

func (f *FakeIdentityClient) SendVerificationCode(ctx context.Context, phoneNumber, challengeToken string) (string, error) {
	f.mu.Lock()
	f.SendCodeCalls++
	n := f.SendCodeCalls
	f.mu.Unlock()

	if f.SendCodeFunc != nil {
		return f.SendCodeFunc(ctx, phoneNumber, challengeToken)
	}
	return fmt.Sprintf("verify-%d", n), nil
}

func (f *FakeIdentityClient) SignInWithPhoneCredential(ctx context.Context, verificationID, code string) (ports.Session, error) {
	if f.SignInPhoneFunc != nil {
		return f.SignInPhoneFunc(ctx, verificationID, code)
	}
	sess := f.NewSession("phone-user")
	f.fire(sess)
	return sess, nil
}

func (f *FakeIdentityClient) Refresh(ctx context.Context, refreshToken string) (ports.Session, error) {
	f.mu.Lock()
	f.RefreshCalls++
	f.mu.Unlock()

	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx, refreshToken)
	}
	sess := f.NewSession("primary-user")
	f.fire(sess)
	return sess, nil
}

func (f *FakeIdentityClient) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	f.SignOutTokens = append(f.SignOutTokens, accessToken)
	f.mu.Unlock()

	if f.SignOutFunc != nil {
		return f.SignOutFunc(ctx, accessToken)
	}
	f.fire(ports.Session{})
	return nil
}

func (f *FakeIdentityClient) OnSessionChange(fn func(ports.Session)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCallback = append(f.sessionCallback, fn)
}

func (f *FakeIdentityClient) fire(sess ports.Session) {
	f.mu.Lock()
	callbacks := make([]func(ports.Session), len(f.sessionCallback))
	copy(callbacks, f.sessionCallback)
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn(sess)
	}
}

// FakeWidget is one live challenge widget. Destroyed is observable so tests
// can assert the single-instance rule.
type FakeWidget struct {
	mu         sync.Mutex
	ID         int
	TokenValue string
	TokenErr   error
	destroyed  bool
}

func (w *FakeWidget) Token(context.Context) (string, error) {
	if w.TokenErr != nil {
		return "", w.TokenErr
	}
	if w.TokenValue == "" {
		return fmt.Sprintf("challenge-token-%d", w.ID), nil
	}
	return w.TokenValue, nil
}

func (w *FakeWidget) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (w *FakeWidget) Destroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

// FakeWidgetFactory renders FakeWidgets and remembers every instance.
type FakeWidgetFactory struct {
	mu        sync.Mutex
	RenderErr error
	Widgets   []*FakeWidget
	Visible   []bool
}

func (f *FakeWidgetFactory) Render(_ context.Context, visible bool) (ports.ChallengeWidget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RenderErr != nil {
		return nil, f.RenderErr
	}
	w := &FakeWidget{ID: len(f.Widgets) + 1}
	f.Widgets = append(f.Widgets, w)
	f.Visible = append(f.Visible, visible)
	return w, nil
}

// LiveCount returns how many rendered widgets have not been destroyed.
func (f *FakeWidgetFactory) LiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := 0
	for _, w := range f.Widgets {
		if !w.Destroyed() {
			live++
		}
	}
	return live
}

// FakeRegistrationChecker returns a configured account record or error.
// Block, when set, runs before returning so tests can hold a check in
// flight.
type FakeRegistrationChecker struct {
	mu      sync.Mutex
	Record  *domainauth.AccountRecord
	Err     error
	Block   func()
	Calls   int
	LastCtx context.Context
}

func (f *FakeRegistrationChecker) CurrentUser(ctx context.Context) (*domainauth.AccountRecord, error) {
	f.mu.Lock()
	f.Calls++
	f.LastCtx = ctx
	record, err, block := f.Record, f.Err, f.Block
	f.mu.Unlock()
	if block != nil {
		block()
	}
	return record, err
}

// FakeAccountCreator returns a configured account record or error.
type FakeAccountCreator struct {
	Record *domainauth.AccountRecord
	Err    error
	Inputs []ports.CreateUserInput
}

func (f *FakeAccountCreator) CreateUser(_ context.Context, in ports.CreateUserInput) (*domainauth.AccountRecord, error) {
	f.Inputs = append(f.Inputs, in)
	return f.Record, f.Err
}

// RecordingSync records synced sessions per track.
type RecordingSync struct {
	mu     sync.Mutex
	Err    error
	Synced []SyncedSession
}

// SyncedSession is one recorded SyncFromSession call.
type SyncedSession struct {
	Track   domainauth.Track
	Session ports.Session
}

func (r *RecordingSync) SyncFromSession(_ context.Context, track domainauth.Track, sess ports.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Synced = append(r.Synced, SyncedSession{Track: track, Session: sess})
	return nil
}

// Count returns the number of recorded syncs.
func (r *RecordingSync) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Synced)
}
