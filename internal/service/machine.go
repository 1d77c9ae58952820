package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	obserrors "github.com/civicloop/portal-auth/internal/observability/errors"
	"github.com/civicloop/portal-auth/internal/ports"
)

// ErrAuthenticationInFlight is returned when a state-mutating operation is
// invoked while another one is still running. Callers should read
// IsAuthenticating from the snapshot to suppress duplicate triggers.
var ErrAuthenticationInFlight = errors.New("service: authentication already in flight")

// Snapshot is an immutable read of the machine's observable state.
type Snapshot struct {
	State            domainauth.State
	User             domainauth.User
	IsAuthenticating bool
	Err              *domainauth.Error
}

// MachineOptions groups dependencies for Machine.
type MachineOptions struct {
	Primary      ports.PrimaryProvider     // Required: host SSO sign-in flow
	Phone        ports.PhoneVerifier       // Required: phone proof-of-possession flow
	Registration ports.RegistrationChecker // Required: backend registration check
	Accounts     ports.AccountCreator      // Required: backend user creation
	Tokens       *TokenStore               // Required: dual-track persistence
	Lifecycle    *Lifecycle                // Required: expiry and renewal
	Logger       *slog.Logger              // Optional: structured logger
}

// Machine is the authentication orchestrator. It holds the single source of
// truth for the current authentication state and drives transitions through
// the providers and the lifecycle manager. One instance per process,
// explicitly constructed by the composition root; Initialize must be called
// before any other operation, there is no implicit auto-start.
//
// Each public operation is one atomic sequence: guard evaluation (the only
// part that performs I/O) runs first, then the pure transition function
// decides the next state. In-flight guard results from before a logout are
// discarded by the epoch check so they cannot clobber post-logout state.
type Machine struct {
	primary      ports.PrimaryProvider
	phone        ports.PhoneVerifier
	registration ports.RegistrationChecker
	accounts     ports.AccountCreator
	tokens       *TokenStore
	lifecycle    *Lifecycle
	logger       *slog.Logger

	mu             sync.Mutex
	state          domainauth.State
	user           domainauth.User
	lastErr        *domainauth.Error
	authenticating bool
	phoneVerified  bool
	epoch          uint64

	nextSub   int
	subs      map[int]func(Snapshot)
	logoutChs []chan struct{}
}

// NewMachine constructs an auth machine in the loading state.
func NewMachine(opts MachineOptions) *Machine {
	if opts.Primary == nil {
		panic("service: Machine requires a PrimaryProvider")
	}
	if opts.Phone == nil {
		panic("service: Machine requires a PhoneVerifier")
	}
	if opts.Registration == nil {
		panic("service: Machine requires a RegistrationChecker")
	}
	if opts.Accounts == nil {
		panic("service: Machine requires an AccountCreator")
	}
	if opts.Tokens == nil {
		panic("service: Machine requires a TokenStore")
	}
	if opts.Lifecycle == nil {
		panic("service: Machine requires a Lifecycle")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		primary:      opts.Primary,
		phone:        opts.Phone,
		registration: opts.Registration,
		accounts:     opts.Accounts,
		tokens:       opts.Tokens,
		lifecycle:    opts.Lifecycle,
		logger:       logger,
		state:        domainauth.StateLoading,
		subs:         make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current observable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:            m.state,
		User:             m.user,
		IsAuthenticating: m.authenticating,
		Err:              m.lastErr,
	}
}

// Subscribe registers fn for fan-out notification on every state write and
// returns an unsubscribe function. fn is invoked synchronously, in write
// order, outside the machine's lock.
func (m *Machine) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// LogoutNotifications returns a channel that receives one message per
// logout, so other subsystems can clear cached data. The channel is
// buffered; a slow reader drops intermediate notifications rather than
// blocking logout.
func (m *Machine) LogoutNotifications() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.logoutChs = append(m.logoutChs, ch)
	m.mu.Unlock()
	return ch
}

func (m *Machine) notify() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// begin marks the machine busy for one state-mutating operation. It returns
// the epoch observed at entry; results applied under a newer epoch are
// discarded.
func (m *Machine) begin() (uint64, func(), error) {
	m.mu.Lock()
	if m.authenticating {
		m.mu.Unlock()
		return 0, nil, ErrAuthenticationInFlight
	}
	m.authenticating = true
	epoch := m.epoch
	m.mu.Unlock()
	m.notify()

	release := func() {
		m.mu.Lock()
		m.authenticating = false
		m.mu.Unlock()
		m.notify()
	}
	return epoch, release, nil
}

// apply runs the pure transition under the machine lock. It reports whether
// the result was applied; a stale epoch means the operation was superseded.
func (m *Machine) apply(ctx context.Context, epoch uint64, ev event, g guards, user domainauth.User, opErr *domainauth.Error) bool {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "discarding superseded transition", "event", ev.String())
		return false
	}
	prev := m.state
	m.state = nextState(prev, ev, g)
	if !user.IsZero() {
		m.user = user
	}
	if !m.state.Authenticated() && m.state != domainauth.StatePrimaryTokenExpired &&
		m.state != domainauth.StatePhoneTokenExpired {
		m.user = domainauth.User{}
	}
	m.lastErr = opErr
	next := m.state
	m.mu.Unlock()

	if prev != next {
		m.logger.InfoContext(ctx, "auth state transition",
			"from", string(prev), "to", string(next), "event", ev.String())
	}
	m.notify()
	return true
}

// evalGuards evaluates track freshness and, when the primary track is
// usable, the backend registration check. This is the only I/O on the
// initialize and sign-in paths.
func (m *Machine) evalGuards(ctx context.Context) (guards, domainauth.User, *domainauth.Error) {
	g := guards{
		primaryValid: !m.lifecycle.IsExpired(ctx, domainauth.TrackPrimary),
		phoneValid:   !m.lifecycle.IsExpired(ctx, domainauth.TrackPhone),
	}
	if !g.primaryValid {
		return g, domainauth.User{}, nil
	}

	user := m.lifecycle.User(domainauth.TrackPrimary)
	record, err := m.registration.CurrentUser(ctx)
	if err != nil {
		// A failed check is treated as "not registered" for resolution,
		// but the error is surfaced so the UI can distinguish a network
		// fault from a genuinely unregistered identity.
		return g, user, obserrors.Normalize(err, "registration check failed")
	}
	if record != nil {
		g.registered = true
		user.Account = record
		if user.DisplayName == "" {
			user.DisplayName = record.DisplayName
		}
		if user.Email == "" {
			user.Email = record.Email
		}
		if user.PhoneNumber == "" {
			user.PhoneNumber = record.PhoneNumber
		}
	}
	return g, user, nil
}

// Initialize resolves the starting state from stored tokens. Idempotent:
// repeated calls without intervening token changes resolve the same state.
func (m *Machine) Initialize(ctx context.Context) error {
	epoch, release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	g, user, authErr := m.evalGuards(ctx)
	m.apply(ctx, epoch, eventInitialize, g, user, authErr)
	return nil
}

// LoginWithLiff runs the host SSO sign-in flow. When the user is not yet
// linked to the host platform the host takes over with its own login
// redirect and this returns with no state change.
func (m *Machine) LoginWithLiff(ctx context.Context, redirectTarget string) error {
	epoch, release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	if err := m.primary.Initialize(ctx); err != nil {
		m.setError(obserrors.Normalize(err, "host session init failed"))
		return fmt.Errorf("init host session: %w", err)
	}
	linked, err := m.primary.Login(ctx, redirectTarget)
	if err != nil {
		m.setError(obserrors.Normalize(err, "host login failed"))
		return fmt.Errorf("host login: %w", err)
	}
	if !linked {
		return nil
	}

	ok, err := m.primary.SignInWithHostToken(ctx)
	var authErr *domainauth.Error
	switch {
	case err != nil:
		authErr = obserrors.Normalize(err, "sign-in failed")
	case !ok:
		authErr = domainauth.NewError(domainauth.KindAuthenticationFailed,
			"host token could not be exchanged for a session", nil)
	}

	g, user, guardErr := m.evalGuards(ctx)
	if authErr == nil {
		authErr = guardErr
	}
	m.apply(ctx, epoch, eventPrimarySignIn, g, user, authErr)
	if err != nil {
		return fmt.Errorf("sign in with host token: %w", err)
	}
	return nil
}

// StartPhoneVerification dispatches an OTP to phoneNumber and returns the
// verification id. An empty id with nil error is an expected, retryable
// failure; the cause is recorded on the snapshot.
func (m *Machine) StartPhoneVerification(ctx context.Context, phoneNumber string) (string, error) {
	_, release, err := m.begin()
	if err != nil {
		return "", err
	}
	defer release()

	id, err := m.phone.StartVerification(ctx, phoneNumber)
	if err != nil {
		m.setError(obserrors.Normalize(err, "phone verification could not start"))
		return "", fmt.Errorf("start phone verification: %w", err)
	}
	if id == "" {
		m.setError(domainauth.NewError(domainauth.KindAuthenticationFailed,
			"verification code could not be sent", nil))
		return "", nil
	}
	m.setError(nil)
	return id, nil
}

// VerifyPhoneCode submits the OTP the user entered. A false return with nil
// error means the code was rejected and the user may re-enter it; the state
// is unchanged. On success the phone-verified flag required by CreateUser
// is set and the machine transitions to phone_authenticated unless the user
// is already registered.
func (m *Machine) VerifyPhoneCode(ctx context.Context, code string) (bool, error) {
	epoch, release, err := m.begin()
	if err != nil {
		return false, err
	}
	defer release()

	ok, err := m.phone.VerifyCode(ctx, code)
	if err != nil {
		m.setError(obserrors.Normalize(err, "phone verification failed"))
		return false, fmt.Errorf("verify phone code: %w", err)
	}
	if !ok {
		m.setError(domainauth.NewError(domainauth.KindAuthenticationFailed,
			"verification code rejected", nil))
		return false, nil
	}

	m.mu.Lock()
	m.phoneVerified = true
	user := m.user
	m.mu.Unlock()

	if phoneUser := m.lifecycle.User(domainauth.TrackPhone); phoneUser.PhoneNumber != "" {
		if user.IsZero() {
			user = phoneUser
		} else {
			user.PhoneNumber = phoneUser.PhoneNumber
		}
	}

	g := guards{
		primaryValid: !m.lifecycle.IsExpired(ctx, domainauth.TrackPrimary),
		phoneValid:   true,
	}
	m.apply(ctx, epoch, eventPhoneVerified, g, user, nil)
	return true, nil
}

// CheckTokenExpiration re-evaluates track freshness and downgrades the
// state when the active track's token aged out. Intended to run from a
// periodic poll; it never upgrades state and needs no renewal round-trip.
func (m *Machine) CheckTokenExpiration(ctx context.Context) {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	g := guards{
		primaryValid: !m.lifecycle.IsExpired(ctx, domainauth.TrackPrimary),
		phoneValid:   !m.lifecycle.IsExpired(ctx, domainauth.TrackPhone),
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = nextState(prev, eventExpiryCheck, g)
	next := m.state
	m.mu.Unlock()

	if prev != next {
		m.logger.InfoContext(ctx, "auth state transition",
			"from", string(prev), "to", string(next), "event", eventExpiryCheck.String())
		m.notify()
	}
}

// RenewTokens attempts recovery from a token-expired state. From
// primary_token_expired it refreshes through the identity backend; failure
// drops to unauthenticated. From phone_token_expired no renewal is possible,
// so the machine falls back to whatever the primary track still proves.
// A no-op in every other state.
func (m *Machine) RenewTokens(ctx context.Context) error {
	epoch, release, err := m.begin()
	if err != nil {
		return err
	}
	defer release()

	m.mu.Lock()
	current := m.state
	m.mu.Unlock()

	switch current {
	case domainauth.StatePrimaryTokenExpired:
		renewed, renewErr := m.lifecycle.Renew(ctx, domainauth.TrackPrimary)
		var authErr *domainauth.Error
		if renewErr != nil {
			authErr = obserrors.Normalize(renewErr, "token renewal failed")
		}

		g := guards{renewed: renewed}
		var user domainauth.User
		if renewed {
			var guardErr *domainauth.Error
			g, user, guardErr = m.evalGuards(ctx)
			g.renewed = true
			if authErr == nil {
				authErr = guardErr
			}
		}
		m.apply(ctx, epoch, eventRenewal, g, user, authErr)
		if renewErr != nil {
			return fmt.Errorf("renew primary tokens: %w", renewErr)
		}
		return nil

	case domainauth.StatePhoneTokenExpired:
		g := guards{primaryValid: !m.lifecycle.IsExpired(ctx, domainauth.TrackPrimary)}
		m.apply(ctx, epoch, eventRenewal, g, domainauth.User{}, nil)
		return nil
	}
	return nil
}

// CreateUser registers the authenticated identity as an application user.
// Requires a fresh primary token and a completed phone verification in this
// process lifetime.
func (m *Machine) CreateUser(ctx context.Context, in ports.CreateUserInput) (*domainauth.AccountRecord, error) {
	epoch, release, err := m.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	m.mu.Lock()
	verified := m.phoneVerified
	m.mu.Unlock()

	if !verified {
		return nil, domainauth.NewError(domainauth.KindPermissionDenied,
			"phone verification must complete before user creation", nil)
	}
	if m.lifecycle.IsExpired(ctx, domainauth.TrackPrimary) {
		return nil, domainauth.NewError(domainauth.KindTokenExpired,
			"primary token is expired or missing", nil)
	}

	record, err := m.accounts.CreateUser(ctx, in)
	if err != nil {
		m.setError(obserrors.Normalize(err, "user creation failed"))
		return nil, fmt.Errorf("create user: %w", err)
	}

	m.mu.Lock()
	user := m.user
	m.mu.Unlock()
	user.Account = record
	if user.DisplayName == "" {
		user.DisplayName = record.DisplayName
	}

	g := guards{primaryValid: true, phoneValid: !m.lifecycle.IsExpired(ctx, domainauth.TrackPhone), registered: true}
	m.apply(ctx, epoch, eventUserCreated, g, user, nil)
	return record, nil
}

// Logout revokes the host session, clears both token tracks and resets the
// machine to unauthenticated. Valid from any state, including mid-flight:
// bumping the epoch makes any in-flight operation's result stale. Storage
// and host failures are reported but never leave the machine signed in.
func (m *Machine) Logout(ctx context.Context) error {
	var errs []error
	if err := m.primary.Logout(ctx); err != nil {
		errs = append(errs, fmt.Errorf("host logout: %w", err))
	}
	m.phone.Reset()
	for _, track := range domainauth.Tracks() {
		if err := m.tokens.Clear(ctx, track); err != nil {
			errs = append(errs, fmt.Errorf("clear %s tokens: %w", track, err))
		}
		m.lifecycle.Forget(track)
	}

	m.mu.Lock()
	m.epoch++
	prev := m.state
	m.state = domainauth.StateUnauthenticated
	m.user = domainauth.User{}
	m.lastErr = nil
	m.phoneVerified = false
	chs := make([]chan struct{}, len(m.logoutChs))
	copy(chs, m.logoutChs)
	m.mu.Unlock()

	if prev != domainauth.StateUnauthenticated {
		m.logger.InfoContext(ctx, "auth state transition",
			"from", string(prev), "to", string(domainauth.StateUnauthenticated),
			"event", eventLogout.String())
	}
	m.notify()
	for _, ch := range chs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return errors.Join(errs...)
}

func (m *Machine) setError(e *domainauth.Error) {
	m.mu.Lock()
	m.lastErr = e
	m.mu.Unlock()
	m.notify()
}
