package phone

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/ports"
	"github.com/civicloop/portal-auth/internal/util"
)

// ErrNoPendingVerification indicates VerifyCode was called with no
// verification in flight. That is a caller bug, not a wrong code.
var ErrNoPendingVerification = errors.New("phone: no pending verification")

// VerifierOptions groups dependencies for Verifier.
type VerifierOptions struct {
	Identity ports.IdentityClient
	Widgets  ports.ChallengeWidgetFactory
	Sync     ports.TokenSync
}

// Verifier implements the phone OTP flow. The phone track is a one-shot
// proof-of-possession: the only durable artifact of a successful
// verification is the persisted token pair, never a standing session.
type Verifier struct {
	identity ports.IdentityClient
	widgets  ports.ChallengeWidgetFactory
	sync     ports.TokenSync
	embedded func() bool
	logger   *slog.Logger

	mu      sync.Mutex
	pending *verification
}

// verification is the transient per-attempt session. It never survives a
// process restart and is destroyed on success, failure, or Reset.
type verification struct {
	id          string
	sessionID   string
	phoneNumber string
	widget      ports.ChallengeWidget
}

// NewVerifier constructs a phone verifier. The embedded callback reports
// whether the app runs inside the chat-app webview, where the challenge
// widget must render visibly.
func NewVerifier(opts VerifierOptions, embedded func() bool) *Verifier {
	if opts.Identity == nil {
		panic("phone: Verifier requires an IdentityClient")
	}
	if opts.Widgets == nil {
		panic("phone: Verifier requires a ChallengeWidgetFactory")
	}
	if opts.Sync == nil {
		panic("phone: Verifier requires a TokenSync")
	}
	if embedded == nil {
		embedded = func() bool { return false }
	}
	return &Verifier{
		identity: opts.Identity,
		widgets:  opts.Widgets,
		sync:     opts.Sync,
		embedded: embedded,
	}
}

// WithLogger attaches a structured logger.
func (v *Verifier) WithLogger(logger *slog.Logger) *Verifier {
	v.logger = logger
	return v
}

// StartVerification renders a challenge widget and requests an OTP for
// phoneNumber. Returns the verification handle, or "" for expected failures
// such as an invalid number; the caller surfaces a user-facing error.
// Any prior widget is destroyed first: the challenge provider rejects
// duplicate live widgets.
func (v *Verifier) StartVerification(ctx context.Context, phoneNumber string) (string, error) {
	if phoneNumber == "" {
		return "", errors.New("phone number is required")
	}

	v.Reset()

	widget, err := v.widgets.Render(ctx, v.embedded())
	if err != nil {
		v.logFailure(ctx, "challenge widget render failed", err)
		return "", nil
	}

	token, err := widget.Token(ctx)
	if err != nil {
		widget.Destroy()
		v.logFailure(ctx, "challenge token failed", err)
		return "", nil
	}

	verificationID, err := v.identity.SendVerificationCode(ctx, phoneNumber, token)
	if err != nil {
		widget.Destroy()
		v.logFailure(ctx, "verification code dispatch failed", err)
		return "", nil
	}

	v.mu.Lock()
	v.pending = &verification{
		id:          verificationID,
		sessionID:   uuid.New().String(),
		phoneNumber: phoneNumber,
		widget:      widget,
	}
	v.mu.Unlock()
	return verificationID, nil
}

// VerifyCode exchanges the pending verification handle plus code for a
// signed-in session, persists the phone tokens, and immediately signs the
// live phone session back out. A wrong code returns (false, nil); calling
// with no pending verification returns ErrNoPendingVerification.
//
// When direct sign-in fails the credential may already have been consumed
// by a racing request, so a single fallback re-dispatches a fresh OTP
// through the still-live widget and retries.
func (v *Verifier) VerifyCode(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, errors.New("code is required")
	}

	v.mu.Lock()
	pending := v.pending
	v.mu.Unlock()
	if pending == nil {
		return false, ErrNoPendingVerification
	}

	sess, err := util.TwoAttempt(ctx,
		func(ctx context.Context) (ports.Session, error) {
			return v.identity.SignInWithPhoneCredential(ctx, pending.id, code)
		},
		func(ctx context.Context) (ports.Session, error) {
			return v.retryWithFreshDispatch(ctx, pending, code)
		},
	)
	if err != nil {
		v.logFailure(ctx, "phone credential sign-in failed", err,
			"verification_session", pending.sessionID)
		v.Reset()
		return false, nil
	}

	// Persist first: the tokens are the verification's durable artifact.
	if syncErr := v.sync.SyncFromSession(ctx, domainauth.TrackPhone, sess); syncErr != nil {
		v.Reset()
		return false, syncErr
	}

	// The phone track is a verification event, not a standing session;
	// only its token pair is retained.
	if signOutErr := v.identity.SignOut(ctx, sess.TokenSet.AccessToken); signOutErr != nil {
		v.logFailure(ctx, "phone session sign-out failed", signOutErr)
	}

	v.Reset()
	return true, nil
}

// retryWithFreshDispatch re-requests an OTP dispatch using the stored phone
// number and the still-live widget, then retries sign-in with the same code.
func (v *Verifier) retryWithFreshDispatch(ctx context.Context, pending *verification, code string) (ports.Session, error) {
	token, err := pending.widget.Token(ctx)
	if err != nil {
		return ports.Session{}, err
	}

	freshID, err := v.identity.SendVerificationCode(ctx, pending.phoneNumber, token)
	if err != nil {
		return ports.Session{}, err
	}

	return v.identity.SignInWithPhoneCredential(ctx, freshID, code)
}

// Reset tears down any live widget and clears the pending verification.
// Safe to call when nothing is pending.
func (v *Verifier) Reset() {
	v.mu.Lock()
	pending := v.pending
	v.pending = nil
	v.mu.Unlock()

	if pending != nil && pending.widget != nil {
		pending.widget.Destroy()
	}
}

func (v *Verifier) logFailure(ctx context.Context, msg string, err error, args ...any) {
	if v.logger == nil {
		return
	}
	v.logger.WarnContext(ctx, msg, append([]any{"error", err}, args...)...)
}
