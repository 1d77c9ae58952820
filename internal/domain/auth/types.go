package auth

// Package auth contains domain-level types for the dual-track authentication
// flow. It is pure and free of framework/adapter concerns.

import "time"

// Track identifies an independent identity track.
// Keep string form for easy persistence and log tagging.
type Track string

const (
	// TrackPrimary is the standing session established through the chat-app
	// mini-program SSO flow.
	TrackPrimary Track = "primary"
	// TrackPhone is the one-shot phone OTP proof-of-possession flow.
	TrackPhone Track = "phone"
)

// Tracks lists all identity tracks in a stable order.
func Tracks() []Track { return []Track{TrackPrimary, TrackPhone} }

// TokenSet is the credential material held for one identity track.
// A zero value for any field means "not currently held" and callers must
// treat it as expired. ExpiresAt is always an absolute instant, never a
// duration.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IsZero reports whether no credential material is held at all.
func (t TokenSet) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == "" && t.ExpiresAt.IsZero()
}

// State is the closed enumeration of authentication states.
// Exactly one value is active per machine at any time.
type State string

const (
	// StateLoading is the only state before Initialize completes.
	StateLoading State = "loading"
	// StateUnauthenticated means no valid identity on either track.
	StateUnauthenticated State = "unauthenticated"
	// StatePrimaryAuthenticated means the chat-app identity is valid but the
	// identity is not linked to a registered application user.
	StatePrimaryAuthenticated State = "primary_authenticated"
	// StatePrimaryTokenExpired means the primary token aged out while held.
	StatePrimaryTokenExpired State = "primary_token_expired"
	// StatePhoneAuthenticated means a phone number was verified and its
	// token pair is still fresh.
	StatePhoneAuthenticated State = "phone_authenticated"
	// StatePhoneTokenExpired means the phone-track token aged out.
	StatePhoneTokenExpired State = "phone_token_expired"
	// StateUserRegistered means the authenticated identity maps to a
	// registered application user. It does not imply token freshness.
	StateUserRegistered State = "user_registered"
)

// Valid reports whether s is a member of the closed enumeration.
func (s State) Valid() bool {
	switch s {
	case StateLoading, StateUnauthenticated,
		StatePrimaryAuthenticated, StatePrimaryTokenExpired,
		StatePhoneAuthenticated, StatePhoneTokenExpired,
		StateUserRegistered:
		return true
	}
	return false
}

// Authenticated reports whether s carries a usable identity on some track.
func (s State) Authenticated() bool {
	switch s {
	case StatePrimaryAuthenticated, StatePhoneAuthenticated, StateUserRegistered:
		return true
	}
	return false
}

// HostProfile is the user profile exposed by the mini-program host.
type HostProfile struct {
	SubjectID   string
	DisplayName string
	PictureURL  string
}

// AccountRecord is the backend application-user record linked to an
// authenticated identity, as returned by the registration check.
type AccountRecord struct {
	ID          string
	DisplayName string
	Email       string
	PhoneNumber string
}

// User is a read-through projection of the currently active identity.
// Account is nil until the registration check resolves a backend record.
type User struct {
	SubjectID   string
	DisplayName string
	Email       string
	PhoneNumber string
	PictureURL  string
	Account     *AccountRecord
}

// IsZero reports whether no identity has been resolved.
func (u User) IsZero() bool {
	return u.SubjectID == "" && u.Account == nil
}
