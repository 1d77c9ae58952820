package service

import (
	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
)

// event is a trigger fed to the transition function. Guard evaluation, and
// any I/O it needs, happens before nextState runs; nextState itself is pure.
type event int

const (
	eventInitialize event = iota
	eventPrimarySignIn
	eventPhoneVerified
	eventExpiryCheck
	eventRenewal
	eventUserCreated
	eventLogout
)

func (e event) String() string {
	switch e {
	case eventInitialize:
		return "initialize"
	case eventPrimarySignIn:
		return "primary_sign_in"
	case eventPhoneVerified:
		return "phone_verified"
	case eventExpiryCheck:
		return "expiry_check"
	case eventRenewal:
		return "renewal"
	case eventUserCreated:
		return "user_created"
	case eventLogout:
		return "logout"
	}
	return "unknown"
}

// guards carries the pre-evaluated facts a transition depends on.
type guards struct {
	// primaryValid is true when the primary track holds a fresh token.
	primaryValid bool
	// phoneValid is true when the phone track holds a fresh token.
	phoneValid bool
	// registered is true when the registration check resolved a backend
	// account record for the primary identity.
	registered bool
	// renewed is true when a renewal attempt minted a fresh token.
	// Only meaningful for eventRenewal.
	renewed bool
}

// nextState maps (current, event, guards) to the next state. Dual-track
// resolution is deliberately a flat table rather than nested conditionals.
func nextState(current domainauth.State, ev event, g guards) domainauth.State {
	switch ev {
	case eventInitialize, eventPrimarySignIn:
		return resolveTracks(g)

	case eventPhoneVerified:
		// A registered user stays registered; verification is recorded
		// for account creation but does not move the state backwards.
		if current == domainauth.StateUserRegistered {
			return current
		}
		return domainauth.StatePhoneAuthenticated

	case eventExpiryCheck:
		// Registration is anchored to the primary identity, so phone
		// expiry never downgrades a registered user.
		switch current {
		case domainauth.StatePrimaryAuthenticated, domainauth.StateUserRegistered:
			if !g.primaryValid {
				return domainauth.StatePrimaryTokenExpired
			}
		case domainauth.StatePhoneAuthenticated:
			if !g.phoneValid {
				return domainauth.StatePhoneTokenExpired
			}
		}
		return current

	case eventRenewal:
		switch current {
		case domainauth.StatePrimaryTokenExpired:
			if g.renewed {
				return resolveTracks(guards{
					primaryValid: true,
					phoneValid:   g.phoneValid,
					registered:   g.registered,
				})
			}
			return domainauth.StateUnauthenticated
		case domainauth.StatePhoneTokenExpired:
			// Phone renewal is impossible by contract; fall back to
			// whatever the primary track still proves.
			if g.primaryValid {
				return domainauth.StatePrimaryAuthenticated
			}
			return domainauth.StateUnauthenticated
		}
		return current

	case eventUserCreated:
		return domainauth.StateUserRegistered

	case eventLogout:
		return domainauth.StateUnauthenticated
	}
	return current
}

// resolveTracks is the shared resolution used after startup and after any
// successful primary sign-in or renewal.
func resolveTracks(g guards) domainauth.State {
	switch {
	case !g.primaryValid:
		return domainauth.StateUnauthenticated
	case g.registered:
		return domainauth.StateUserRegistered
	case g.phoneValid:
		return domainauth.StatePhoneAuthenticated
	default:
		return domainauth.StatePrimaryAuthenticated
	}
}
