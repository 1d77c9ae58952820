package auth

import "fmt"

// ErrorKind is the closed set of authentication failure categories.
// The UI relies on the kind to choose between "retry" and "re-enter code"
// affordances, so classification must distinguish transport failures from
// credential failures.
type ErrorKind string

const (
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindTokenExpired         ErrorKind = "token_expired"
	KindNetworkError         ErrorKind = "network_error"
	KindUserNotFound         ErrorKind = "user_not_found"
	KindPermissionDenied     ErrorKind = "permission_denied"
	KindUnknown              ErrorKind = "unknown"
)

// Error is a normalized authentication error. Err optionally carries the
// causing condition for logging; Message is safe to surface to users.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a normalized Error from a kind, message, and optional cause.
func NewError(kind ErrorKind, message string, cause error) *Error {
	if kind == "" {
		kind = KindUnknown
	}
	return &Error{Kind: kind, Message: message, Err: cause}
}
