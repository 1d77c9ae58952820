package errors

import (
	"context"
	goerrors "errors"
	"net"
	"net/http"
	"strings"

	"github.com/civicloop/portal-auth/internal/adapters/identity"
	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
)

// Classify maps an upstream failure into a domain error kind. The kind must
// carry enough signal for the UI to distinguish "retry" (network) from
// "re-enter code" (credential) affordances.
func Classify(err error) domainauth.ErrorKind {
	if err == nil {
		return ""
	}

	// Already-normalized errors keep their kind.
	var authErr *domainauth.Error
	if goerrors.As(err, &authErr) {
		return authErr.Kind
	}

	var apiErr *identity.APIError
	if goerrors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	if isNetworkError(err) {
		return domainauth.KindNetworkError
	}

	return domainauth.KindUnknown
}

// Normalize wraps err into a domain Error with a classified kind. Existing
// domain errors pass through unchanged.
func Normalize(err error, message string) *domainauth.Error {
	if err == nil {
		return nil
	}
	var authErr *domainauth.Error
	if goerrors.As(err, &authErr) {
		return authErr
	}
	return domainauth.NewError(Classify(err), message, err)
}

func classifyAPIError(apiErr *identity.APIError) domainauth.ErrorKind {
	switch apiErr.Code {
	case "TOKEN_EXPIRED", "SESSION_EXPIRED", "INVALID_REFRESH_TOKEN", "invalid_grant":
		return domainauth.KindTokenExpired
	case "INVALID_CUSTOM_TOKEN", "INVALID_CODE", "INVALID_VERIFICATION_ID",
		"CODE_EXPIRED", "INVALID_HOST_TOKEN", "UNAUTHENTICATED":
		return domainauth.KindAuthenticationFailed
	case "USER_NOT_FOUND", "USER_DISABLED":
		return domainauth.KindUserNotFound
	case "PERMISSION_DENIED", "INSUFFICIENT_PERMISSION":
		return domainauth.KindPermissionDenied
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return domainauth.KindAuthenticationFailed
	case http.StatusForbidden:
		return domainauth.KindPermissionDenied
	case http.StatusNotFound:
		return domainauth.KindUserNotFound
	}
	return domainauth.KindUnknown
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return true
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// http.Client wraps transport failures in *url.Error, which implements
	// net.Error, but cover plain string matches from older wrappers too.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "client timeout")
}
