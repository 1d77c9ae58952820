package identity

import (
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// APIError is a structured error returned by the identity backend.
// Code is the backend's machine-readable error code, e.g.
// INVALID_CUSTOM_TOKEN, TOKEN_EXPIRED, INVALID_CODE, USER_NOT_FOUND.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity backend: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("identity backend: %s", e.Code)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// normalizeOAuthError converts oauth2.RetrieveError responses from the token
// endpoint into APIError so classification sees one error shape.
func normalizeOAuthError(err error) error {
	rErr, ok := err.(*oauth2.RetrieveError)
	if !ok {
		return err
	}

	apiErr := &APIError{StatusCode: 0, Code: rErr.ErrorCode, Message: rErr.ErrorDescription}
	if rErr.Response != nil {
		apiErr.StatusCode = rErr.Response.StatusCode
	}
	if apiErr.Code == "" {
		var body struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(rErr.Body, &body); jsonErr == nil {
			apiErr.Code = body.Error.Code
			apiErr.Message = body.Error.Message
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = "TOKEN_ENDPOINT_ERROR"
	}
	return apiErr
}
