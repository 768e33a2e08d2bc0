package authapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/IamNewInThis/cuidador-app-sub000/pkg/auth"
)

var (
	ErrMissingURL     = errors.New("authapi: base url is required")
	ErrMissingAPIKey  = errors.New("authapi: api key is required")
	ErrUnexpectedBody = errors.New("authapi: unexpected response body")
)

// APIError is a non-2xx response from the auth service.
type APIError struct {
	Status           int    `json:"-"`
	Code             string `json:"error_code"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authapi: %d %s", e.Status, e.message())
}

func (e *APIError) message() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.ErrorName != "":
		return e.ErrorName
	default:
		return http.StatusText(e.Status)
	}
}

// classify maps the response onto the auth error taxonomy. Responses that
// match no kind are returned as is and count as network failures.
func (e *APIError) classify() error {
	switch {
	case e.Code == "invalid_credentials", e.ErrorName == "invalid_grant":
		return &auth.Error{Kind: auth.KindInvalidCredentials, Message: e.message(), Err: e}
	case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden,
		e.Code == "session_not_found", e.Code == "bad_jwt":
		return &auth.Error{Kind: auth.KindSessionMissing, Message: e.message(), Err: e}
	case e.Code == "provider_disabled", e.Code == "oauth_provider_not_supported":
		return &auth.Error{Kind: auth.KindProviderUnavailable, Message: e.message(), Err: e}
	default:
		return e
	}
}
