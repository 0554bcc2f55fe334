package store

import (
	"errors"
	"net/http"
	"strings"
)

// Authorizer decorates outgoing store requests with the session's credentials.
type Authorizer interface {
	Authorize(req *http.Request) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(req *http.Request) error

// Authorize calls f(req).
func (f AuthorizerFunc) Authorize(req *http.Request) error {
	return f(req)
}

// BearerToken authorizes requests with a static bearer token.
func BearerToken(token string) Authorizer {
	token = strings.TrimSpace(token)
	return AuthorizerFunc(func(req *http.Request) error {
		if token == "" {
			return errors.New("store: bearer token is empty")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// NoAuth leaves requests untouched.
func NoAuth() Authorizer {
	return AuthorizerFunc(func(*http.Request) error { return nil })
}
