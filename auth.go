package chatgenius

import "context"

// TokenProvider supplies short-lived bearer tokens for the REST backend and
// the broker handshake. A nil or empty token means "cannot connect yet", not
// an error; callers wait for sign-in rather than failing.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	IsSignedIn() bool
}

type staticToken string

// StaticToken returns a TokenProvider that always yields the given token.
// Useful for CLIs and tests; real applications plug in their auth session.
func StaticToken(token string) TokenProvider {
	return staticToken(token)
}

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func (s staticToken) IsSignedIn() bool { return s != "" }
