package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/kyptronix/spectrum-admin/cache"
	"github.com/kyptronix/spectrum-admin/endpoint"
)

// LoginPath is the password login route of the admin API.
const LoginPath = "/api/auth/login"

// DefaultExpiryLeeway is how long before expiry a login token is renewed.
const DefaultExpiryLeeway = time.Minute

// Doer sends one API request and returns the decoded JSON body.
// *transport.HTTP implements it.
type Doer interface {
	Do(ctx context.Context, req endpoint.Request) (json.RawMessage, error)
}

// StaticToken returns a source that always yields token as a bearer token.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

// PasswordLogin exchanges an admin's email and password for a token.
type PasswordLogin struct {
	API      Doer
	Email    string
	Password string
}

// tokenFields are the response fields that may carry the token, in order.
var tokenFields = []string{"token", "accessToken", "access_token", "idToken"}

// Login posts the credentials and returns the issued token. The expiry is
// read from the token's exp claim when it is a JWT.
func (l PasswordLogin) Login(ctx context.Context) (*oauth2.Token, error) {
	if l.Email == "" || l.Password == "" {
		return nil, ErrMissingCredentials
	}
	if l.API == nil {
		return nil, fmt.Errorf("%w: no API configured", ErrLoginFailed)
	}

	raw, err := l.API.Do(ctx, endpoint.Request{
		Name:   "auth.login",
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   map[string]string{"email": l.Email, "password": l.Password},
	})
	if err != nil {
		var ce *cache.Error
		if errors.As(err, &ce) && (ce.Status == http.StatusUnauthorized || ce.Status == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	access, err := tokenFrom(raw)
	if err != nil {
		return nil, err
	}
	exp, err := Expiry(access)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: exp}, nil
}

func tokenFrom(raw json.RawMessage) (string, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("%w: response is not an object", ErrLoginFailed)
	}
	if data, ok := body["data"]; ok {
		if tok, err := tokenFrom(data); err == nil {
			return tok, nil
		}
	}
	for _, name := range tokenFields {
		var s string
		if err := json.Unmarshal(body[name], &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", fmt.Errorf("%w: response carries no token", ErrLoginFailed)
}

type loginSource struct {
	ctx   context.Context
	login PasswordLogin
}

func (s loginSource) Token() (*oauth2.Token, error) { return s.login.Login(s.ctx) }

// NewLoginTokenSource returns a source that logs in on first use and again
// once the token is within leeway of its expiry. Tokens without an expiry
// are reused until the process exits. ctx bounds every login request.
func NewLoginTokenSource(ctx context.Context, login PasswordLogin, leeway time.Duration) oauth2.TokenSource {
	if leeway <= 0 {
		leeway = DefaultExpiryLeeway
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, loginSource{ctx: ctx, login: login}, leeway)
}
