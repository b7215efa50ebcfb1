package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tombee/flowctl/pkg/api"
)

// AuthService covers login, logout and the current user.
type AuthService struct {
	client *api.Client
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenFields struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// loginResult accepts the token pair either at the top level of data or
// nested under "tokens".
type loginResult struct {
	tokenFields
	Tokens *tokenFields `json:"tokens,omitempty"`
	User   *User        `json:"user,omitempty"`
}

// Session is the outcome of a successful login.
type Session struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// Login exchanges credentials for a token pair and stores it in the
// client's token store. Logins are never retried.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	var res loginResult
	err := s.client.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &res,
		api.WithRetry(0))
	if err != nil {
		return nil, err
	}
	tokens := res.tokenFields
	if res.Tokens != nil {
		tokens = *res.Tokens
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("login response did not include a token pair")
	}
	if err := s.client.Tokens().Set(ctx, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	return &Session{User: res.User, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

// Logout revokes the session on the server and clears local tokens. Local
// tokens are cleared even when the server call fails; that failure is
// returned.
func (s *AuthService) Logout(ctx context.Context) error {
	var body any
	if refresh := s.client.Tokens().RefreshToken(ctx); refresh != "" {
		body = map[string]string{"refresh_token": refresh}
	}
	callErr := s.client.Post(ctx, "/auth/logout", body, nil, api.WithRetry(0))
	if err := s.client.Tokens().Clear(ctx); err != nil && callErr == nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return callErr
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/users/me", &raw); err != nil {
		return nil, err
	}
	var u User
	if err := unwrapField(raw, "user", &u); err != nil {
		return nil, fmt.Errorf("decode current user: %w", err)
	}
	return &u, nil
}
