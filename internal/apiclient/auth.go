package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// TeacherLogin signs a teacher in and persists the token and user in the session.
func (c *Client) TeacherLogin(ctx context.Context, in TeacherLoginRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/teacher/login", in)
}

// TeacherRegister creates a teacher account and persists the token and user in the session.
func (c *Client) TeacherRegister(ctx context.Context, in TeacherRegisterRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/teacher/register", in)
}

// StudentLogin signs a student in and persists the token and user in the session.
func (c *Client) StudentLogin(ctx context.Context, in StudentLoginRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/student/login", in)
}

func (c *Client) authenticate(ctx context.Context, endpoint string, body any) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.Post(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return &resp, nil
	}

	var user any
	if len(resp.User) > 0 {
		user = resp.User
	}
	if err := c.session.SetAuth(ctx, resp.AccessToken, user); err != nil {
		return &resp, fmt.Errorf("signed in but could not persist the session: %w", err)
	}
	c.log.Info().Str("endpoint", endpoint).Msg("Signed in")
	return &resp, nil
}

// Logout forgets the token and user. No network call is made.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Clear(ctx)
}

// IsAuthenticated returns whether a token is held.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// CurrentUser returns the cached user, or nil when none is stored.
func (c *Client) CurrentUser() (*User, error) {
	raw := c.session.User()
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	return &u, nil
}
