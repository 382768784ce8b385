// Package kratos talks to the Ory Kratos public API for password sign-in,
// session lookup and sign-out.
package kratos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	publicBaseURL string
	httpClient    *http.Client
}

type Identity struct {
	ID     string         `json:"id"`
	Traits map[string]any `json:"traits"`
}

// Session is a Kratos API session: the bearer token plus its identity.
type Session struct {
	Token    string
	Identity Identity
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("kratos: http %d: %s", e.StatusCode, msg)
}

// Rejected reports whether Kratos refused the credentials or session.
func (e *HTTPError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

func New(publicBaseURL string) (*Client, error) {
	publicBaseURL = strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if publicBaseURL == "" {
		return nil, errors.New("kratos: missing public base url")
	}
	u, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, errors.New("kratos: invalid public base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("kratos: invalid public base url scheme")
	}
	if u.Host == "" {
		return nil, errors.New("kratos: invalid public base url host")
	}
	return &Client{
		publicBaseURL: publicBaseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// LoginPassword runs an API login flow and resolves the session identity.
func (c *Client) LoginPassword(ctx context.Context, identifier string, password string) (Session, error) {
	var flow struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/self-service/login/api", nil, "", &flow); err != nil {
		return Session{}, err
	}
	if flow.ID == "" {
		return Session{}, errors.New("kratos: missing login flow id")
	}

	var login struct {
		SessionToken string `json:"session_token"`
	}
	body := map[string]any{"method": "password", "identifier": identifier, "password": password}
	if err := c.do(ctx, http.MethodPost, "/self-service/login?flow="+url.QueryEscape(flow.ID), body, "", &login); err != nil {
		return Session{}, err
	}
	if login.SessionToken == "" {
		return Session{}, errors.New("kratos: missing session token")
	}

	ident, err := c.Whoami(ctx, login.SessionToken)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: login.SessionToken, Identity: ident}, nil
}

func (c *Client) Whoami(ctx context.Context, sessionToken string) (Identity, error) {
	var out struct {
		Identity Identity `json:"identity"`
	}
	if err := c.do(ctx, http.MethodGet, "/sessions/whoami", nil, sessionToken, &out); err != nil {
		return Identity{}, err
	}
	return out.Identity, nil
}

// Logout revokes an API session token.
func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/self-service/logout/api", map[string]any{"session_token": sessionToken}, "", nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body any, sessionToken string, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.publicBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.Header.Set("X-Session-Token", sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return readHTTPError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readHTTPError(resp *http.Response) error {
	const maxBody = 4096
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return &HTTPError{StatusCode: resp.StatusCode, Message: string(b)}
}
