package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultLoginPath is the host's password login endpoint.
const DefaultLoginPath = "/admin/login"

type LoginResponse struct {
	JWT string `json:"jwt"`
}

// LoginClient performs the host password login.
type LoginClient interface {
	Login(ctx context.Context, email, password string) (LoginResponse, error)
}

// HTTPLoginClient calls the login endpoint over HTTP. Cookies set by the
// server land in the http.Client's jar.
type HTTPLoginClient struct {
	baseURL string
	path    string
	client  *http.Client
}

func NewHTTPLoginClient(baseURL string, client *http.Client) *HTTPLoginClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoginClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    DefaultLoginPath,
		client:  client,
	}
}

func (c *HTTPLoginClient) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return LoginResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("bridge: login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return LoginResponse{}, fmt.Errorf("bridge: login failed: %d", resp.StatusCode)
	}

	var out LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return LoginResponse{}, fmt.Errorf("bridge: login response: %w", err)
	}
	return out, nil
}
