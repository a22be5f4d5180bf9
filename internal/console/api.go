package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Login opens a session with the master key. The session cookie lands in
// the client's jar.
func (c *Client) Login(ctx context.Context, masterKey string) error {
	_, err := c.Call(ctx, http.MethodPost, "/api/auth/login", map[string]string{"master_key": masterKey})
	return err
}

// Logout drops the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodPost, "/api/auth/logout", nil)
	return err
}

// Providers lists the configured upstream providers.
func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	var rows []Provider
	if err := c.getJSON(ctx, "/api/admin/providers", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Keys lists the gateway access keys, the hidden master tracker included.
func (c *Client) Keys(ctx context.Context) ([]AccessKey, error) {
	var rows []AccessKey
	if err := c.getJSON(ctx, "/api/admin/keys", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Groups lists the routing groups with their members.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var rows []Group
	if err := c.getJSON(ctx, "/api/admin/groups", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Models fetches the discovered model catalog.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var payload struct {
		Data []Model `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/admin/models", &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// Stats fetches the dashboard aggregate.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.getJSON(ctx, "/api/admin/stats", &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	raw, err := c.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if errDecode := json.Unmarshal(raw, out); errDecode != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrRequestFailed, path, errDecode)
	}
	return nil
}
