// Package auth obtains bearer tokens for outbound calls to the responder
// directory.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCred caches a client-credentials token and refreshes it on expiry.
type ClientCred struct {
	conf clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

func NewClientCred(conf Conf) *ClientCred {
	return &ClientCred{conf: conf.toOauth2Config()}
}

// Token returns the cached access token, fetching a new one when it is
// missing or expired.
func (c *ClientCred) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.Valid() {
		return c.token.AccessToken, nil
	}
	if err := c.fetch(ctx); err != nil {
		return "", err
	}
	return c.token.AccessToken, nil
}

func (c *ClientCred) fetch(ctx context.Context) error {
	tok, err := c.conf.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	c.token = tok
	return nil
}

// Invalidate drops the cached token so the next call fetches a new one.
// Callers use it after the remote side answers 401.
func (c *ClientCred) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// SetAuthHeader sets the Authorization header on r.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid() {
		if err := c.fetch(r.Context()); err != nil {
			return err
		}
	}
	c.token.SetAuthHeader(r)
	return nil
}
