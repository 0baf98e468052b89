package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/crisismatch/auth"
	"github.com/kilianp07/crisismatch/core/model"
)

// HTTPConfig points at a remote responder directory.
type HTTPConfig struct {
	BaseURL        string    `json:"base_url"`
	TimeoutSeconds float64   `json:"timeout_seconds"`
	Auth           auth.Conf `json:"auth"`
}

// HTTPStore reads profiles from a directory service exposing
// GET {base}/responders and GET {base}/responders/{id}.
type HTTPStore struct {
	base   string
	client *http.Client
	creds  *auth.ClientCred
}

// NewHTTPStore builds a store for cfg. Requests carry a client-credentials
// bearer token when cfg.Auth is enabled.
func NewHTTPStore(cfg HTTPConfig) (*HTTPStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("profile directory base_url not set")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("profile directory base_url: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &HTTPStore{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
	if cfg.Auth.Enabled() {
		s.creds = auth.NewClientCred(cfg.Auth)
	}
	return s, nil
}

func (s *HTTPStore) Get(ctx context.Context, id string) (model.ResponderProfile, error) {
	var p model.ResponderProfile
	status, err := s.getJSON(ctx, "/responders/"+url.PathEscape(id), &p)
	if status == http.StatusNotFound {
		return model.ResponderProfile{}, fmt.Errorf("profile %s: %w", id, model.ErrResponderNotFound)
	}
	if err != nil {
		return model.ResponderProfile{}, err
	}
	return p, nil
}

func (s *HTTPStore) List(ctx context.Context) ([]model.ResponderProfile, error) {
	var ps []model.ResponderProfile
	if _, err := s.getJSON(ctx, "/responders", &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// getJSON decodes the response body into v. A 401 drops the cached token
// and retries once.
func (s *HTTPStore) getJSON(ctx context.Context, path string, v any) (int, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+path, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "application/json")
		if s.creds != nil {
			if err := s.creds.SetAuthHeader(req); err != nil {
				return 0, err
			}
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("GET %s: %w", path, err)
		}
		if resp.StatusCode == http.StatusUnauthorized && s.creds != nil && attempt == 0 {
			_ = resp.Body.Close()
			s.creds.Invalidate()
			continue
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
		return resp.StatusCode, nil
	}
}
