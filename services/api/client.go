package apisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/semed/merenda/core"
	"github.com/semed/merenda/core/auth"
)

const refreshPath = "/api/auth/token/refresh/"

type (
	// Request is one logical API call.
	Request struct {
		Method   string
		Path     string
		Query    url.Values
		Body     interface{}
		SkipAuth bool
	}

	Options struct {
		HTTPClient *http.Client
		Timeout    time.Duration
		ExpirySkew time.Duration
		Now        func() time.Time
		Validator  *core.Validator
		Logger     core.Logger
	}

	// Client performs authenticated calls against the SEMED REST API.
	// A 401 is retried once after a refresh; every caller shares the session's refresh gate.
	Client struct {
		baseURL   string
		http      *http.Client
		session   *auth.Manager
		validator *core.Validator
		logger    core.Logger
	}
)

func NewClient(baseURL string, store *auth.Store, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      opts.HTTPClient,
		validator: opts.Validator,
		logger:    opts.Logger,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.validator == nil {
		c.validator = core.NewValidator()
	}
	if c.logger == nil {
		c.logger = core.NopLogger
	}
	c.session = auth.NewManager(store, c, &auth.Options{
		Skew:   opts.ExpirySkew,
		Now:    opts.Now,
		Logger: c.logger,
	})
	return c
}

// NewClientFromConfig builds a Client from the loaded configuration.
func NewClientFromConfig(conf *core.Config, store *auth.Store, logger core.Logger) *Client {
	return NewClient(conf.API.BaseURL, store, &Options{
		Timeout:    conf.API.Timeout,
		ExpirySkew: conf.Session.ExpirySkew,
		Logger:     logger,
	})
}

// Session returns the auth session the client draws credentials from.
func (c *Client) Session() *auth.Manager {
	return c.session
}

// Do performs req and decodes the JSON response into out (which may be nil).
// Empty responses leave out untouched.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}
	return c.do(ctx, req, body, out, false)
}

func (c *Client) do(ctx context.Context, req Request, body []byte, out interface{}, retry bool) error {
	var token string
	if !req.SkipAuth {
		var ok bool
		if token, ok = c.session.EnsureFreshAccess(ctx); !ok {
			c.session.ReportSessionExpired()
			return ErrSessionExpired
		}
	}

	resp, err := c.send(ctx, req, body, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode == http.StatusUnauthorized && !req.SkipAuth {
			if !retry {
				if _, ok := c.session.Refresh(ctx, token); ok {
					return c.do(ctx, req, body, out, true)
				}
			}
			c.session.ReportSessionExpired()
			return ErrSessionExpired
		}
		return newRequestError(resp.StatusCode, respBody)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if len(bytes.TrimSpace(respBody)) == 0 || out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(respBody, out), "decoding response")
}

func (c *Client) send(ctx context.Context, req Request, body []byte, token string) (*http.Response, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, req.Path)
	}
	return resp, nil
}

// RefreshAccess implements auth.Refresher against the token refresh endpoint.
func (c *Client) RefreshAccess(ctx context.Context, refresh string) (string, error) {
	var data struct {
		Access string `json:"access"`
	}
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     refreshPath,
		Body:     map[string]string{"refresh": refresh},
		SkipAuth: true,
	}, &data)
	if err != nil {
		return "", err
	}
	if data.Access == "" {
		return "", errors.New("missing access token")
	}
	return data.Access, nil
}

// Login exchanges email/password for a credential pair and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/api/auth/token/",
		Body:     map[string]string{"email": core.CleanString(email, true), "password": password},
		SkipAuth: true,
	}, &creds)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "logging in")
	}
	if creds.Access == "" || creds.Refresh == "" {
		return Credentials{}, errors.New("login response without tokens")
	}
	if err = c.session.Store().Set(creds.Access, creds.Refresh); err != nil {
		return Credentials{}, err
	}
	c.logger.Info("logged in", map[string]interface{}{"email": email})
	return creds, nil
}

// Logout forgets the stored credentials.
func (c *Client) Logout() error {
	return c.session.Logout()
}
