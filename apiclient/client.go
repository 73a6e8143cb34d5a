package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "go-source-portal/1.0"
	maxResponseBody  = 4 << 20

	connectivityMessage = "Unable to reach the server. Please check your connection and try again."
)

// Credentials supplies the bearer token for authenticated requests.
type Credentials interface {
	AccessToken(ctx context.Context) string
}

// CredentialsFunc adapts a function to Credentials
type CredentialsFunc func(ctx context.Context) string

func (f CredentialsFunc) AccessToken(ctx context.Context) string {
	return f(ctx)
}

// Revocable credentials are cleared once the API rejects them with a 401, so
// a dead token is never sent again.
type Revocable interface {
	Clear(ctx context.Context) error
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Public requests never carry the bearer token (login, register, verify, reset)
	Public bool

	// AllowEmpty accepts a 2xx with no body; otherwise an empty body is a contract violation
	AllowEmpty bool
}

// Doer is implemented by Client; services depend on it so tests can swap the transport.
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials Credentials
	userAgent   string
}

var _ Doer = (*Client)(nil)

// Option defines a function type to modify the Client instance.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithCredentials attaches the token source used for non-public requests
func WithCredentials(creds Credentials) Option {
	return func(c *Client) { c.credentials = creds }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent names the portal in the User-Agent header; blank keeps the default
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession returns a copy of the client bound to different credentials,
// sharing the underlying http.Client.
func (c *Client) WithSession(creds Credentials) *Client {
	clone := *c
	clone.credentials = creds
	return &clone
}

// Do performs req and decodes a successful JSON body into out (when out is
// non-nil). Failures are always *Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	requestID := uuid.NewString()

	httpReq, err := c.newRequest(ctx, req, requestID)
	if err != nil {
		return &Error{Kind: KindInvalidResponse, Message: "could not build request", RequestID: requestID, Err: err}
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Str("request_id", requestID).Msg("API request failed without response")
		return &Error{Kind: KindConnectivity, Message: connectivityMessage, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Str("request_id", requestID).
		Msg("API request")
	if err != nil {
		return &Error{Kind: KindConnectivity, StatusCode: resp.StatusCode, Message: connectivityMessage, RequestID: requestID, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && !req.Public {
			c.revokeCredentials(ctx, requestID)
		}
		return parseStatusError(resp.StatusCode, body, requestID)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		if req.AllowEmpty {
			return nil
		}
		return &Error{Kind: KindInvalidResponse, StatusCode: resp.StatusCode, Message: "The server returned an empty response.", RequestID: requestID}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindInvalidResponse, StatusCode: resp.StatusCode, Message: "The server returned an unreadable response.", RequestID: requestID, Err: err}
	}
	return nil
}

func (c *Client) revokeCredentials(ctx context.Context, requestID string) {
	revocable, ok := c.credentials.(Revocable)
	if !ok {
		return
	}
	log.Info().Str("request_id", requestID).Msg("API rejected the bearer token, clearing session")
	if err := revocable.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear rejected session")
	}
}

func (c *Client) newRequest(ctx context.Context, req Request, requestID string) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if !req.Public && c.credentials != nil {
		if token := c.credentials.AccessToken(ctx); token != "" {
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
		}
	}
	return httpReq, nil
}
