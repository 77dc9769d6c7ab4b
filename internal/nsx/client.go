// Package nsx implements the session with the manager's REST interface: resource
// path expansion, basic authentication, XML bodies and version tag headers.
package nsx

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"
	"github.com/pkg/errors"
)

// DefaultScope is the manager's global scope id used for firewall and service paths.
const DefaultScope = "globalroot-0"

// Response is a decoded manager answer.
type Response struct {
	Status int

	// ETag is the version tag of the returned record, if any.
	ETag string

	// Location is the URI of a created object.
	Location string

	// ObjectID is the last segment of Location.
	ObjectID string

	// Body is the generic XML tree. Attributes are keyed with a leading "-",
	// element text next to attributes is keyed "#text".
	Body mxj.Map

	// Raw is the undecoded response body.
	Raw []byte
}

// Client talks to one manager.
type Client struct {
	baseURL    string
	username   string
	password   string
	scopeID    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithCredentials sets the basic authentication credentials.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithInsecureSkipVerify disables certificate verification. Managers usually
// ship with self-signed certificates.
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: skip}, //nolint:gosec
		}
	}
}

// WithScope overrides the scope id substituted into {contextId} and {scopeId}.
func WithScope(scopeID string) ClientOption {
	return func(c *Client) {
		if scopeID != "" {
			c.scopeID = scopeID
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the manager at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		scopeID:    DefaultScope,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Read performs GET on a resource.
func (c *Client) Read(ctx context.Context, res Resource, params Params) (*Response, error) {
	return c.do(ctx, http.MethodGet, res, params, nil, "")
}

// Create performs POST on a resource. A non-empty tag is sent as If-Match.
func (c *Client) Create(ctx context.Context, res Resource, params Params, body []byte, tag string) (*Response, error) {
	return c.do(ctx, http.MethodPost, res, params, body, tag)
}

// Update performs PUT on a resource with If-Match set to tag.
func (c *Client) Update(ctx context.Context, res Resource, params Params, body []byte, tag string) (*Response, error) {
	return c.do(ctx, http.MethodPut, res, params, body, tag)
}

// Delete performs DELETE on a resource. A non-empty tag is sent as If-Match.
func (c *Client) Delete(ctx context.Context, res Resource, params Params, tag string) error {
	_, err := c.do(ctx, http.MethodDelete, res, params, nil, tag)
	return err
}

// withScope fills the scope placeholders the template uses and the caller left unset.
func (c *Client) withScope(res Resource, params Params) Params {
	out := make(Params, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	tmpl := resourcePaths[res]
	for _, name := range []string{"contextId", "scopeId"} {
		if out[name] == "" && strings.Contains(tmpl, "{"+name+"}") {
			out[name] = c.scopeID
		}
	}
	return out
}

func (c *Client) do(ctx context.Context, method string, res Resource, params Params, body []byte, tag string) (*Response, error) {
	p, err := res.Path(c.withScope(res, params))
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Accept", "application/xml")
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}
	if tag != "" {
		req.Header.Set("If-Match", tag)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.Debug("manager request",
		slog.String("method", method),
		slog.String("resource", string(res)),
		slog.String("path", p),
		slog.Bool("if_match", tag != ""),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, p)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	c.logger.Debug("manager response",
		slog.String("method", method),
		slog.String("path", p),
		slog.Int("status", resp.StatusCode),
		slog.String("etag", resp.Header.Get("ETag")),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   p,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}

	out := &Response{
		Status:   resp.StatusCode,
		ETag:     resp.Header.Get("ETag"),
		Location: resp.Header.Get("Location"),
	}
	if out.Location != "" {
		out.ObjectID = path.Base(out.Location)
	}

	if len(bytes.TrimSpace(respBody)) > 0 {
		m, err := mxj.NewMapXml(respBody)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode response of %s %s", method, p)
		}
		out.Body = m
		out.Raw = respBody
	}

	return out, nil
}
