package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/gotoot/internal/domain"
)

// Timeline selects one of the three status feeds an instance serves.
type Timeline string

const (
	TimelineHome      Timeline = "home"
	TimelineLocal     Timeline = "local"
	TimelineFederated Timeline = "federated"
)

const (
	// RedirectURI is the out-of-band redirect used for the authorization
	// code grant; the user copies the code from the browser manually.
	RedirectURI = "urn:ietf:wg:oauth:2.0:oob"
	// Scopes requested at app registration and token exchange.
	Scopes = "read write follow push"
	// DefaultLimit is the page size used when the caller passes zero.
	DefaultLimit = 20
)

// Client is the single point of contact with a remote instance. It holds the
// base URL and bearer token for the authenticated account; both are empty
// until login and swapped atomically by SetCredentials. The token is captured
// when a request is built, so a logout does not affect requests already in
// flight. It never retries; retry policy belongs to the caller.
type Client struct {
	http *http.Client

	mu          sync.Mutex
	baseURL     string
	accessToken string
}

func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{http: hc}
}

// BaseURL normalizes a user-supplied hostname into an instance base URL.
// A scheme is accepted and kept as-is so tests can point at plain-HTTP
// servers; anything else gets https.
func BaseURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}

// SetCredentials wires the client to an instance. Token may be empty during
// the login flow, before the code exchange has produced one.
func (c *Client) SetCredentials(baseURL, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
	c.accessToken = token
}

// Clear drops the base URL and token, returning the client to its logged-out
// state. In-flight requests keep the token they were built with.
func (c *Client) Clear() {
	c.SetCredentials("", "")
}

func (c *Client) credentials() (baseURL, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURL, c.accessToken
}

// newRequest builds a request against an absolute URL, attaching the JSON
// body and the bearer token as it is at this moment.
func (c *Client) newRequest(ctx context.Context, method, rawURL string, query url.Values, body any) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	_, token := c.credentials()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.String()).Msg("request failed")
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		content, _ := io.ReadAll(res.Body)
		log.Error().Int("code", res.StatusCode).Bytes("response", content).Str("url", req.URL.String()).Msg("error status")
		return fmt.Errorf("%w: %d %s", ErrDecode, res.StatusCode, res.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		log.Error().Err(err).Str("url", req.URL.String()).Msg("response body unmarshaling error")
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// api resolves a path against the configured instance.
func (c *Client) api(path string) (string, error) {
	base, _ := c.credentials()
	if base == "" {
		return "", fmt.Errorf("%w: no instance configured", ErrInvalidRequest)
	}
	return base + path, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	rawURL, err := c.api(path)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	rawURL, err := c.api(path)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, nil, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// RegisterApp creates an application on the given instance. Registration
// happens before login, so the target is addressed explicitly instead of
// through the configured base URL.
func (c *Client) RegisterApp(ctx context.Context, host, clientName string) (app domain.Application, err error) {
	req, err := c.newRequest(ctx, http.MethodPost, BaseURL(host)+"/api/v1/apps", nil, map[string]string{
		"client_name":   clientName,
		"redirect_uris": RedirectURI,
		"scopes":        Scopes,
	})
	if err != nil {
		return
	}
	err = c.do(req, &app)
	return
}

// AuthorizeURL is the browser URL where the user grants access. The literal
// query layout is kept stable; instances echo the redirect URI back verbatim.
func AuthorizeURL(host, clientID string) string {
	return fmt.Sprintf("%s/oauth/authorize?client_id=%s&scope=read+write+follow+push&redirect_uri=%s&response_type=code",
		BaseURL(host), clientID, RedirectURI)
}

// ExchangeToken trades an authorization code for an access token.
func (c *Client) ExchangeToken(ctx context.Context, host, clientID, clientSecret, code string) (token domain.Token, err error) {
	req, err := c.newRequest(ctx, http.MethodPost, BaseURL(host)+"/oauth/token", nil, map[string]string{
		"client_id":     clientID,
		"client_secret": clientSecret,
		"redirect_uri":  RedirectURI,
		"grant_type":    "authorization_code",
		"code":          code,
		"scope":         Scopes,
	})
	if err != nil {
		return
	}
	err = c.do(req, &token)
	return
}

func (c *Client) VerifyCredentials(ctx context.Context) (account domain.Account, err error) {
	err = c.get(ctx, "/api/v1/accounts/verify_credentials", nil, &account)
	return
}

// GetTimeline fetches one page of a feed, newest first. A non-empty maxID
// requests the page strictly older than that status.
func (c *Client) GetTimeline(ctx context.Context, t Timeline, limit int, maxID string) ([]domain.Status, error) {
	var path string
	query := url.Values{}
	switch t {
	case TimelineHome:
		path = "/api/v1/timelines/home"
	case TimelineLocal:
		path = "/api/v1/timelines/public"
		query.Set("local", "true")
	case TimelineFederated:
		path = "/api/v1/timelines/public"
	default:
		return nil, fmt.Errorf("%w: unknown timeline %q", ErrInvalidRequest, t)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	query.Set("limit", strconv.Itoa(limit))
	if maxID != "" {
		query.Set("max_id", maxID)
	}

	var statuses []domain.Status
	err := c.get(ctx, path, query, &statuses)
	return statuses, err
}

// PostStatus publishes a new status. inReplyToID may be empty for a top-level
// post; an empty visibility defaults to public.
func (c *Client) PostStatus(ctx context.Context, content, visibility, inReplyToID string) (status domain.Status, err error) {
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	body := map[string]string{
		"status":     content,
		"visibility": visibility,
	}
	if inReplyToID != "" {
		body["in_reply_to_id"] = inReplyToID
	}
	err = c.post(ctx, "/api/v1/statuses", body, &status)
	return
}

func (c *Client) statusAction(ctx context.Context, id, action string) (status domain.Status, err error) {
	if id == "" {
		err = fmt.Errorf("%w: empty status id", ErrInvalidRequest)
		return
	}
	err = c.post(ctx, "/api/v1/statuses/"+id+"/"+action, nil, &status)
	return
}

func (c *Client) Favourite(ctx context.Context, id string) (domain.Status, error) {
	return c.statusAction(ctx, id, "favourite")
}

func (c *Client) Unfavourite(ctx context.Context, id string) (domain.Status, error) {
	return c.statusAction(ctx, id, "unfavourite")
}

func (c *Client) Reblog(ctx context.Context, id string) (domain.Status, error) {
	return c.statusAction(ctx, id, "reblog")
}

func (c *Client) Unreblog(ctx context.Context, id string) (domain.Status, error) {
	return c.statusAction(ctx, id, "unreblog")
}

// Search queries the v2 search endpoint. searchType may be empty, or one of
// accounts, hashtags or statuses to restrict the result sets.
func (c *Client) Search(ctx context.Context, q, searchType string) (results domain.SearchResults, err error) {
	query := url.Values{}
	query.Set("q", q)
	if searchType != "" {
		query.Set("type", searchType)
	}
	err = c.get(ctx, "/api/v2/search", query, &results)
	return
}

func (c *Client) GetNotifications(ctx context.Context, limit int, maxID string) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if maxID != "" {
		query.Set("max_id", maxID)
	}

	var notifications []domain.Notification
	err := c.get(ctx, "/api/v1/notifications", query, &notifications)
	return notifications, err
}

func (c *Client) GetAccount(ctx context.Context, id string) (account domain.Account, err error) {
	if id == "" {
		err = fmt.Errorf("%w: empty account id", ErrInvalidRequest)
		return
	}
	err = c.get(ctx, "/api/v1/accounts/"+id, nil, &account)
	return
}

func (c *Client) GetAccountStatuses(ctx context.Context, id string, limit int, maxID string) ([]domain.Status, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty account id", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if maxID != "" {
		query.Set("max_id", maxID)
	}

	var statuses []domain.Status
	err := c.get(ctx, "/api/v1/accounts/"+id+"/statuses", query, &statuses)
	return statuses, err
}

func (c *Client) GetInstance(ctx context.Context) (instance domain.Instance, err error) {
	err = c.get(ctx, "/api/v1/instance", nil, &instance)
	return
}
