// Package rest is a Device Store that talks to a remote devices HTTP API.
package rest

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

	"energy-monitor/internal/auth"
	devices "energy-monitor/internal/devices/domain"
)

// DefaultTimeout bounds every request when no client is supplied.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 4 << 10

// OwnerHeader carries the owner id next to the forwarded bearer token.
const OwnerHeader = "X-Owner-ID"

var errNotFound = errors.New("device api: not found")

// HTTPError is a non-2xx response from the remote API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("device api: http %d", e.Status)
	}
	return fmt.Sprintf("device api: http %d: %s", e.Status, e.Body)
}

// Client implements devices.Repository over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client = &http.Client{Timeout: timeout}
		}
	}
}

// WithToken sets a fallback bearer token for calls whose context carries none.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient constructs a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("device api: empty base url")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createRequest struct {
	Name        string  `json:"name"`
	PowerWatts  float64 `json:"power_watts"`
	HoursPerDay float64 `json:"hours_per_day"`
	Quantity    int     `json:"quantity"`
}

// List fetches every device of the owner, then filters and orders locally.
func (c *Client) List(ctx context.Context, ownerID, query string) ([]devices.Device, error) {
	var list []devices.Device
	if err := c.doJSON(ctx, http.MethodGet, "/devices/", ownerID, nil, &list); err != nil {
		return nil, err
	}
	result := make([]devices.Device, 0, len(list))
	for _, d := range list {
		if d.OwnerID != "" && d.OwnerID != ownerID {
			continue
		}
		if d.MatchesQuery(query) {
			result = append(result, d)
		}
	}
	devices.SortNewestFirst(result)
	return result, nil
}

// Get fetches a device; 404 means absent.
func (c *Client) Get(ctx context.Context, ownerID, id string) (*devices.Device, error) {
	var d devices.Device
	if err := c.doJSON(ctx, http.MethodGet, devicePath(id), ownerID, nil, &d); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if d.OwnerID != "" && d.OwnerID != ownerID {
		return nil, nil
	}
	return &d, nil
}

// Create posts a new device and returns the stored record.
func (c *Client) Create(ctx context.Context, device devices.Device) (*devices.Device, error) {
	body := createRequest{
		Name:        device.Name,
		PowerWatts:  device.PowerWatts,
		HoursPerDay: device.HoursPerDay,
		Quantity:    device.Quantity,
	}
	var created devices.Device
	if err := c.doJSON(ctx, http.MethodPost, "/devices/", device.OwnerID, body, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, errors.New("device api: create returned no id")
	}
	return &created, nil
}

// Update sends the patch; 404 means nothing matched.
func (c *Client) Update(ctx context.Context, ownerID, id string, patch devices.DevicePatch) (*devices.Device, error) {
	var updated devices.Device
	if err := c.doJSON(ctx, http.MethodPut, devicePath(id), ownerID, patch, &updated); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

// Delete removes a device. The remote API does not say whether a row went away,
// so any 2xx counts as removed and 404 as not.
func (c *Client) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	if err := c.doJSON(ctx, http.MethodDelete, devicePath(id), ownerID, nil, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func devicePath(id string) string {
	return "/devices/" + url.PathEscape(id)
}

func (c *Client) doJSON(ctx context.Context, method, path, ownerID string, body any, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := auth.TokenFromContext(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if ownerID != "" {
		req.Header.Set(OwnerHeader, ownerID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
