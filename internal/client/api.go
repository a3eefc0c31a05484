package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"soc-portal/internal/session"
)

// maxResponseBytes bounds a decoded response body.
const maxResponseBytes = 4 << 20

// Gate failure messages the client reacts to.
const (
	MessageSessionExpired = "Session expired"
	MessageAuthRequired   = "Authentication required"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsUnauthenticated reports whether err is a 401 from the server.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsSessionExpired reports whether err is the gate's idle-timeout rejection.
func IsSessionExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && apiErr.Message == MessageSessionExpired
}

// Policy is the idle-timeout policy the server publishes at login and on every check.
type Policy struct {
	Timeout      time.Duration
	WarningAfter time.Duration
}

type policyView struct {
	TimeoutSeconds int64 `json:"timeoutSeconds"`
	WarningSeconds int64 `json:"warningSeconds"`
}

func (v policyView) policy() Policy {
	return Policy{Timeout: time.Duration(v.TimeoutSeconds) * time.Second, WarningAfter: time.Duration(v.WarningSeconds) * time.Second}
}

// CheckResult is the identity confirmed by GET /api/auth/check.
type CheckResult struct {
	Role        string
	UserType    string
	SocPortalID string
	Policy      Policy
}

// LoginResult is the identity issued by POST /api/auth/login.
type LoginResult struct {
	SocPortalID string
	Email       string
	Name        string
	Role        string
	UserType    string
	EID         string
	Policy      Policy
}

// Notification is one portal notification.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"isRead"`
	Broadcast bool      `json:"broadcast"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationList is the caller's inbox.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	Unread        int            `json:"unread"`
}

// Activity is one activity log row.
type Activity struct {
	ID          string    `json:"id"`
	SocPortalID string    `json:"socPortalId"`
	Email       string    `json:"email"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	IP          string    `json:"ipAddress"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ActivityPage is one page of the activity log.
type ActivityPage struct {
	Logs   []Activity `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// NewUser is the body of an admin user creation.
type NewUser struct {
	SocPortalID string `json:"socPortalId"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role"`
	Password    string `json:"password"`
}

// User is a user account as returned by the admin API.
type User struct {
	SocPortalID string    `json:"socPortalId"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Phone       string    `json:"phone"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is an HTTP client for the portal API. Session cookies are read from and written back to Cookies.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Cookies    CookieStore
	Logger     *zap.Logger
	now        func() time.Time
}

// New returns a Client for baseURL. A nil store keeps cookies in memory.
func New(baseURL string, store CookieStore, logger *zap.Logger) *Client {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Cookies:    store,
		Logger:     logger,
		now:        time.Now,
	}
}

// do sends the request with the stored cookies, absorbs Set-Cookie and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for name, value := range c.Cookies.All() {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	c.Logger.Debug("http request", zap.String("method", method), zap.String("path", path))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.absorb(resp.Cookies()); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.Logger.Debug("http response", zap.String("path", path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(data, &env)
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	return data, nil
}

// absorb applies Set-Cookie headers: an empty or expired cookie deletes the stored one.
func (c *Client) absorb(cookies []*http.Cookie) error {
	now := c.now()
	for _, ck := range cookies {
		expired := ck.MaxAge < 0 || ck.Value == "" || (!ck.Expires.IsZero() && ck.Expires.Before(now))
		var err error
		if expired {
			err = c.Cookies.Remove(ck.Name)
		} else {
			err = c.Cookies.Set(ck.Name, ck.Value)
		}
		if err != nil {
			return fmt.Errorf("store cookie %s: %w", ck.Name, err)
		}
	}
	return nil
}

func decodeData(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

// Login authenticates and stores the issued session cookies.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	var data struct {
		SocPortalID string     `json:"socPortalId"`
		Email       string     `json:"email"`
		Name        string     `json:"name"`
		Role        string     `json:"role"`
		UserType    string     `json:"userType"`
		EID         string     `json:"eid"`
		Session     policyView `json:"session"`
	}
	if err := decodeData(body, &data); err != nil {
		return nil, err
	}
	return &LoginResult{
		SocPortalID: data.SocPortalID,
		Email:       data.Email,
		Name:        data.Name,
		Role:        data.Role,
		UserType:    data.UserType,
		EID:         data.EID,
		Policy:      data.Session.policy(),
	}, nil
}

// Logout ends the session on the server. Local session cookies are removed even when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	if rmErr := c.Cookies.Remove(session.Names...); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Check asks the server gate to confirm the stored session.
func (c *Client) Check(ctx context.Context) (*CheckResult, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/auth/check", nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Authenticated bool       `json:"authenticated"`
		Role          string     `json:"role"`
		UserType      string     `json:"userType"`
		SocPortalID   string     `json:"socPortalId"`
		Session       policyView `json:"session"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parse check response: %w", err)
	}
	if !data.Authenticated {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: MessageAuthRequired}
	}
	return &CheckResult{Role: data.Role, UserType: data.UserType, SocPortalID: data.SocPortalID, Policy: data.Session.policy()}, nil
}

// Notifications returns the caller's notifications and unread count.
func (c *Client) Notifications(ctx context.Context) (*NotificationList, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/notifications", nil)
	if err != nil {
		return nil, err
	}
	var out NotificationList
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkNotificationRead marks one notification read and returns the new unread count.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (int, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Unread int `json:"unread"`
	}
	if err := decodeData(body, &out); err != nil {
		return 0, err
	}
	return out.Unread, nil
}

// ActivityLogs returns one page of the activity log (admins only).
func (c *Client) ActivityLogs(ctx context.Context, limit, offset int) (*ActivityPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	body, err := c.do(ctx, http.MethodGet, "/api/admin/activity-logs?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var out ActivityPage
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser adds a user account (admins only).
func (c *Client) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/admin/users", u)
	if err != nil {
		return nil, err
	}
	var out User
	if err := decodeData(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
