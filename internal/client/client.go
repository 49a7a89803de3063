// Package client talks to a sprintboard server over its JSON API.
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
	"strings"
	"time"

	"github.com/kidandcat/sprintboard/internal/admin"
	"github.com/kidandcat/sprintboard/internal/api"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// APIError is a non-2xx reply. It matches the store's sentinel errors
// with errors.Is so callers can treat remote and local failures alike.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case docstore.ErrPermissionDenied:
		return e.Status == http.StatusForbidden || e.Status == http.StatusUnauthorized
	case docstore.ErrNotFound:
		return e.Status == http.StatusNotFound
	case docstore.ErrAlreadyExists:
		return e.Status == http.StatusConflict
	case domain.ErrInvalidChange:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// AuditWarning reports that the server saved the record but failed to
// append its audit entry.
type AuditWarning struct {
	Message string
}

func (e *AuditWarning) Error() string         { return "audit: " + e.Message }
func (e *AuditWarning) RecordCommitted() bool { return true }

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, in, out any) (http.Header, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return resp.Header, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}

// SignIn opens a session and uses it for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.UserProfile, error) {
	var out struct {
		Token string             `json:"token"`
		User  domain.UserProfile `json:"user"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]string{"email": email, "password": password}, &out); err != nil {
		return domain.UserProfile{}, err
	}
	c.token = out.Token
	return out.User, nil
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	var tasks []domain.Task
	_, err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/tasks", nil, &tasks)
	return tasks, err
}

func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	_, err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &t)
	return t, err
}

// UpdateTask applies typed changes remotely. When only the audit entry
// failed it returns the saved task together with an *AuditWarning.
func (c *Client) UpdateTask(ctx context.Context, id string, changes ...domain.TaskChange) (domain.Task, error) {
	cs, err := api.EncodeChanges(changes...)
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	h, err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), cs, &t)
	if err != nil {
		return domain.Task{}, err
	}
	if msg := h.Get(api.AuditErrorHeader); msg != "" {
		return t, &AuditWarning{Message: msg}
	}
	return t, nil
}

// UpdateUser calls the updateUser function. Failures come back as
// *admin.Error.
func (c *Client) UpdateUser(ctx context.Context, req admin.Request) (admin.Response, error) {
	raw, err := json.Marshal(map[string]any{"data": req})
	if err != nil {
		return admin.Response{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/functions/updateUser", bytes.NewReader(raw))
	if err != nil {
		return admin.Response{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(hreq)
	if err != nil {
		return admin.Response{}, err
	}
	defer resp.Body.Close()

	var out struct {
		Result *admin.Response `json:"result"`
		Error  *admin.Error    `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return admin.Response{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return admin.Response{}, out.Error
	}
	if out.Result == nil {
		return admin.Response{}, errors.New("empty result")
	}
	return *out.Result, nil
}
