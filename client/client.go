// Package client talks to the stemboard HTTP API. A Client satisfies the
// backends of workspace.Session, media.Registry and canvas.Synchronizer, so the
// client core can run against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"stemboard/core/apperr"
	"stemboard/core/canvas"
	"stemboard/core/media"
	"stemboard/core/workspace"
	"stemboard/model"
)

var (
	_ workspace.Backend = (*Client)(nil)
	_ media.Backend     = (*Client)(nil)
	_ canvas.Store      = (*Client)(nil)
)

// Client is an API client bound to one session token.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// uploads can be large, so there is no overall timeout; use ctx
		httpClient: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register creates an account and keeps its session token.
func (c *Client) Register(ctx context.Context, email, password string) (*model.User, error) {
	return c.authenticate(ctx, "register", "/api/auth/register", email, password)
}

// Login signs in and keeps the session token.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	return c.authenticate(ctx, "login", "/api/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, op, path, email, password string) (*model.User, error) {
	var out authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, op, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out.User, nil
}

// ListWorkspaces returns the caller's projects.
func (c *Client) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	var out []model.Workspace
	if err := c.doJSON(ctx, "list projects", http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWorkspace creates a project owned by the caller.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	var out model.Workspace
	if err := c.doJSON(ctx, "create project", http.MethodPost, "/api/projects", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCollaborator grants the account registered under email access.
func (c *Client) AddCollaborator(ctx context.Context, workspaceID, email string) error {
	path := "/api/projects/" + url.PathEscape(workspaceID) + "/add-collaborator"
	return c.doJSON(ctx, "add collaborator", http.MethodPost, path, map[string]string{"email": email}, nil)
}

// SaveSnapshot overwrites the project's board snapshot.
func (c *Client) SaveSnapshot(ctx context.Context, workspaceID string, snapshot []byte) error {
	body := struct {
		ProjectID string          `json:"projectId"`
		Snapshot  json.RawMessage `json:"snapshot"`
	}{workspaceID, snapshot}
	return c.doJSON(ctx, "save snapshot", http.MethodPatch, "/api/snapshot/update", body, nil)
}

// LoadSnapshot returns the stored snapshot, or nil when none was saved.
func (c *Client) LoadSnapshot(ctx context.Context, workspaceID string) ([]byte, error) {
	var out struct {
		Snapshot json.RawMessage `json:"snapshot"`
	}
	path := "/api/snapshot?projectId=" + url.QueryEscape(workspaceID)
	if err := c.doJSON(ctx, "load snapshot", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Snapshot) == 0 || string(out.Snapshot) == "null" {
		return nil, nil
	}
	return out.Snapshot, nil
}

// ListAssets returns a project's demos with their stems.
func (c *Client) ListAssets(ctx context.Context, workspaceID string) ([]model.Asset, error) {
	var out []model.Asset
	path := "/api/demos?projectId=" + url.QueryEscape(workspaceID)
	if err := c.doJSON(ctx, "list demos", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadAsset streams f to the project as a new demo.
func (c *Client) UploadAsset(ctx context.Context, workspaceID string, f media.File) (*model.Asset, error) {
	var out model.Asset
	fields := map[string]string{"projectId": workspaceID}
	if err := c.upload(ctx, "upload demo", "/api/demos", fields, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadStem streams f as a stem of the demo parentID.
func (c *Client) UploadStem(ctx context.Context, parentID string, f media.File) (*model.Stem, error) {
	var out model.Stem
	path := "/api/demos/" + url.PathEscape(parentID) + "/stems"
	if err := c.upload(ctx, "upload stem", path, nil, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download opens a stored file through the download proxy. The caller closes
// the returned body.
func (c *Client) Download(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	path := "/api/download?fileUrl=" + url.QueryEscape(fileURL)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Store("download", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromResponse("download", resp)
	}
	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(op, req, out)
}

// upload writes the multipart form through a pipe so large files are never
// held in memory.
func (c *Client) upload(ctx context.Context, op, path string, fields map[string]string, f media.File, out interface{}) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, fields, f))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, path, pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(op, req, out)
}

func writeForm(mw *multipart.Writer, fields map[string]string, f media.File) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(f.Name)))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if f.Body != nil {
		if _, err := io.Copy(part, f.Body); err != nil {
			return err
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (c *Client) send(op string, req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Store(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Store(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// errorFromResponse turns a non-2xx response back into an apperr kind.
func errorFromResponse(op string, resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return apperr.FromStatus(resp.StatusCode, op, body.Message)
}
