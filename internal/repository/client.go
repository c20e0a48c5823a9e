// Package repository is the client of the InvenioRDM MARC21 records API.
package repository

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
	"time"

	"almaconnector/internal/config"
	"almaconnector/internal/constants"
	"almaconnector/internal/logger"
	apperrors "almaconnector/pkg/errors"
	"almaconnector/pkg/marc"
	"almaconnector/pkg/metrics"
	"almaconnector/pkg/retry"
)

const publicationsPath = "/api/publications"

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	policy  retry.Policy
	log     logger.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(cl *Client) {
		cl.policy = p
	}
}

func NewClient(cfg config.RepositoryConfig, log logger.Logger, opts ...ClientOption) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperrors.ErrConfiguration.WithMessage("repository url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy = retry.Policy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Multiplier:      cfg.Retry.Multiplier,
			MaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		}
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		policy:  policy,
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateDraft creates a draft carrying metadata and access.
func (c *Client) CreateDraft(ctx context.Context, metadata marc.Metadata, access Access) (*Record, error) {
	var out Record
	err := c.doJSON(ctx, http.MethodPost, publicationsPath, draftRequest{
		Metadata: metadata,
		Access:   &access,
		Files:    &filesBlock{Enabled: true},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile attaches a file to a draft in the three steps the files API
// requires: init, content, commit.
func (c *Client) UploadFile(ctx context.Context, id, filename string, content io.Reader) error {
	filesPath := c.draftPath(id) + "/files"

	if err := c.doJSON(ctx, http.MethodPost, filesPath, []fileKey{{Key: filename}}, nil); err != nil {
		return err
	}

	contentPath := filesPath + "/" + url.PathEscape(filename) + "/content"
	if _, err := c.send(ctx, http.MethodPut, contentPath, content, "application/octet-stream"); err != nil {
		return err
	}

	return c.doJSON(ctx, http.MethodPost, filesPath+"/"+url.PathEscape(filename)+"/commit", nil, nil)
}

func (c *Client) Publish(ctx context.Context, id string) (*Record, error) {
	var out Record
	if err := c.doJSON(ctx, http.MethodPost, c.draftPath(id)+"/actions/publish", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRecord(ctx context.Context, id string) (*Record, error) {
	var out Record
	if err := c.doJSON(ctx, http.MethodGet, publicationsPath+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditDraft opens (or returns the existing) draft of a published record.
func (c *Client) EditDraft(ctx context.Context, id string) (*Record, error) {
	var out Record
	if err := c.doJSON(ctx, http.MethodPost, c.draftPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDraft replaces the draft's metadata. A nil access keeps the current
// access settings.
func (c *Client) UpdateDraft(ctx context.Context, id string, metadata marc.Metadata, access *Access) (*Record, error) {
	var out Record
	if err := c.doJSON(ctx, http.MethodPut, c.draftPath(id), draftRequest{Metadata: metadata, Access: access}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a query against published records.
func (c *Client) Search(ctx context.Context, query string, page, size int) (*SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = constants.DefaultListLimit
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var out SearchResult
	if err := c.doJSON(ctx, http.MethodGet, publicationsPath+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) findUser(ctx context.Context, email string) (*user, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("email:%q", email))

	var out userSearchResult
	if err := c.doJSON(ctx, http.MethodGet, "/api/users?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Hits.Hits {
		if strings.EqualFold(out.Hits.Hits[i].Email, email) {
			return &out.Hits.Hits[i], nil
		}
	}
	return nil, apperrors.ErrNotFound.WithMessagef("user not found: %s", email)
}

func (c *Client) draftPath(id string) string {
	return publicationsPath + "/" + url.PathEscape(id) + "/draft"
}

// doJSON sends in as JSON and decodes the answer into out. Reads are
// retried on transport errors and 5xx answers.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return apperrors.ErrInternal.WithMessage("failed to encode repository request").WithCause(err)
		}
	}

	var body []byte
	call := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		var err error
		body, err = c.send(ctx, method, path, reader, "application/json")
		return err
	}

	var err error
	if method == http.MethodGet {
		err = retry.RetryWithCallback(ctx, c.policy, call, func(attempt int, err error, next time.Duration) {
			c.log.WarnwCtx(ctx, "Retrying repository request",
				"method", method, "path", path, "attempt", attempt, "next_delay", next, "error", err)
		})
	} else {
		err = call()
	}
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.ErrService.WithMessage("malformed repository response").WithCause(err).WithDetail("path", path)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.ErrValidation.WithMessage("invalid repository request").WithCause(err).AsFatal()
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncRepositoryRequest(method, "error")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.ErrService.WithMessage("repository request failed").WithCause(err).WithDetail("path", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ErrService.WithMessage("failed to read repository response").WithCause(err)
	}
	metrics.IncRepositoryRequest(method, strconv.Itoa(resp.StatusCode))

	return data, statusError(resp.StatusCode, path, data)
}

func statusError(status int, path string, body []byte) error {
	if status >= constants.HTTPStatusOKMin && status <= constants.HTTPStatusOKMax {
		return nil
	}

	var msg struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &msg)
	if msg.Message == "" {
		msg.Message = http.StatusText(status)
	}

	base := apperrors.ErrService
	switch {
	case status == http.StatusNotFound:
		base = apperrors.ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		base = apperrors.ErrValidation
	}

	err := base.WithMessagef("repository responded with status %d: %s", status, msg.Message).
		WithDetail("status", status).
		WithDetail("path", path)
	if status < http.StatusInternalServerError && status != http.StatusTooManyRequests {
		return err.AsFatal()
	}
	return err
}
