// Package api wraps the storefront's REST API behind typed operations with
// centralized auth, logging, metrics, and error mapping.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/nerakcos/storefront-go/pkg/config"
	pkgerrors "github.com/nerakcos/storefront-go/pkg/errors"
	"github.com/nerakcos/storefront-go/pkg/logger"
	"github.com/nerakcos/storefront-go/pkg/metrics"
	"github.com/nerakcos/storefront-go/pkg/types"
)

const defaultTimeout = 10 * time.Second

var (
	errTokenSourceRequired = errors.New("api token source is required")
	errLoggerRequired      = errors.New("api logger is required")
)

type tokenSource interface {
	Token() string
}

// Client issues requests against the storefront API. The cookie jar carries
// the server-set guest session cookie across calls, which is how an
// unauthenticated cart stays correlated.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  tokenSource
	logg    *logger.Logger
	metrics *metrics.RequestMetrics
}

// NewClient initializes the API wrapper. metrics may be nil.
func NewClient(cfg config.APIConfig, tokens tokenSource, logg *logger.Logger, reqMetrics *metrics.RequestMetrics) (*Client, error) {
	if tokens == nil {
		return nil, errTokenSourceRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		tokens:  tokens,
		logg:    logg,
		metrics: reqMetrics,
	}, nil
}

// doJSON sends payload as a JSON body (or no body when nil) and decodes a
// 2xx response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, operation, out)
}

// doMultipart streams a multipart form. The JSON content type is omitted so
// the multipart writer's boundary-delimited type is used instead.
func (c *Client) doMultipart(ctx context.Context, operation, method, path, field, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building multipart body")
	}
	if _, err := io.Copy(part, file); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "copying multipart payload")
	}
	if err := writer.Close(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalizing multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, operation, out)
}

func (c *Client) send(req *http.Request, operation string, out any) error {
	ctx := c.logg.WithOperation(req.Context(), operation)

	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveDuration(operation, time.Since(start))
	if err != nil {
		c.metrics.IncFailure(operation)
		c.logg.Error(ctx, "api request failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeTransport, err, "request never completed")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncFailure(operation)
		message := "Request failed"
		var payload types.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
			message = payload.Error
		}
		typed := pkgerrors.FromStatus(resp.StatusCode, message)
		c.logg.Warn(c.logg.WithField(ctx, "status", resp.StatusCode), "api request rejected")
		return typed
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.metrics.IncFailure(operation)
			c.logg.Error(ctx, "decoding api response", err)
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding response body")
		}
	}

	c.metrics.IncSuccess(operation)
	c.logg.Debug(ctx, "api request completed")
	return nil
}
