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
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
	"github.com/labtrack/go-liblab/apierror"
	"github.com/labtrack/go-liblab/catalog/model"
)

var log = logging.Logger("catalog-client")

// ErrInvalidPayload is returned when a create or update payload fails
// validation. No request is sent.
var ErrInvalidPayload = errors.New("invalid payload")

const requestIDHeader = "X-Request-ID"

var validate = validator.New()

// Client is an http client for the lab catalog REST API.
type Client struct {
	c       *http.Client
	baseURL *url.URL
	tokens  TokenSource
}

// New creates a new catalog HTTP client. If an http.Client is not provided by
// the WithClient option, then the default client is used.
func New(baseURL string, options ...Option) (*Client, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("url must have http or https scheme: %s", baseURL)
	}

	httpClient := opts.httpClient
	if opts.timeout != 0 {
		cli := *httpClient
		cli.Timeout = opts.timeout
		httpClient = &cli
	}
	if opts.retryMax != 0 {
		rclient := &retryablehttp.Client{
			HTTPClient:   httpClient,
			Logger:       retryLogger{},
			RetryWaitMin: opts.retryWaitMin,
			RetryWaitMax: opts.retryWaitMax,
			RetryMax:     opts.retryMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			// Return the last response so that its status reaches apierror.
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		}
		httpClient = rclient.StandardClient()
	}

	return &Client{
		c:       httpClient,
		baseURL: u,
		tokens:  opts.tokens,
	}, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// list fetches the collection of entity, filtered by params.
func list[T any](ctx context.Context, c *Client, entity model.Entity, params model.Params) ([]T, error) {
	u := c.baseURL.JoinPath(entity.Path())
	if q := params.Values(); len(q) != 0 {
		u.RawQuery = q.Encode()
	}
	var recs []T
	if err := c.do(ctx, http.MethodGet, u, nil, &recs); err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	if recs == nil {
		// An empty collection is not the same as no data.
		recs = []T{}
	}
	return recs, nil
}

// Create posts a new record of entity. The record stored by the server is
// returned undecoded.
func (c *Client) Create(ctx context.Context, entity model.Entity, payload any) (json.RawMessage, error) {
	if !entity.Valid() {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)
	}
	if err := validatePayload(payload); err != nil {
		return nil, fmt.Errorf("create %s: %w", entity, err)
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.baseURL.JoinPath(entity.Path()), payload, &out); err != nil {
		return nil, fmt.Errorf("create %s: %w", entity, err)
	}
	log.Infow("Created record", "entity", entity)
	return out, nil
}

// Update replaces the record of entity identified by id.
func (c *Client) Update(ctx context.Context, entity model.Entity, id int64, payload any) (json.RawMessage, error) {
	if !entity.Valid() {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)
	}
	if err := validatePayload(payload); err != nil {
		return nil, fmt.Errorf("update %s %d: %w", entity, id, err)
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPut, c.recordURL(entity, id), payload, &out); err != nil {
		return nil, fmt.Errorf("update %s %d: %w", entity, id, err)
	}
	log.Infow("Updated record", "entity", entity, "id", id)
	return out, nil
}

// Delete removes the record of entity identified by id.
func (c *Client) Delete(ctx context.Context, entity model.Entity, id int64) error {
	if !entity.Valid() {
		return fmt.Errorf("%w: %s", model.ErrUnknownEntity, entity)
	}
	if err := c.do(ctx, http.MethodDelete, c.recordURL(entity, id), nil, nil); err != nil {
		return fmt.Errorf("delete %s %d: %w", entity, id, err)
	}
	log.Infow("Deleted record", "entity", entity, "id", id)
	return nil
}

func (c *Client) recordURL(entity model.Entity, id int64) *url.URL {
	return c.baseURL.JoinPath(entity.Path(), strconv.FormatInt(id, 10))
}

// do sends a request with an optional JSON payload and decodes a JSON response
// into result, if result is not nil. A non-2xx response is returned as an
// *apierror.Error.
func (c *Client) do(ctx context.Context, method string, u *url.URL, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debugw("Request failed", "method", method, "url", u.String(), "status", resp.StatusCode, "requestID", reqID)
		return apierror.FromResponse(resp.StatusCode, data)
	}
	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, result)
}

func validatePayload(payload any) error {
	if payload == nil {
		return fmt.Errorf("%w: no payload", ErrInvalidPayload)
	}
	v := reflect.ValueOf(payload)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("%w: nil payload", ErrInvalidPayload)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// retryLogger sends retryablehttp log output to the package logger.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Errorw(msg, keysAndValues...)
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warnw(msg, keysAndValues...)
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}
