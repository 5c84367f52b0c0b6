// Package client is the transport to the equipment analytics service.
//
// Every operation maps onto one HTTP call under the configured base URL
// (normally ".../api") and returns either a typed payload or a *core.Error
// classifying the failure. Nothing is cached and nothing is retried here:
// a retry is always a new, user-initiated call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/net/publicsuffix"
)

// Operation names, used in errors, logs and metrics.
const (
	OpFetchHistory       = "fetchHistory"
	OpUploadDataset      = "uploadDataset"
	OpFetchDatasetDetail = "fetchDatasetDetail"
	OpFetchReport        = "fetchReport"
	OpLogin              = "login"
	OpRegister           = "register"
)

// RequestIDHeader carries a per-request UUID for correlating server logs.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Client issues requests against the analytics service.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	meter   metric.MeterProvider
	metrics *instruments
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
// The caller's client keeps its own jar and timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every request made through the HTTP client New builds.
// Zero keeps the transport default. It has no effect on a client passed with
// WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider used for request metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		if mp != nil {
			c.meter = mp
		}
	}
}

// New creates a client for baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:   base,
		logger: slog.New(slog.DiscardHandler),
		meter:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.http = &http.Client{Jar: jar, Timeout: c.timeout}
	}

	c.metrics, err = newInstruments(c.meter)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint resolves a path relative to the base URL, keeping trailing slashes.
func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// FetchHistory returns the most recent dataset summaries, newest first.
func (c *Client) FetchHistory(ctx context.Context) ([]core.DatasetSummary, error) {
	req, err := c.newRequest(ctx, OpFetchHistory, http.MethodGet, "datasets/history/", nil)
	if err != nil {
		return nil, err
	}

	var list []core.DatasetSummary
	if err := c.doJSON(req, OpFetchHistory, &list); err != nil {
		return nil, err
	}
	for _, s := range list {
		if err := s.Validate(); err != nil {
			return nil, core.NewError(core.KindMalformed, OpFetchHistory, "", err)
		}
	}
	return list, nil
}

// UploadDataset submits a CSV file as the multipart field "file".
func (c *Client) UploadDataset(ctx context.Context, filename string, data []byte) (*core.DatasetDetail, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, core.NewError(core.KindValidation, OpUploadDataset, "", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, core.NewError(core.KindValidation, OpUploadDataset, "", err)
	}
	if err := mw.Close(); err != nil {
		return nil, core.NewError(core.KindValidation, OpUploadDataset, "", err)
	}

	req, err := c.newRequest(ctx, OpUploadDataset, http.MethodPost, "datasets/upload/", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.doDetail(req, OpUploadDataset)
}

// FetchDatasetDetail returns the full record of one dataset.
func (c *Client) FetchDatasetDetail(ctx context.Context, id int64) (*core.DatasetDetail, error) {
	req, err := c.newRequest(ctx, OpFetchDatasetDetail, http.MethodGet, datasetPath(id, ""), nil)
	if err != nil {
		return nil, err
	}
	return c.doDetail(req, OpFetchDatasetDetail)
}

// FetchReport downloads the PDF report of one dataset.
func (c *Client) FetchReport(ctx context.Context, id int64) ([]byte, error) {
	req, err := c.newRequest(ctx, OpFetchReport, http.MethodGet, datasetPath(id, "generate_pdf/"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")

	start := time.Now()
	resp, err := c.send(req, OpFetchReport)
	if err != nil {
		c.metrics.record(req.Context(), OpFetchReport, err, start)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = core.NewError(core.KindNetwork, OpFetchReport, "", err)
	} else {
		err = checkBinary(resp.Header.Get("Content-Type"), data)
	}
	c.metrics.record(req.Context(), OpFetchReport, err, start)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Login checks credentials with the service.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.postCredentials(ctx, OpLogin, "login/", username, password)
}

// Register creates an account. It does not log the account in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.postCredentials(ctx, OpRegister, "register/", username, password)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) postCredentials(ctx context.Context, op, path, username, password string) error {
	payload, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return core.NewError(core.KindValidation, op, "", err)
	}
	req, err := c.newRequest(ctx, op, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, op, nil)
}

func datasetPath(id int64, suffix string) string {
	return "datasets/" + strconv.FormatInt(id, 10) + "/" + suffix
}

func (c *Client) newRequest(ctx context.Context, op, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, core.NewError(core.KindValidation, op, "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

// send performs the request and converts transport failures and non-2xx
// responses into *core.Error. On success the caller owns resp.Body.
func (c *Client) send(req *http.Request, op string) (*http.Response, error) {
	logger := c.logger.With("op", op, "request_id", req.Header.Get(RequestIDHeader))
	logger.Debug("sending request", "method", req.Method, "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("request failed", "error", err)
		return nil, core.NewError(core.KindNetwork, op, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		apiErr := classifyStatus(op, resp)
		logger.Debug("request rejected", "status", resp.StatusCode, "error", apiErr)
		return nil, apiErr
	}

	logger.Debug("request succeeded", "status", resp.StatusCode)
	return resp, nil
}

// doJSON sends req and decodes a JSON body into out (skipped when out is nil).
func (c *Client) doJSON(req *http.Request, op string, out any) error {
	start := time.Now()
	err := c.roundTripJSON(req, op, out)
	c.metrics.record(req.Context(), op, err, start)
	return err
}

func (c *Client) roundTripJSON(req *http.Request, op string, out any) error {
	resp, err := c.send(req, op)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.NewError(core.KindMalformed, op, "", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Client) doDetail(req *http.Request, op string) (*core.DatasetDetail, error) {
	var detail core.DatasetDetail
	if err := c.doJSON(req, op, &detail); err != nil {
		return nil, err
	}
	if err := detail.Validate(); err != nil {
		return nil, core.NewError(core.KindMalformed, op, "", err)
	}
	return &detail, nil
}
