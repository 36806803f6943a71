// Package client provides the HTTP implementation of catalog.Client against a
// PokeAPI-compatible service, with error classification, metrics and
// structured logging.
package client

import (
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

	"github.com/Sternrassler/creature-catalog/pkg/catalog"
	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for catalog client operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by operation and status",
	}, []string{"operation", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of failed requests.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 404 on get.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassNotFound represents 404 on an item lookup.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassProtocol represents undecodable or invalid response bodies.
	ErrorClassProtocol ErrorClass = "protocol"
)

const (
	opList = "list"
	opGet  = "get"

	// DefaultBaseURL is the public PokeAPI v2 root.
	DefaultBaseURL = "https://pokeapi.co/api/v2"

	// DefaultMaxBodyBytes bounds every response body.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Client is the HTTP catalog client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

var _ catalog.Client = (*Client)(nil)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://pokeapi.co/api/v2".
	BaseURL string

	// User-Agent header (REQUIRED)
	UserAgent string

	// Timeout bounds a single round trip.
	Timeout time.Duration

	// MaxBodyBytes bounds a response body; larger bodies are protocol errors.
	MaxBodyBytes int64
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    userAgent,
		Timeout:      30 * time.Second,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  logging.NewLogger("catalog-client"),
	}, nil
}

// ListPage fetches one page of summaries.
func (c *Client) ListPage(ctx context.Context, offset, limit int) ([]catalog.Summary, error) {
	if err := catalog.ValidatePage(offset, limit); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var page pageResponse
	if err := c.getJSON(ctx, opList, "/pokemon/", query, -1, &page); err != nil {
		return nil, err
	}

	summaries, err := page.summaries()
	if err != nil {
		c.recordError(opList, ErrorClassProtocol)
		return nil, catalog.ProtocolError(opList, "invalid page", err)
	}

	c.logger.Debug().
		Int("offset", offset).
		Int("limit", limit).
		Int("count", len(summaries)).
		Msg("Listed catalog page")

	return summaries, nil
}

// GetItem fetches the detail record for id.
func (c *Client) GetItem(ctx context.Context, id int) (*catalog.Detail, error) {
	if id < 0 {
		return nil, catalog.ErrInvalidID
	}

	var item itemResponse
	if err := c.getJSON(ctx, opGet, fmt.Sprintf("/pokemon/%d/", id), nil, id, &item); err != nil {
		return nil, err
	}

	detail, err := item.detail()
	if err != nil {
		c.recordError(opGet, ErrorClassProtocol)
		return nil, catalog.ProtocolError(opGet, "invalid item", err)
	}

	return detail, nil
}

// getJSON performs a GET request and decodes a JSON body into v.
// A 404 is reported as not found only when notFoundID is non-negative.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, notFoundID int, v any) error {
	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(op).Observe(time.Since(startTime).Seconds())
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("operation", op).
		Str("url", target).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("operation", op).Msg("HTTP request failed")
		catalogRequestsTotal.WithLabelValues(op, "network_error").Inc()
		c.recordError(op, ErrorClassNetwork)
		return catalog.NetworkError(op, 0, err)
	}
	defer resp.Body.Close()

	catalogRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		class := c.classifyStatus(op, resp.StatusCode, notFoundID)
		c.recordError(op, class)

		c.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")

		if class == ErrorClassNotFound {
			return catalog.NotFoundError(op, notFoundID)
		}
		return catalog.NetworkError(op, resp.StatusCode, errors.New(resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		c.recordError(op, ErrorClassNetwork)
		return catalog.NetworkError(op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		c.recordError(op, ErrorClassProtocol)
		return catalog.ProtocolError(op, fmt.Sprintf("body exceeds %d bytes", c.config.MaxBodyBytes), nil)
	}

	if err := json.Unmarshal(body, v); err != nil {
		c.recordError(op, ErrorClassProtocol)
		return catalog.ProtocolError(op, "decode body", err)
	}

	return nil
}

// classifyStatus categorizes a non-success status for observability.
func (c *Client) classifyStatus(op string, status, notFoundID int) ErrorClass {
	switch {
	case status == http.StatusNotFound && op == opGet && notFoundID >= 0:
		return ErrorClassNotFound
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

func (c *Client) recordError(op string, class ErrorClass) {
	catalogErrorsTotal.WithLabelValues(string(class)).Inc()
	c.logger.Debug().
		Str("operation", op).
		Str("class", string(class)).
		Msg("Error classified")
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
