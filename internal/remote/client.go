package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
	maxErrorBody     = 300
)

var tracer = otel.Tracer("transcenda.internal.remote")

// Observer receives one observation per outbound call.
type Observer interface {
	ObserveOutbound(service, operation, status string, seconds float64)
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *logging.Logger
	Observer    Observer
}

// Client sends JSON requests to one upstream service.
type Client struct {
	service    string
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
	observer   Observer
}

// Request describes a single JSON call. Path is joined to the base URL
// unless URL is set, in which case it is used verbatim.
type Request struct {
	Operation string
	Method    string
	Path      string
	URL       string
	Body      any
	Out       any
	NoAuth    bool
}

// NewClient builds a JSON client for service.
func NewClient(service string, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		service:    service,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.BearerToken,
		httpClient: httpClient,
		logger:     opts.Logger,
		observer:   opts.Observer,
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes req and decodes a 2xx JSON body into req.Out.
func (c *Client) Do(ctx context.Context, req Request) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := req.URL
	if endpoint == "" {
		endpoint = c.baseURL + req.Path
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := tracer.Start(ctx, c.service+"."+req.Operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("transcenda.service", c.service),
	)

	start := time.Now()
	status := "error"
	defer func() {
		if c.observer != nil {
			c.observer.ObserveOutbound(c.service, req.Operation, status, time.Since(start).Seconds())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var bodyReader io.Reader
	if req.Body != nil {
		payload, marshalErr := json.Marshal(req.Body)
		if marshalErr != nil {
			return fmt.Errorf("%s %s: marshal request: %w", c.service, req.Operation, marshalErr)
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", c.service, req.Operation, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if !req.NoAuth && c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			status = "timeout"
			c.logger.Warn("outbound request timed out", "service", c.service, "operation", req.Operation)
			return &TimeoutError{Service: c.service, Operation: req.Operation, Err: err}
		}
		return fmt.Errorf("%s %s: http request: %w", c.service, req.Operation, err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			status = "timeout"
			return &TimeoutError{Service: c.service, Operation: req.Operation, Err: err}
		}
		return fmt.Errorf("%s %s: read response: %w", c.service, req.Operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := truncateBody(respBody, maxErrorBody)
		c.logger.Warn("outbound API non-2xx response",
			"service", c.service,
			"operation", req.Operation,
			"status", resp.StatusCode,
			"body", msg,
		)
		return &RemoteServiceError{
			Service:    c.service,
			Operation:  req.Operation,
			StatusCode: resp.StatusCode,
			Body:       msg,
		}
	}

	if len(respBody) == 0 || req.Out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, req.Out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", c.service, req.Operation, err)
	}
	return nil
}

// truncateBody cuts b to at most limit bytes without splitting a UTF-8 rune.
func truncateBody(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut])
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
