// Package biosim is the HTTP transport to a BioSim server and the query encoding of
// its endpoints.
package biosim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/biosim-client/internal/domain"
	"github.com/couchcryptid/biosim-client/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Endpoint names exposed by the server.
const (
	EndpointNormals   = "BioSimNormals"
	EndpointGenerate  = "BioSimWG"
	EndpointModel     = "BioSimModel"
	EndpointModelList = "BioSimModelList"
	EndpointRelease   = "BioSimMemoryCleanUp"
	EndpointLoad      = "BioSimMemoryLoad"
	EndpointMaxMemory = "BioSimMaxMemory"
)

// exceptionMarker opens the body of a reply describing a server-side failure.
const exceptionMarker = "Exception"

// Client issues GET requests against a BioSim server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for the server at baseURL, e.g. "http://repicea.dynu.net".
func NewClient(baseURL string, timeout time.Duration, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch performs GET baseURL/endpoint?query and returns the reply body with line
// endings normalized and trailing newlines removed. query must already be encoded; an
// empty query sends none.
//
// A network failure or a status outside 200-202 is domain.ErrConnectivity. A body
// starting with "Exception" is domain.ErrServer.
func (c *Client) Fetch(ctx context.Context, endpoint, query string) (string, error) {
	u := c.baseURL + "/" + endpoint
	if query != "" {
		u += "?" + query
	}

	start := c.clock.Now()
	body, err := c.do(ctx, u)
	c.metrics.RequestDuration.WithLabelValues(endpoint).Observe(c.clock.Since(start).Seconds())

	if err != nil {
		c.metrics.Requests.WithLabelValues(endpoint, "connectivity_error").Inc()
		return "", fmt.Errorf("%w: %s: %w", domain.ErrConnectivity, endpoint, err)
	}
	if strings.HasPrefix(body, exceptionMarker) {
		c.metrics.Requests.WithLabelValues(endpoint, "server_error").Inc()
		return "", fmt.Errorf("%w: %s: %s", domain.ErrServer, endpoint, firstLine(body))
	}

	c.metrics.Requests.WithLabelValues(endpoint, "success").Inc()
	c.logger.Debug("biosim request complete", "endpoint", endpoint, "bytes", len(body))
	return body, nil
}

func (c *Client) do(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode > http.StatusAccepted {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	body := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.TrimRight(body, "\n"), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
