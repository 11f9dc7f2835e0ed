package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	blogerrors "github.com/EHam1/very-professional-blog/internal/errors"
	"github.com/EHam1/very-professional-blog/pkg/types"
)

// DefaultEndpoint is the sink path, relative to the site origin.
const DefaultEndpoint = "/api/log"

// Result is the outcome of one transmission. Emitters log failed results and
// discard them; nothing upstream of the emitter ever sees one.
type Result struct {
	StatusCode int
	Err        error
}

// OK reports whether the sink accepted the record.
func (r Result) OK() bool {
	return r.Err == nil
}

// Transport delivers one record to the sink.
type Transport interface {
	Send(ctx context.Context, record types.EventRecord) Result
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, record types.EventRecord) Result

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, record types.EventRecord) Result {
	return f(ctx, record)
}

// HTTPTransport POSTs records as JSON to the sink endpoint.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport creates a transport posting to endpoint, an absolute URL
// (site origin + DefaultEndpoint).
func NewHTTPTransport(endpoint string, timeout time.Duration) *HTTPTransport {
	return NewHTTPTransportWithClient(endpoint, newHTTPClient(timeout))
}

// NewHTTPTransportWithClient creates a transport with a pre-configured client.
func NewHTTPTransportWithClient(endpoint string, client *http.Client) *HTTPTransport {
	return &HTTPTransport{endpoint: endpoint, client: client}
}

// Endpoint returns the sink URL.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// Send posts record. Non-2xx answers are failures; the body is not retried.
func (t *HTTPTransport) Send(ctx context.Context, record types.EventRecord) Result {
	body, err := json.Marshal(record)
	if err != nil {
		return Result{Err: blogerrors.NewTransportError(blogerrors.CodeEncodeFailed, "failed to encode event", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: blogerrors.NewTransportError(blogerrors.CodeSendFailed, "failed to build request", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{Err: blogerrors.NewTransportError(blogerrors.CodeSendFailed, "failed to post event", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{
			StatusCode: resp.StatusCode,
			Err: blogerrors.NewTransportError(blogerrors.CodeRejected,
				fmt.Sprintf("sink answered %d", resp.StatusCode), fmt.Errorf("%s", bytes.TrimSpace(msg))),
		}
	}

	io.Copy(io.Discard, resp.Body)
	return Result{StatusCode: resp.StatusCode}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}
