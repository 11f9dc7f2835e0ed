package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// RESTStore inserts rows through a PostgREST-compatible HTTP API
// (POST {base}/rest/v1/{table}), authenticating with an anon key.
type RESTStore struct {
	endpoint string
	key      string
	client   *http.Client
}

// RESTError is a non-2xx answer from the REST backend.
type RESTError struct {
	StatusCode int
	Message    string
	Code       string
}

// Error returns the backend's message.
func (e *RESTError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storage answered %d", e.StatusCode)
	}
	return e.Message
}

// NewRESTStore creates a store for the table at baseURL.
func NewRESTStore(baseURL, key, table string, client *http.Client) (*RESTStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := validTable(table); err != nil {
		return nil, err
	}
	if client == nil {
		client = newHTTPClient(10 * time.Second)
	}
	return &RESTStore{
		endpoint: strings.TrimRight(baseURL, "/") + "/rest/v1/" + table,
		key:      key,
		client:   client,
	}, nil
}

// Endpoint returns the table URL.
func (s *RESTStore) Endpoint() string {
	return s.endpoint
}

// Insert posts row and returns the representation the backend stored.
func (s *RESTStore) Insert(ctx context.Context, row Row) (Row, error) {
	row.ID = ""
	body, err := json.Marshal([]Row{row})
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: failed to encode row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)

	resp, err := s.client.Do(req)
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Row{}, fmt.Errorf("eventstore: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		restErr := &RESTError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(data, &payload) == nil {
			restErr.Message = payload.Message
			restErr.Code = payload.Code
		}
		return Row{}, restErr
	}

	var stored []Row
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &stored); err != nil {
			return Row{}, fmt.Errorf("eventstore: failed to decode response: %w", err)
		}
	}
	if len(stored) == 0 {
		return row, nil
	}
	return stored[0], nil
}

// Close releases idle connections.
func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}
