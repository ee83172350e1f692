package bullscan

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
)

// Client provides a Go SDK for the bullscan-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new bullscan API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bullscan api: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ListRuns returns the most recent runs, newest first. A limit of zero uses
// the server default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var runs []RunSummary
	if err := c.get(ctx, "/api/runs", q, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun retrieves a run and all of its result rows.
func (c *Client) GetRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	if err := c.get(ctx, "/api/runs/"+strconv.FormatInt(id, 10), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Winners retrieves the rows of a run that pass the server's screen.
func (c *Client) Winners(ctx context.Context, id int64) ([]Result, error) {
	var resp WinnersResponse
	if err := c.get(ctx, "/api/runs/"+strconv.FormatInt(id, 10)+"/winners", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Winners, nil
}

// Symbols lists the symbols with cached daily bars.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var resp SymbolsResponse
	if err := c.get(ctx, "/api/symbols", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// ExportCSV streams a run's result table as CSV into w.
func (c *Client) ExportCSV(ctx context.Context, id int64, w io.Writer) error {
	resp, err := c.do(ctx, "/api/runs/"+strconv.FormatInt(id, 10)+"/csv", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	resp, err := c.do(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// do issues a GET and returns the response for 2xx statuses. The caller
// closes the body.
func (c *Client) do(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return nil, apiErr
}
