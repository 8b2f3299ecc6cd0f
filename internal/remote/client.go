package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"qsnap-gateway/internal/domain"
)

// StatusError is a non-2xx response from the processing backend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the processing backend's JSON API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New builds a client for baseURL. timeout bounds each request; zero means no limit.
func New(baseURL string, timeout time.Duration) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout, Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (tests, custom transports).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.httpc = h
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ListPapers(ctx context.Context) ([]domain.PaperSummary, error) {
	var out []domain.PaperSummary
	if err := c.do(ctx, http.MethodGet, "/papers", nil, "", &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Upload sends the file as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (domain.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return domain.UploadResult{}, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return domain.UploadResult{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return domain.UploadResult{}, err
	}

	var out domain.UploadResult
	if err := c.do(ctx, http.MethodPost, "/upload", &buf, mw.FormDataContentType(), &out, nil); err != nil {
		return domain.UploadResult{}, err
	}
	return out, nil
}

// Process triggers question detection for a paper.
func (c *Client) Process(ctx context.Context, paperID int64) error {
	return c.do(ctx, http.MethodPost, "/process/"+id(paperID), nil, "", nil, domain.ErrPaperNotFound)
}

// GetPaper fetches the paper with all its questions.
func (c *Client) GetPaper(ctx context.Context, paperID int64) (domain.Snapshot, error) {
	var out domain.Snapshot
	if err := c.do(ctx, http.MethodGet, "/papers/"+id(paperID), nil, "", &out, domain.ErrPaperNotFound); err != nil {
		return domain.Snapshot{}, err
	}
	return out, nil
}

func (c *Client) Solve(ctx context.Context, questionID int64) (domain.Solution, error) {
	var out domain.Solution
	if err := c.do(ctx, http.MethodPost, "/solve/"+id(questionID), nil, "", &out, domain.ErrQuestionNotFound); err != nil {
		return domain.Solution{}, err
	}
	return out, nil
}

// Export asks for a solutions document; relative download URLs are resolved against the base URL.
func (c *Client) Export(ctx context.Context, paperID int64) (domain.ExportResult, error) {
	var out domain.ExportResult
	if err := c.do(ctx, http.MethodGet, "/export/"+id(paperID), nil, "", &out, domain.ErrPaperNotFound); err != nil {
		return domain.ExportResult{}, err
	}
	if strings.HasPrefix(out.DownloadURL, "/") {
		out.DownloadURL = c.baseURL + out.DownloadURL
	}
	return out, nil
}

func (c *Client) DeletePaper(ctx context.Context, paperID int64) error {
	return c.do(ctx, http.MethodDelete, "/papers/"+id(paperID), nil, "", nil, domain.ErrPaperNotFound)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any, notFound error) error {
	op := method + " " + path
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(x))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func id(v int64) string { return strconv.FormatInt(v, 10) }
