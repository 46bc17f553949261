// Package backend talks to the remote processing service: uploads, process
// requests, output path discovery and artifact downloads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/media"
)

// Options configures the client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// RequestTimeout bounds each call; zero means no timeout.
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the processing backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. BaseURL is required.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base url: %w", err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// BaseURL returns the resolved backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends f as multipart field "file" and returns the server-side name.
func (c *Client) Upload(ctx context.Context, f *media.File) (string, error) {
	const op = "upload"

	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("backend: %s: open %s: %w", op, f.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer src.Close()
		part, err := mw.CreateFormFile("file", f.Name)
		if err == nil {
			_, err = io.Copy(part, src)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := c.do(op, req, &out); err != nil {
		return "", err
	}
	if out.Filename == "" {
		return "", &TransportError{Op: op, Err: fmt.Errorf("response has no filename")}
	}
	logger.Debug("Upload accepted", "file", f.Name, "token", out.Filename)
	return out.Filename, nil
}

// Process submits an image job.
func (c *Client) Process(ctx context.Context, body ProcessRequest) (*ProcessResponse, error) {
	return c.process(ctx, "process", "/process", body)
}

// ProcessVideo submits a frame extraction job.
func (c *Client) ProcessVideo(ctx context.Context, body VideoProcessRequest) (*ProcessResponse, error) {
	return c.process(ctx, "process_video", "/process_video", body)
}

func (c *Client) process(ctx context.Context, op, path string, body any) (*ProcessResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out ProcessResponse
	if err := c.do(op, req, &out); err != nil {
		return nil, err
	}
	logger.Debug("Process finished", "op", op, "processed", out.ProcessedCount, "zip", out.ZipFile)
	return &out, nil
}

// OutputPaths asks the backend for its default output location.
func (c *Client) OutputPaths(ctx context.Context) (*OutputPaths, error) {
	const op = "get_output_paths"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_output_paths", nil)
	if err != nil {
		return nil, fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var out OutputPaths
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

// DownloadURL is the link for an artifact archive.
func (c *Client) DownloadURL(zipFile string) string {
	return c.baseURL + "/download/" + url.PathEscape(zipFile)
}

// Download streams an artifact archive into w.
func (c *Client) Download(ctx context.Context, zipFile string, w io.Writer) (int64, error) {
	const op = "download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(zipFile), nil)
	if err != nil {
		return 0, fmt.Errorf("backend: %s: build request: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			return 0, &BackendError{Op: op, Status: resp.StatusCode, Message: env.Error}
		}
		return 0, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	return n, nil
}

// do executes req and decodes the shared envelope. A body that is not JSON
// is a transport failure; a JSON body without success=true is a backend
// refusal regardless of status code.
func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.Success == nil || !*env.Success {
		return &BackendError{Op: op, Status: resp.StatusCode, Message: env.Error}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
