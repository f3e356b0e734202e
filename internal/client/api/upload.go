package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/iudanet/fieldsync/internal/client/upload"
	"github.com/iudanet/fieldsync/internal/syncerr"
	"github.com/iudanet/fieldsync/pkg/api"
)

// Upload sends the contents of file.Path to the blob endpoint and returns
// the stored reference.
func (c *Client) Upload(ctx context.Context, file upload.File, progress func(sent int64)) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", &syncerr.ValidationError{
			Field:   file.Name,
			Reasons: []syncerr.Reason{{Code: "unreadable", Message: err.Error()}},
		}
	}
	defer func() {
		_ = f.Close()
	}()

	path := "/api/v1/blobs?name=" + url.QueryEscape(file.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &progressReader{r: f, fn: progress})
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if file.Size > 0 {
		req.ContentLength = file.Size
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &syncerr.NetworkError{Op: "upload " + file.Name, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &syncerr.NetworkError{Op: "upload " + file.Name, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError("upload "+file.Name, resp.StatusCode, body)
	}

	var blob api.BlobResponse
	if err := json.Unmarshal(body, &blob); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return blob.Ref, nil
}

// progressReader сообщает количество отправленных байт
type progressReader struct {
	r    io.Reader
	fn   func(int64)
	sent int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent)
		}
	}
	return n, err
}
