// Package filestore wraps the file storage dispatch actions. Uploads are a
// two-step flow: the backend issues a presigned URL, then the bytes are PUT
// straight to object storage without passing through the dispatcher.
package filestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/internal/common"
)

// Client performs file operations against the backend.
type Client struct {
	dispatcher dispatch.Dispatcher
	httpClient *http.Client
}

// New creates a file client. A nil httpClient falls back to a client with a
// 5-minute timeout, since uploads can be large.
func New(d dispatch.Dispatcher, httpClient *http.Client) (*Client, error) {
	if d == nil {
		return nil, fmt.Errorf("filestore: %w: dispatcher is required", common.ErrorValidation)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{dispatcher: d, httpClient: httpClient}, nil
}

// Upload stores content under filename and returns the created file record.
// When the backend responds with a presigned upload URL, the bytes are PUT
// there; otherwise they are inlined in the dispatch payload.
func (c *Client) Upload(ctx context.Context, filename, contentType string, content []byte) (map[string]any, error) {
	if filename == "" {
		return nil, fmt.Errorf("upload: %w: filename is required", common.ErrorValidation)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("upload: %w: content is required", common.ErrorValidation)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	payload := map[string]any{
		"filename":     filename,
		"content_type": contentType,
		"size":         len(content),
	}
	data, err := c.call(ctx, dispatch.ActionFileUpload, payload)
	if err != nil {
		return nil, err
	}

	uploadURL, _ := data["upload_url"].(string)
	if uploadURL == "" {
		// Small-file fallback: the backend accepts inline base64 content.
		payload["content"] = base64.StdEncoding.EncodeToString(content)
		return c.call(ctx, dispatch.ActionFileUpload, payload)
	}

	if err := c.putPresigned(ctx, uploadURL, contentType, content); err != nil {
		return nil, err
	}

	if file, ok := data["file"].(map[string]any); ok {
		return file, nil
	}
	return data, nil
}

// putPresigned PUTs the raw bytes to a presigned object-storage URL.
func (c *Client) putPresigned(ctx context.Context, url, contentType string, content []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}

// Get returns the file record (including a download URL when available).
func (c *Client) Get(ctx context.Context, key string) (map[string]any, error) {
	if key == "" {
		return nil, fmt.Errorf("get: %w: file key is required", common.ErrorValidation)
	}
	return c.call(ctx, dispatch.ActionFileGet, map[string]any{"_key": key})
}

// List returns file records matching filter. A nil filter lists all.
func (c *Client) List(ctx context.Context, filter map[string]any) ([]map[string]any, error) {
	payload := map[string]any{}
	if filter != nil {
		payload["filter"] = filter
	}
	data, err := c.call(ctx, dispatch.ActionFileList, payload)
	if err != nil {
		return nil, err
	}
	raw, _ := data["files"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Delete removes a stored file.
func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("delete: %w: file key is required", common.ErrorValidation)
	}
	_, err := c.call(ctx, dispatch.ActionFileDelete, map[string]any{"_key": key})
	return err
}

// Update mutates file metadata (title, visibility, tags).
func (c *Client) Update(ctx context.Context, key string, fields map[string]any) (map[string]any, error) {
	if key == "" {
		return nil, fmt.Errorf("update: %w: file key is required", common.ErrorValidation)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("update: %w: fields are required", common.ErrorValidation)
	}
	return c.call(ctx, dispatch.ActionFileUpdate, map[string]any{"_key": key, "doc": fields})
}

func (c *Client) call(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	resp, err := c.dispatcher.Dispatch(ctx, action, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if !resp.OK {
		if resp.Error != nil {
			return nil, resp.Error
		}
		return nil, fmt.Errorf("%s: %w", action, common.ErrorInternal)
	}
	return resp.DataMap()
}
