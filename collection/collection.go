// Package collection provides thin wrappers over the datastore dispatch
// actions. There is no query grammar here: filters are passed through to the
// backend untouched, and this package only validates call shape.
package collection

import (
	"context"
	"fmt"

	"github.com/singlebase/singlebase-go/dispatch"
	"github.com/singlebase/singlebase-go/internal/common"
)

// Client operates on one named collection.
type Client struct {
	dispatcher dispatch.Dispatcher
	name       string
}

// New binds a client to the named collection.
func New(d dispatch.Dispatcher, name string) (*Client, error) {
	if d == nil {
		return nil, fmt.Errorf("collection: %w: dispatcher is required", common.ErrorValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("collection: %w: collection name is required", common.ErrorValidation)
	}
	return &Client{dispatcher: d, name: name}, nil
}

// Name returns the collection name.
func (c *Client) Name() string { return c.name }

// Fetch returns the documents matching filter. A nil filter fetches all.
func (c *Client) Fetch(ctx context.Context, filter map[string]any) ([]map[string]any, error) {
	payload := map[string]any{"collection": c.name}
	if filter != nil {
		payload["filter"] = filter
	}
	data, err := c.call(ctx, dispatch.ActionDBFetch, payload)
	if err != nil {
		return nil, err
	}
	return docsField(data), nil
}

// FetchOne returns the document with the given key, or common.ErrorNotFound.
func (c *Client) FetchOne(ctx context.Context, key string) (map[string]any, error) {
	if key == "" {
		return nil, fmt.Errorf("fetch_one: %w: document key is required", common.ErrorValidation)
	}
	docs, err := c.Fetch(ctx, map[string]any{"_key": key})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.ErrorNotFound
	}
	return docs[0], nil
}

// Insert creates a document and returns it as stored.
func (c *Client) Insert(ctx context.Context, doc map[string]any) (map[string]any, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("insert: %w: document is required", common.ErrorValidation)
	}
	data, err := c.call(ctx, dispatch.ActionDBInsert, map[string]any{
		"collection": c.name,
		"doc":        doc,
	})
	if err != nil {
		return nil, err
	}
	if docs := docsField(data); len(docs) > 0 {
		return docs[0], nil
	}
	return data, nil
}

// Update applies fields to the document with the given key.
func (c *Client) Update(ctx context.Context, key string, fields map[string]any) (map[string]any, error) {
	if key == "" {
		return nil, fmt.Errorf("update: %w: document key is required", common.ErrorValidation)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("update: %w: fields are required", common.ErrorValidation)
	}
	data, err := c.call(ctx, dispatch.ActionDBUpdate, map[string]any{
		"collection": c.name,
		"_key":       key,
		"doc":        fields,
	})
	if err != nil {
		return nil, err
	}
	if docs := docsField(data); len(docs) > 0 {
		return docs[0], nil
	}
	return data, nil
}

// Delete removes the document with the given key.
func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("delete: %w: document key is required", common.ErrorValidation)
	}
	_, err := c.call(ctx, dispatch.ActionDBDelete, map[string]any{
		"collection": c.name,
		"_key":       key,
	})
	return err
}

// Count returns the number of documents matching filter.
func (c *Client) Count(ctx context.Context, filter map[string]any) (int64, error) {
	payload := map[string]any{"collection": c.name}
	if filter != nil {
		payload["filter"] = filter
	}
	data, err := c.call(ctx, dispatch.ActionDBCount, payload)
	if err != nil {
		return 0, err
	}
	if n, ok := data["count"].(float64); ok {
		return int64(n), nil
	}
	return 0, fmt.Errorf("count: %w: missing count in response", common.ErrorInternal)
}

func (c *Client) call(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	resp, err := c.dispatcher.Dispatch(ctx, action, payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", action, c.name, err)
	}
	if !resp.OK {
		if resp.Error != nil {
			return nil, resp.Error
		}
		return nil, fmt.Errorf("%s %s: %w", action, c.name, common.ErrorInternal)
	}
	return resp.DataMap()
}

func docsField(data map[string]any) []map[string]any {
	raw, ok := data["docs"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, d := range raw {
		if m, ok := d.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
