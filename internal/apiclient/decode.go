package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"portal/internal/backend"
)

func hasData(resp *backend.Response) bool {
	d := resp.Envelope.Data
	return len(d) > 0 && string(d) != "null"
}

// one decodes a single entity. A reply without data is ErrNoData.
func one[T any](ctx context.Context, c *Client, method, endpoint string, body any) (*T, error) {
	resp, err := c.Do(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if !hasData(resp) {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, ErrNoData)
	}
	var v T
	if err := resp.DecodeData(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// list decodes a collection. A reply without data is an empty slice.
func list[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	resp, err := c.Do(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if err := resp.DecodeData(&items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// paged decodes one page of a paginated collection.
func paged[T any](ctx context.Context, c *Client, endpoint string, page, limit int) (*Page[T], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	resp, err := c.Do(ctx, "GET", endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	out := &Page[T]{Items: []T{}, Pagination: Pagination{Page: page, Limit: limit}}
	if err := resp.DecodeData(&out.Items); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []T{}
	}
	if len(resp.Envelope.Pagination) > 0 {
		if err := json.Unmarshal(resp.Envelope.Pagination, &out.Pagination); err != nil {
			return nil, fmt.Errorf("%w: pagination: %v", backend.ErrDecode, err)
		}
	}
	return out, nil
}

func segment(id string) string {
	return url.PathEscape(id)
}
