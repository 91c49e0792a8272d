package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"estate-dashboard/internal/model"
)

const (
	pageLimit = 100
	maxPages  = 1000
)

// Resource is a paginated CRUD collection on the backend.
// List responses may be wrapped in an object under ListKey, and single
// records under ItemKey; both forms are accepted unwrapped too.
type Resource[T any] struct {
	c       *Client
	Path    string
	ListKey string
	ItemKey string
}

func NewResource[T any](c *Client, path, listKey, itemKey string) *Resource[T] {
	return &Resource[T]{c: c, Path: path, ListKey: listKey, ItemKey: itemKey}
}

func (r *Resource[T]) List(ctx context.Context, page, limit int) (*model.Page[T], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var raw json.RawMessage
	if err := r.c.do(ctx, http.MethodGet, r.Path, q, nil, &raw, false); err != nil {
		return nil, err
	}
	p, err := decodePage[T](raw, r.ListKey)
	if err != nil {
		return nil, fmt.Errorf("backend: list %s: %w", r.Path, err)
	}
	if p.CurrentPage == 0 {
		p.CurrentPage = page
	}
	return p, nil
}

// All walks every page.
func (r *Resource[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	for page := 1; page <= maxPages; page++ {
		p, err := r.List(ctx, page, pageLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Data...)
		if len(p.Data) == 0 || p.TotalPages <= page {
			break
		}
	}
	return out, nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	return r.one(ctx, http.MethodGet, r.Path+"/"+url.PathEscape(id), nil)
}

func (r *Resource[T]) Create(ctx context.Context, in any) (*T, error) {
	return r.one(ctx, http.MethodPost, r.Path, in)
}

func (r *Resource[T]) Update(ctx context.Context, id string, in any) (*T, error) {
	return r.one(ctx, http.MethodPut, r.Path+"/"+url.PathEscape(id), in)
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, r.Path+"/"+url.PathEscape(id), nil, nil, nil, false)
}

func (r *Resource[T]) one(ctx context.Context, method, path string, in any) (*T, error) {
	var raw json.RawMessage
	if err := r.c.do(ctx, method, path, nil, in, &raw, false); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := decodeItem[T](raw, r.ItemKey)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	return v, nil
}

func unwrap(raw json.RawMessage, key string) json.RawMessage {
	if key == "" || len(raw) == 0 || raw[0] != '{' {
		return raw
	}
	var env map[string]json.RawMessage
	if json.Unmarshal(raw, &env) != nil {
		return raw
	}
	if inner, ok := env[key]; ok && len(bytes.TrimSpace(inner)) > 0 && string(inner) != "null" {
		return inner
	}
	return raw
}

func decodePage[T any](raw json.RawMessage, key string) (*model.Page[T], error) {
	raw = unwrap(bytes.TrimSpace(raw), key)
	if len(raw) > 0 && raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return &model.Page[T]{Data: items, CurrentPage: 1, TotalPages: 1, TotalItems: len(items)}, nil
	}
	var p model.Page[T]
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeItem[T any](raw json.RawMessage, key string) (*T, error) {
	raw = unwrap(bytes.TrimSpace(raw), key)
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}
