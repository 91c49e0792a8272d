package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// Analytics payloads are passed through to the charts untouched.

func (c *Client) Comprehensive(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/dashboard/comprehensive", nil, nil, &out, false)
	return out, err
}

func (c *Client) MonthlyRevenue(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/dashboard/monthly-revenue", nil, nil, &out, false)
	return out, err
}

func (c *Client) SetMonthlyTarget(ctx context.Context, target float64) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPut, "/target/monthlyRevenue", nil, map[string]float64{"target": target}, &out, false)
	return out, err
}
