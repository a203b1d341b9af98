package postgrest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"hubgate/internal/domain"
)

// ErrNoRows is returned by writes whose representation came back empty.
var ErrNoRows = errors.New("postgrest: no rows returned")

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client speaks the PostgREST dialect under {BaseURL}/rest/v1. The API key is
// sent both as apikey and as the bearer token.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/rest/v1").
		SetTimeout(timeout).
		SetHeader("apikey", cfg.APIKey).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &Client{http: client, logger: logger}
}

type Filter struct {
	Column string
	Op     string
	Value  string
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: "eq", Value: fmt.Sprint(value)}
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func Gte(column string, value time.Time) Filter {
	return Filter{Column: column, Op: "gte", Value: value.UTC().Format(timestampLayout)}
}

// Query is a read against one table. Order is a PostgREST order clause such
// as "capturedAt.asc".
type Query struct {
	Filters []Filter
	Select  string
	Order   string
	Limit   int
}

func (q Query) values() url.Values {
	v := filterValues(q.Filters)
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	v.Set("select", sel)
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func filterValues(filters []Filter) url.Values {
	v := url.Values{}
	for _, f := range filters {
		v.Add(f.Column, f.Op+"."+f.Value)
	}
	return v
}

// Select reads every matching row of table into T.
func Select[T any](ctx context.Context, c *Client, table string, q Query) ([]T, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q.values())

	var rows []T
	if err := c.do(req, http.MethodGet, table, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// Upsert inserts body, merging into the row that conflicts on onConflict, and
// returns the written row.
func Upsert[T any](ctx context.Context, c *Client, table string, body any, onConflict string) (*T, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation,resolution=merge-duplicates").
		SetBody(body)
	if onConflict != "" {
		req.SetQueryParam("on_conflict", onConflict)
	}
	return first[T](c, req, http.MethodPost, table)
}

// Update patches the rows matching filters and returns the first written row.
func Update[T any](ctx context.Context, c *Client, table string, filters []Filter, body any) (*T, error) {
	values := filterValues(filters)
	values.Set("select", "*")

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(values).
		SetBody(body)
	return first[T](c, req, http.MethodPatch, table)
}

func first[T any](c *Client, req *resty.Request, method, table string) (*T, error) {
	var rows []T
	if err := c.do(req, method, table, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}

func (c *Client) do(req *resty.Request, method, table string, out any) error {
	resp, err := req.Execute(method, "/"+url.PathEscape(table))
	if err != nil {
		c.logger.Error("store request failed", "table", table, "method", method, "error", err)
		return domain.WrapError(domain.KindServer, domain.MsgStoreUnavailable,
			fmt.Errorf("%s %s: %w", method, table, err))
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		c.logger.Error("store request rejected",
			"table", table,
			"method", method,
			"status", resp.StatusCode(),
			"body", strings.TrimSpace(resp.String()),
		)
		return domain.WrapError(domain.KindServer, domain.MsgStoreUnavailable,
			fmt.Errorf("%s %s: status %d", method, table, resp.StatusCode()))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return domain.WrapError(domain.KindServer, domain.MsgStoreUnavailable,
			fmt.Errorf("decoding %s rows: %w", table, err))
	}
	return nil
}
