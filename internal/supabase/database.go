package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

// UpsertOptions controls conflict resolution of an upsert.
type UpsertOptions struct {
	// OnConflict lists the unique columns, e.g. "user_id,client_id".
	OnConflict string
	// IgnoreDuplicates keeps existing rows instead of merging into them.
	IgnoreDuplicates bool
}

// Upsert inserts rows into table, resolving conflicts on opts.OnConflict.
// rows may be a single row or a slice. Replaying the same rows with the
// same conflict key leaves exactly one row per key.
func (c *Client) Upsert(ctx context.Context, table string, rows interface{}, opts UpsertOptions) error {
	query := url.Values{}
	if opts.OnConflict != "" {
		query.Set("on_conflict", opts.OnConflict)
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/rest/v1/"+table, query, rows)
	if err != nil {
		return err
	}
	resolution := "resolution=merge-duplicates"
	if opts.IgnoreDuplicates {
		resolution = "resolution=ignore-duplicates"
	}
	req.Header.Set("Prefer", resolution+",return=minimal")
	return c.do(req, nil)
}

// Insert inserts a single row and decodes the stored row, with its
// generated columns, into out.
func (c *Client) Insert(ctx context.Context, table string, row, out interface{}) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/rest/v1/"+table, nil, row)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	return c.do(req, out)
}

// From starts a query builder for a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// QueryBuilder builds PostgREST queries.
type QueryBuilder struct {
	client  *Client
	table   string
	columns string
	filters [][2]string
	orders  []string
	limit   int
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	q.filters = append(q.filters, [2]string{column, fmt.Sprintf("eq.%v", value)})
	return q
}

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value interface{}) *QueryBuilder {
	q.filters = append(q.filters, [2]string{column, fmt.Sprintf("gte.%v", value)})
	return q
}

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value interface{}) *QueryBuilder {
	q.filters = append(q.filters, [2]string{column, fmt.Sprintf("lt.%v", value)})
	return q
}

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	q.filters = append(q.filters, [2]string{column, "in.(" + strings.Join(values, ",") + ")"})
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

func (q *QueryBuilder) params(withSelect bool) url.Values {
	params := url.Values{}
	if withSelect {
		cols := q.columns
		if cols == "" {
			cols = "*"
		}
		params.Set("select", cols)
	}
	for _, f := range q.filters {
		params.Add(f[0], f[1])
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	return params
}

// Execute runs a SELECT and decodes the row array into out.
func (q *QueryBuilder) Execute(ctx context.Context, out interface{}) error {
	req, err := q.client.newRequest(ctx, http.MethodGet, "/rest/v1/"+q.table, q.params(true), nil)
	if err != nil {
		return err
	}
	return q.client.do(req, out)
}

// Exists reports whether at least one row matches the filters.
func (q *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	var rows []map[string]interface{}
	if q.columns == "" {
		q.columns = "id"
	}
	q.limit = 1
	if err := q.Execute(ctx, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Delete deletes the rows matching the filters. A builder without filters
// is refused so a missing Eq cannot wipe a table.
func (q *QueryBuilder) Delete(ctx context.Context) error {
	if len(q.filters) == 0 {
		return errors.Newf(errors.ErrInvalid, "refusing unfiltered delete on %s", q.table)
	}
	req, err := q.client.newRequest(ctx, http.MethodDelete, "/rest/v1/"+q.table, q.params(false), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return q.client.do(req, nil)
}
