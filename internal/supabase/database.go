package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// DatabaseClient handles PostgREST table access.
type DatabaseClient struct {
	client *Client
}

// From starts a query against table.
func (d *DatabaseClient) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  d.client,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		headers: make(map[string]string),
	}
}

// QueryBuilder accumulates a single PostgREST request. It is not reusable.
type QueryBuilder struct {
	client  *Client
	table   string
	method  string
	columns string
	filters url.Values
	orders  []string
	limit   *int
	offset  *int
	body    []byte
	err     error
	headers map[string]string
	count   bool
}

// Result is the decoded outcome of Execute.
type Result struct {
	Data []byte
	// Count is the total number of matching rows when Count was requested, else -1.
	Count int
}

func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

func (q *QueryBuilder) Insert(data interface{}) *QueryBuilder {
	q.method = http.MethodPost
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

func (q *QueryBuilder) Update(data interface{}) *QueryBuilder {
	q.method = http.MethodPatch
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = http.MethodDelete
	q.headers["Prefer"] = "return=representation"
	return q
}

func (q *QueryBuilder) setBody(data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		q.err = fmt.Errorf("marshal body: %w", err)
		return
	}
	q.body = body
}

func (q *QueryBuilder) addFilter(column, expr string) *QueryBuilder {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, expr)
	return q
}

func (q *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, fmt.Sprintf("eq.%v", value))
}

func (q *QueryBuilder) Neq(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, fmt.Sprintf("neq.%v", value))
}

func (q *QueryBuilder) Gte(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, fmt.Sprintf("gte.%v", value))
}

func (q *QueryBuilder) Lte(column string, value interface{}) *QueryBuilder {
	return q.addFilter(column, fmt.Sprintf("lte.%v", value))
}

// ILike is a case-insensitive pattern match; use * as the wildcard.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.addFilter(column, "ilike."+pattern)
}

// In matches any of values.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return q.addFilter(column, "in.("+strings.Join(quoted, ",")+")")
}

// Overlaps matches array columns sharing at least one element with values.
func (q *QueryBuilder) Overlaps(column string, values []string) *QueryBuilder {
	return q.addFilter(column, "ov."+ArrayLiteral(values))
}

// Or adds a disjunction, e.g. Or(`title.ilike."*lamp*"`, `description.ilike."*lamp*"`).
func (q *QueryBuilder) Or(conditions ...string) *QueryBuilder {
	return q.addFilter("or", "("+strings.Join(conditions, ",")+")")
}

func (q *QueryBuilder) Order(column string, dir OrderDirection) *QueryBuilder {
	q.orders = append(q.orders, column+"."+string(dir))
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = &n
	return q
}

func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = &n
	return q
}

// Range selects rows from..to inclusive. It is expressed as offset/limit so an
// out-of-range page yields an empty result instead of 416.
func (q *QueryBuilder) Range(from, to int) *QueryBuilder {
	q.Offset(from)
	return q.Limit(to - from + 1)
}

// Count requests the exact total number of matching rows.
func (q *QueryBuilder) Count() *QueryBuilder {
	q.count = true
	return q
}

func (q *QueryBuilder) Execute(ctx context.Context) (*Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	headers := make(map[string]string, len(q.headers))
	for k, v := range q.headers {
		headers[k] = v
	}
	if q.count {
		headers["Prefer"] = appendPrefer(headers["Prefer"], "count=exact")
	}

	resp, err := q.client.do(ctx, "rest", q.method, q.URL(), q.body, headers)
	if err != nil {
		return nil, err
	}

	result := &Result{Data: resp.body, Count: -1}
	if q.count {
		result.Count = parseContentRange(resp.header.Get("Content-Range"))
	}
	return result, nil
}

// ExecuteInto runs the query and decodes the body into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest interface{}) error {
	_, err := q.ExecuteCount(ctx, dest)
	return err
}

// ExecuteCount runs the query, decodes the body into dest and returns the row count.
func (q *QueryBuilder) ExecuteCount(ctx context.Context, dest interface{}) (int, error) {
	res, err := q.Execute(ctx)
	if err != nil {
		return 0, err
	}
	if err := decode(res.Data, dest); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// URL returns the request URL the builder would use.
func (q *QueryBuilder) URL() string {
	params := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if q.method == http.MethodGet || q.headers["Prefer"] != "" {
		params.Set("select", q.columns)
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit != nil {
		params.Set("limit", strconv.Itoa(*q.limit))
	}
	if q.offset != nil {
		params.Set("offset", strconv.Itoa(*q.offset))
	}
	u := q.client.restURL + "/" + url.PathEscape(q.table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Quote wraps v in double quotes for use inside PostgREST lists and or-groups,
// where commas, dots and parentheses are reserved.
func Quote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

// ArrayLiteral renders values as a Postgres array literal: {"a","b"}.
func ArrayLiteral(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = Quote(v)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// parseContentRange extracts the total from "0-19/57" or "*/0". Unknown totals yield -1.
func parseContentRange(h string) int {
	i := strings.LastIndex(h, "/")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return -1
	}
	return n
}

func appendPrefer(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "," + addition
}
