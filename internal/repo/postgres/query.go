package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ListOptions carries filter, sort and pagination settings parsed from a
// request query string. Column names are validated against a whitelist at
// parse time so the later SQL assembly never sees free-form input.
type ListOptions struct {
	Filters []Filter
	Sort    []SortField
	Page    int
	Limit   int
}

type Filter struct {
	Column string
	Op     string // one of =, >, >=, <, <=
	Value  string
}

type SortField struct {
	Column string
	Desc   bool
}

var filterOps = map[string]string{
	"":    "=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

const (
	defaultLimit = 100
	maxLimit     = 500
)

// ParseListOptions reads page, limit, sort and column filters from q.
// Filters use the column name as the key, optionally suffixed with an
// operator: price_cents[lte]=50000. Sort is a comma list where a leading
// "-" means descending: sort=-price_cents,name.
func ParseListOptions(q url.Values, allowed map[string]bool) (*ListOptions, error) {
	opts := &ListOptions{Page: 1, Limit: defaultLimit}

	for key, values := range q {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		value := values[0]

		switch key {
		case "page":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid page: %q", value)
			}
			opts.Page = n
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid limit: %q", value)
			}
			if n > maxLimit {
				n = maxLimit
			}
			opts.Limit = n
		case "sort":
			for _, field := range strings.Split(value, ",") {
				desc := strings.HasPrefix(field, "-")
				col := strings.TrimPrefix(field, "-")
				if !allowed[col] {
					return nil, fmt.Errorf("cannot sort by %q", col)
				}
				opts.Sort = append(opts.Sort, SortField{Column: col, Desc: desc})
			}
		case "fields":
			// Field limiting is a serialization concern; ignored here.
		default:
			col, op, err := parseFilterKey(key)
			if err != nil {
				return nil, err
			}
			if !allowed[col] {
				return nil, fmt.Errorf("cannot filter by %q", col)
			}
			opts.Filters = append(opts.Filters, Filter{Column: col, Op: op, Value: value})
		}
	}

	return opts, nil
}

func parseFilterKey(key string) (col, op string, err error) {
	if i := strings.IndexByte(key, '['); i >= 0 {
		if !strings.HasSuffix(key, "]") {
			return "", "", fmt.Errorf("malformed filter key: %q", key)
		}
		col = key[:i]
		name := key[i+1 : len(key)-1]
		sqlOp, ok := filterOps[name]
		if !ok {
			return "", "", fmt.Errorf("unknown filter operator: %q", name)
		}
		return col, sqlOp, nil
	}
	return key, "=", nil
}

// Where renders the filters as an AND-joined SQL fragment with placeholders
// starting at $next, plus the matching argument slice. An empty fragment is
// returned when there are no filters.
func (o *ListOptions) Where(next int) (string, []any) {
	if len(o.Filters) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(o.Filters))
	args := make([]any, 0, len(o.Filters))
	for _, f := range o.Filters {
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", f.Column, f.Op, next))
		args = append(args, f.Value)
		next++
	}
	return strings.Join(clauses, " AND "), args
}

// OrderBy renders the sort fields, falling back to the given default
// expression when no sort was requested.
func (o *ListOptions) OrderBy(fallback string) string {
	if len(o.Sort) == 0 {
		return fallback
	}
	parts := make([]string, 0, len(o.Sort))
	for _, s := range o.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, s.Column+" "+dir)
	}
	return strings.Join(parts, ", ")
}

func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}
