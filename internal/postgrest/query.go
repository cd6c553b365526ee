package postgrest

import (
	"fmt"
	"net/url"
	"strconv"
)

// Filter is a column condition in the endpoint's grammar: column=operator.value.
type Filter struct {
	Column   string
	Operator string
	Value    string
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Filter {
	return Filter{column, "eq", fmt.Sprint(value)}
}

func (f Filter) String() string {
	return f.Column + "=" + f.Operator + "." + f.Value
}

// Query describes a read. Zero values are left out of the request.
type Query struct {
	Select  string
	Order   string
	Limit   int
	Filters []Filter
}

func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Select != "" {
		v.Set("select", q.Select)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	for _, f := range q.Filters {
		v.Add(f.Column, f.Operator+"."+f.Value)
	}
	return v
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}
