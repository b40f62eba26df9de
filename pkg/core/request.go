package core

import (
	"maps"
	"net/url"
	"slices"
	"strings"
)

// Params is a canonical parameter set. Keys are unique; Encode always
// serializes them in ascending lexicographic order.
type Params map[string]string

// Clone returns a copy that can be mutated without touching p.
func (p Params) Clone() Params {
	out := make(Params, len(p)+2)
	maps.Copy(out, p)
	return out
}

// Encode serializes the set as k1=v1&k2=v2 with keys sorted.
// The result is both the signed payload and the transmitted query.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(p))

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[k]))
	}
	return b.String()
}

// Request describes one venue call before it is signed and dispatched.
type Request struct {
	Operation   Operation `json:"operation"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Query       Params    `json:"query,omitempty"`
	Body        string    `json:"body,omitempty"`
	RequireAuth bool      `json:"require_auth"`
}

func NewRequest(op Operation, method, path string) *Request {
	return &Request{
		Operation: op,
		Method:    method,
		Path:      path,
		Query:     make(Params),
	}
}

func (r *Request) SetQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}
