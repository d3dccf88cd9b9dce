// Package search provides the credential search index used for duplicate
// detection: a small query builder and an in-memory index that executes it.
package search

import "strings"

// Record types held by the index.
const (
	TypePassword = "password"
	TypeFolder   = "folder"
)

// Record is an indexed credential or folder.
type Record struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Username string `json:"username"`
	Password string `json:"password"`
	URL      string `json:"url"`
	Folder   string `json:"folder,omitempty"`
	Hidden   bool   `json:"hidden"`
}

// Value returns the string value of a named field, or "" for unknown fields.
func (r Record) Value(field string) string {
	switch strings.ToLower(field) {
	case "id":
		return r.ID
	case "type":
		return r.Type
	case "label":
		return r.Label
	case "username":
		return r.Username
	case "password":
		return r.Password
	case "url":
		return r.URL
	case "folder":
		return r.Folder
	default:
		return ""
	}
}

type op int

const (
	opEquals op = iota
	opIn
)

// Condition is a predicate on one record field.
type Condition struct {
	field  string
	op     op
	values []string
}

// Matches reports whether r satisfies the condition.
func (c Condition) Matches(r Record) bool {
	v := r.Value(c.field)
	switch c.op {
	case opEquals:
		return len(c.values) == 1 && v == c.values[0]
	case opIn:
		for _, want := range c.values {
			if v == want {
				return true
			}
		}
	}
	return false
}

// Field starts a condition on the named field.
type Field string

// Equals matches records whose field is exactly v.
func (f Field) Equals(v string) Condition {
	return Condition{field: string(f), op: opEquals, values: []string{v}}
}

// In matches records whose field is one of vs. An empty set matches nothing.
func (f Field) In(vs ...string) Condition {
	return Condition{field: string(f), op: opIn, values: append([]string(nil), vs...)}
}

// Query is a conjunction of conditions with an optional type filter and limit.
type Query struct {
	conds []Condition
	typ   string
	limit int
}

// NewQuery returns an empty query that matches every record.
func NewQuery() *Query { return &Query{} }

// Where adds a condition. All conditions must hold.
func (q *Query) Where(c Condition) *Query {
	q.conds = append(q.conds, c)
	return q
}

// Type restricts results to records of type t.
func (q *Query) Type(t string) *Query {
	q.typ = t
	return q
}

// Limit caps the number of results; 0 means no limit.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		n = 0
	}
	q.limit = n
	return q
}

// Matches reports whether r satisfies the type filter and every condition.
func (q *Query) Matches(r Record) bool {
	if q.typ != "" && r.Type != q.typ {
		return false
	}
	for _, c := range q.conds {
		if !c.Matches(r) {
			return false
		}
	}
	return true
}
