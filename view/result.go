package view

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/xdbsoft/potato/api"
)

// Mode tells which field of a Result holds the outcome.
type Mode int

const (
	ModeRows Mode = iota
	ModeValue
	ModeDocuments
)

// Result is the processed outcome of a view query.
//
// A reduce query returning a single row yields the bare value of that row in
// Value, not a one element Rows. Callers rely on it for the common
// single-group reduce (counts, sums).
type Result struct {
	Mode      Mode
	Value     interface{}
	Rows      []api.Row
	Documents []*api.Document

	// TotalRows is the row count reported by the store for map queries. It is
	// not the number of elements of the result when the query is paginated.
	TotalRows    int
	HasTotalRows bool
}

// Process interprets raw rows according to the mode of the view.
func (s Spec) Process(res api.ViewResult) *Result {
	r := &Result{}
	switch {
	case s.ReduceMode():
		if len(res.Rows) == 1 {
			r.Mode = ModeValue
			r.Value = res.Rows[0].Value
		} else {
			r.Mode = ModeRows
			r.Rows = res.Rows
		}
	case s.opts.Kind == Properties:
		r.Mode = ModeDocuments
		r.Documents = make([]*api.Document, 0, len(res.Rows))
		for _, row := range res.Rows {
			if m, ok := row.Value.(map[string]interface{}); ok {
				r.Documents = append(r.Documents, api.FromMap(m))
			}
		}
	case s.includesDocs() || carriesDocs(res.Rows):
		r.Mode = ModeDocuments
		r.Documents = make([]*api.Document, 0, len(res.Rows))
		for _, row := range res.Rows {
			// deleted or missing documents come back as null
			if row.Doc != nil {
				r.Documents = append(r.Documents, api.FromMap(row.Doc))
			}
		}
	default:
		r.Mode = ModeRows
		r.Rows = res.Rows
	}

	if res.TotalRows != nil {
		r.TotalRows = *res.TotalRows
		r.HasTotalRows = true
	}
	return r
}

func (s Spec) includesDocs() bool {
	v, _ := s.params["include_docs"].(bool)
	return v
}

func carriesDocs(rows []api.Row) bool {
	for _, row := range rows {
		if row.Doc != nil {
			return true
		}
	}
	return false
}

// Len is the number of elements of the result.
func (r *Result) Len() int {
	switch r.Mode {
	case ModeValue:
		return 1
	case ModeDocuments:
		return len(r.Documents)
	}
	return len(r.Rows)
}

// Items returns the elements of the result whatever its mode.
func (r *Result) Items() []interface{} {
	switch r.Mode {
	case ModeValue:
		return []interface{}{r.Value}
	case ModeDocuments:
		items := make([]interface{}, len(r.Documents))
		for i, d := range r.Documents {
			items[i] = d
		}
		return items
	}
	items := make([]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		items[i] = row
	}
	return items
}

// DecodeDocuments decodes the documents of the result into v, a pointer to a slice.
func (r *Result) DecodeDocuments(v interface{}) error {
	if r.Mode != ModeDocuments {
		return errors.New("view result does not hold documents")
	}
	maps := make([]map[string]interface{}, len(r.Documents))
	for i, d := range r.Documents {
		maps[i] = d.ToMap()
	}
	b, err := json.Marshal(maps)
	if err != nil {
		return errors.Wrap(err, "unable to encode documents")
	}
	return errors.Wrap(json.Unmarshal(b, v), "unable to decode documents")
}
