package memstore

import (
	"reflect"
	"sort"
	"strings"

	"github.com/xdbsoft/potato/api"
)

// Emitter collects the key/value pairs of a map function.
type Emitter interface {
	Emit(key, value interface{})
}

// MapFunc is the Go counterpart of a view map function. It must have no side effects.
type MapFunc func(emitter Emitter, doc map[string]interface{})

// ReduceFunc aggregates the emitted values of one group.
type ReduceFunc func(keys, values []interface{}) interface{}

// View is a Go view, registered under its design document and name.
type View struct {
	Design string
	Name   string
	Map    MapFunc
	Reduce ReduceFunc
}

// ByType emits the documents of docType keyed by the given property, or by id
// when property is empty.
func ByType(docType, property string) MapFunc {
	return func(emitter Emitter, doc map[string]interface{}) {
		if doc[api.TypeField] != docType {
			return
		}
		if property == "" {
			emitter.Emit(doc[api.IDField], nil)
			return
		}
		emitter.Emit(doc[property], nil)
	}
}

// Count counts the rows of a group, like the _count builtin.
func Count(keys, values []interface{}) interface{} {
	return float64(len(values))
}

// Sum adds the numeric values of a group, like the _sum builtin.
func Sum(keys, values []interface{}) interface{} {
	total := 0.0
	for _, v := range values {
		if f, ok := toFloat(v); ok {
			total += f
		}
	}
	return total
}

type rowEmitter struct {
	id   string
	rows []api.Row
}

func (em *rowEmitter) Emit(key, value interface{}) {
	em.rows = append(em.rows, api.Row{ID: em.id, Key: key, Value: value})
}

func (s *Store) query(v View, rows []api.Row, params map[string]interface{}) api.ViewResult {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := collate(rows[i].Key, rows[j].Key); c != 0 {
			return c < 0
		}
		return rows[i].ID < rows[j].ID
	})
	total := len(rows)

	descending, _ := params["descending"].(bool)
	if descending {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	rows = selectRows(rows, params, descending)

	if reduce, ok := params["reduce"].(bool); v.Reduce != nil && (!ok || reduce) {
		group, _ := params["group"].(bool)
		return api.ViewResult{Rows: reduceRows(v.Reduce, rows, group)}
	}

	rows = window(rows, params)
	if includeDocs, _ := params["include_docs"].(bool); includeDocs {
		for i := range rows {
			if doc, ok := s.docs[rows[i].ID]; ok {
				rows[i].Doc = clone(doc)
			}
		}
	}
	return api.ViewResult{Rows: rows, TotalRows: &total}
}

func selectRows(rows []api.Row, params map[string]interface{}, descending bool) []api.Row {
	if keys, ok := params["keys"]; ok {
		var out []api.Row
		for _, k := range toSlice(keys) {
			for _, r := range rows {
				if collate(r.Key, k) == 0 {
					out = append(out, r)
				}
			}
		}
		return out
	}

	key, hasKey := params["key"]
	start, hasStart := params["startkey"]
	end, hasEnd := params["endkey"]
	out := make([]api.Row, 0, len(rows))
	for _, r := range rows {
		if hasKey && collate(r.Key, key) != 0 {
			continue
		}
		if hasStart && !descending && collate(r.Key, start) < 0 {
			continue
		}
		if hasStart && descending && collate(r.Key, start) > 0 {
			continue
		}
		if hasEnd && !descending && collate(r.Key, end) > 0 {
			continue
		}
		if hasEnd && descending && collate(r.Key, end) < 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func window(rows []api.Row, params map[string]interface{}) []api.Row {
	if skip, ok := toInt(params["skip"]); ok && skip > 0 {
		if skip > len(rows) {
			skip = len(rows)
		}
		rows = rows[skip:]
	}
	if limit, ok := toInt(params["limit"]); ok && limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func reduceRows(fn ReduceFunc, rows []api.Row, group bool) []api.Row {
	if len(rows) == 0 {
		return []api.Row{}
	}
	if !group {
		keys, values := split(rows)
		return []api.Row{{Key: nil, Value: fn(keys, values)}}
	}
	var out []api.Row
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && collate(rows[end].Key, rows[start].Key) == 0 {
			end++
		}
		keys, values := split(rows[start:end])
		out = append(out, api.Row{Key: rows[start].Key, Value: fn(keys, values)})
		start = end
	}
	return out
}

func split(rows []api.Row) (keys, values []interface{}) {
	for _, r := range rows {
		keys = append(keys, r.Key)
		values = append(values, r.Value)
	}
	return keys, values
}

// collate orders keys the way CouchDB does: null, booleans, numbers, strings,
// arrays, objects.
func collate(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	case 4:
		sa, sb := toSlice(a), toSlice(b)
		for i := 0; i < len(sa) && i < len(sb); i++ {
			if c := collate(sa[i], sb[i]); c != 0 {
				return c
			}
		}
		return len(sa) - len(sb)
	}
	return 0
}

func rank(v interface{}) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := v.(string); ok {
		return 3
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return 4
	}
	return 5
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toInt(v interface{}) (int, bool) {
	f, ok := toFloat(v)
	return int(f), ok
}

func toSlice(v interface{}) []interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
