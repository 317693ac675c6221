package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/potato/api"
	"github.com/xdbsoft/potato/view"
)

func TestViewFlagsSpec(t *testing.T) {
	spec, err := viewFlags{
		docType:  "User",
		name:     "by_age",
		keyBy:    []string{"age"},
		startKey: "18",
		endKey:   "65",
		limit:    5,
	}.spec()

	require.NoError(t, err)
	assert.Equal(t, "user", spec.DesignDocument())
	assert.Equal(t, view.Params{
		"startkey":     float64(18),
		"endkey":       float64(65),
		"limit":        5,
		"include_docs": true,
	}, spec.Params())
	assert.Contains(t, spec.MapFunction(), "emit(doc['age'], null);")
}

func TestViewFlagsSpecStartKeyOnly(t *testing.T) {
	spec, err := viewFlags{docType: "User", name: "by_age", keyBy: []string{"age"}, startKey: "18"}.spec()

	require.NoError(t, err)
	assert.Equal(t, view.Params{"startkey": float64(18), "include_docs": true}, spec.Params())
}

func TestViewFlagsSpecKinds(t *testing.T) {
	spec, err := viewFlags{docType: "User", name: "names", properties: []string{"name"}, keys: []string{"a", "[1,2]"}}.spec()
	require.NoError(t, err)
	assert.Equal(t, view.Properties, spec.Kind())
	assert.Equal(t, view.Params{"keys": []interface{}{"a", []interface{}{float64(1), float64(2)}}}, spec.Params())

	spec, err = viewFlags{docType: "User", name: "count", reduce: "_count", raw: true}.spec()
	require.NoError(t, err)
	assert.Equal(t, view.Raw, spec.Kind())
	assert.True(t, spec.ReduceMode())

	_, err = viewFlags{name: "all"}.spec()
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	res := &view.Result{Mode: view.ModeRows, Rows: []api.Row{{ID: "u1", Key: "alice", Value: 1}}, TotalRows: 3, HasTotalRows: true}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "yaml", printable(res)))
	assert.Contains(t, buf.String(), "- id: u1\n")
	assert.Contains(t, buf.String(), "key: alice\n")
	assert.Contains(t, buf.String(), "total_rows: 3\n")

	buf.Reset()
	require.NoError(t, render(&buf, "json", printable(&view.Result{Mode: view.ModeValue, Value: 2})))
	assert.JSONEq(t, `{"value": 2}`, buf.String())

	assert.Error(t, render(&buf, "xml", nil))
}
