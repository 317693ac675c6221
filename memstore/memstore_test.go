package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/potato/api"
)

type notFoundError interface {
	IsNotFound() bool
}

type conflictError interface {
	IsConflict() bool
}

func byName() View {
	return View{Design: "user", Name: "by_name", Map: ByType("User", "name"), Reduce: Count}
}

func seed(t *testing.T, s *Store, names ...string) []string {
	var ids []string
	for _, n := range names {
		res, err := s.SaveDocument(context.Background(), map[string]interface{}{"type": "User", "name": n})
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}
	return ids
}

func TestInfo(t *testing.T) {
	s := New("test")
	seed(t, s, "alice")

	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.DatabaseInfo{Name: "test", DocCount: 1}, info)

	s.SetMissing(true)
	_, err = s.Info(context.Background())
	require.Error(t, err)
	_, ok := err.(notFoundError)
	assert.True(t, ok)
}

func TestSaveAndGet(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	res, err := s.SaveDocument(ctx, map[string]interface{}{"type": "User", "name": "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Regexp(t, "^1-", res.Rev)

	doc, err := s.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, doc["_id"])
	assert.Equal(t, res.Rev, doc["_rev"])
	assert.Equal(t, "alice", doc["name"])

	doc["name"] = "mallory"
	again, err := s.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again["name"], "stored documents are not shared")

	_, err = s.Get(ctx, "unknown")
	_, ok := err.(notFoundError)
	assert.True(t, ok)
}

func TestRevisionConflicts(t *testing.T) {
	s := New("test")
	ctx := context.Background()

	res, err := s.SaveDocument(ctx, map[string]interface{}{"_id": "u1", "type": "User"})
	require.NoError(t, err)

	_, err = s.SaveDocument(ctx, map[string]interface{}{"_id": "u1", "type": "User"})
	_, ok := err.(conflictError)
	assert.True(t, ok, "missing revision")

	_, err = s.SaveDocument(ctx, map[string]interface{}{"_id": "u1", "_rev": "9-z", "type": "User"})
	_, ok = err.(conflictError)
	assert.True(t, ok, "stale revision")

	_, err = s.SaveDocument(ctx, map[string]interface{}{"_id": "u2", "_rev": "1-a", "type": "User"})
	_, ok = err.(conflictError)
	assert.True(t, ok, "revision of an unknown document")

	updated, err := s.SaveDocument(ctx, map[string]interface{}{"_id": "u1", "_rev": res.Rev, "type": "User"})
	require.NoError(t, err)
	assert.Regexp(t, "^2-", updated.Rev)
	assert.Equal(t, 2, s.Writes())
}

func TestDelete(t *testing.T) {
	s := New("test")
	ctx := context.Background()
	res, err := s.SaveDocument(ctx, map[string]interface{}{"_id": "u1", "type": "User"})
	require.NoError(t, err)

	err = s.DeleteDocument(ctx, map[string]interface{}{"_id": "u1", "_rev": "0-stale"})
	_, ok := err.(conflictError)
	assert.True(t, ok)

	require.NoError(t, s.DeleteDocument(ctx, map[string]interface{}{"_id": "u1", "_rev": res.Rev}))
	_, err = s.Get(ctx, "u1")
	_, ok = err.(notFoundError)
	assert.True(t, ok)

	err = s.DeleteDocument(ctx, map[string]interface{}{"_id": "u1", "_rev": res.Rev})
	_, ok = err.(notFoundError)
	assert.True(t, ok)
}

func TestSaveDeletedDocument(t *testing.T) {
	s := New("test")
	ctx := context.Background()
	res, err := s.SaveDocument(ctx, map[string]interface{}{"_id": "u1", "type": "User"})
	require.NoError(t, err)

	_, err = s.SaveDocument(ctx, map[string]interface{}{"_id": "u1", "_rev": res.Rev, "_deleted": true})
	require.NoError(t, err)

	_, err = s.Get(ctx, "u1")
	assert.Error(t, err)
}

func TestQueryUnknownView(t *testing.T) {
	s := New("test")
	_, err := s.QueryView(context.Background(), api.ViewQuery{Design: "user", View: "all"})
	_, ok := err.(notFoundError)
	assert.True(t, ok)

	_, recorded := s.DesignDocument("user")
	assert.True(t, recorded)
}

func keysOf(rows []api.Row) []interface{} {
	var keys []interface{}
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	return keys
}

func TestQueryParams(t *testing.T) {
	s := New("test", byName())
	seed(t, s, "carol", "alice", "bob", "dave")
	_, err := s.SaveDocument(context.Background(), map[string]interface{}{"type": "Post", "name": "zed"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		params map[string]interface{}
		keys   []interface{}
	}{
		{"all", map[string]interface{}{"reduce": false}, []interface{}{"alice", "bob", "carol", "dave"}},
		{"key", map[string]interface{}{"reduce": false, "key": "bob"}, []interface{}{"bob"}},
		{"keys keep their order", map[string]interface{}{"reduce": false, "keys": []interface{}{"dave", "alice", "nobody"}}, []interface{}{"dave", "alice"}},
		{"range", map[string]interface{}{"reduce": false, "startkey": "b", "endkey": "d"}, []interface{}{"bob", "carol"}},
		{"descending", map[string]interface{}{"reduce": false, "descending": true, "startkey": "carol"}, []interface{}{"carol", "bob", "alice"}},
		{"skip and limit", map[string]interface{}{"reduce": false, "skip": 1, "limit": float64(2)}, []interface{}{"bob", "carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.QueryView(context.Background(), api.ViewQuery{Design: "user", View: "by_name", Params: tt.params})
			require.NoError(t, err)
			assert.Equal(t, tt.keys, keysOf(res.Rows))
			require.NotNil(t, res.TotalRows)
			assert.Equal(t, 4, *res.TotalRows)
		})
	}
}

func TestQueryIncludeDocs(t *testing.T) {
	s := New("test", byName())
	ids := seed(t, s, "alice")

	res, err := s.QueryView(context.Background(), api.ViewQuery{
		Design: "user",
		View:   "by_name",
		Params: map[string]interface{}{"reduce": false, "include_docs": true},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, ids[0], res.Rows[0].ID)
	assert.Equal(t, "alice", res.Rows[0].Doc["name"])
}

func TestQueryReduce(t *testing.T) {
	s := New("test", byName())
	seed(t, s, "alice", "bob", "alice")

	res, err := s.QueryView(context.Background(), api.ViewQuery{Design: "user", View: "by_name"})
	require.NoError(t, err)
	assert.Equal(t, []api.Row{{Key: nil, Value: float64(3)}}, res.Rows)
	assert.Nil(t, res.TotalRows)

	res, err = s.QueryView(context.Background(), api.ViewQuery{
		Design: "user",
		View:   "by_name",
		Params: map[string]interface{}{"group": true},
	})
	require.NoError(t, err)
	assert.Equal(t, []api.Row{
		{Key: "alice", Value: float64(2)},
		{Key: "bob", Value: float64(1)},
	}, res.Rows)
}

func TestSum(t *testing.T) {
	assert.Equal(t, 6.5, Sum(nil, []interface{}{1, 2.5, float64(3), "x", nil}))
}

func TestCollate(t *testing.T) {
	ordered := []interface{}{
		nil,
		false,
		true,
		-1,
		2.5,
		"a",
		"b",
		[]interface{}{"a"},
		[]interface{}{"a", 1},
		map[string]interface{}{"a": 1},
	}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Negative(t, collate(ordered[i], ordered[i+1]), "%v < %v", ordered[i], ordered[i+1])
		assert.Positive(t, collate(ordered[i+1], ordered[i]), "%v > %v", ordered[i+1], ordered[i])
	}
	assert.Zero(t, collate(1, float64(1)))
}
