// Package memstore is an in-memory document store. It keeps revisions and
// detects conflicts like a CouchDB database, and runs views registered as Go
// functions in place of the javascript sent along the queries.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/xid"
	"github.com/tiendc/go-deepcopy"

	"github.com/xdbsoft/potato/api"
)

type notFound string

func (err notFound) IsNotFound() bool {
	return true
}
func (err notFound) Error() string {
	return string(err)
}

type conflict string

func (err conflict) IsConflict() bool {
	return true
}
func (err conflict) Error() string {
	return string(err)
}

// Store is an in-memory api.Store.
type Store struct {
	mu      sync.Mutex
	name    string
	missing bool
	docs    map[string]map[string]interface{}
	seq     map[string]int
	views   map[string]View
	designs map[string]api.ViewQuery
	writes  int
}

var _ api.Store = (*Store)(nil)

func New(name string, views ...View) *Store {
	s := &Store{
		name:    name,
		docs:    make(map[string]map[string]interface{}),
		seq:     make(map[string]int),
		views:   make(map[string]View),
		designs: make(map[string]api.ViewQuery),
	}
	for _, v := range views {
		s.AddView(v)
	}
	return s
}

// Name is the database name.
func (s *Store) Name() string {
	return s.name
}

// AddView registers the Go implementation of a view.
func (s *Store) AddView(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v.Design+"/"+v.Name] = v
}

// SetMissing makes the database behave as if it did not exist.
func (s *Store) SetMissing(missing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing = missing
}

// Writes counts the successful mutations.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// DesignDocument returns the last view definitions sent for a design document.
func (s *Store) DesignDocument(name string) (api.ViewQuery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.designs[name]
	return q, ok
}

func (s *Store) Info(ctx context.Context) (api.DatabaseInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing {
		return api.DatabaseInfo{}, notFound(fmt.Sprintf("database %s does not exist", s.name))
	}
	return api.DatabaseInfo{Name: s.name, DocCount: len(s.docs)}, nil
}

func (s *Store) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, notFound("document not found")
	}
	return clone(doc), nil
}

func (s *Store) SaveDocument(ctx context.Context, doc map[string]interface{}) (api.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := doc[api.IDField].(string)
	rev, _ := doc[api.RevField].(string)
	if id == "" {
		id = api.NextID()
	}

	if err := s.checkRevision(id, rev); err != nil {
		return api.SaveResult{}, err
	}

	s.seq[id]++
	newRev := fmt.Sprintf("%d-%s", s.seq[id], xid.New().String())
	s.writes++

	if deleted, _ := doc[api.DeletedField].(bool); deleted {
		delete(s.docs, id)
		return api.SaveResult{ID: id, Rev: newRev}, nil
	}

	stored := clone(doc)
	stored[api.IDField] = id
	stored[api.RevField] = newRev
	s.docs[id] = stored
	return api.SaveResult{ID: id, Rev: newRev}, nil
}

func (s *Store) DeleteDocument(ctx context.Context, doc map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, _ := doc[api.IDField].(string)
	rev, _ := doc[api.RevField].(string)
	if _, ok := s.docs[id]; !ok {
		return notFound("document not found")
	}
	if err := s.checkRevision(id, rev); err != nil {
		return err
	}
	delete(s.docs, id)
	s.seq[id]++
	s.writes++
	return nil
}

func (s *Store) checkRevision(id, rev string) error {
	existing, ok := s.docs[id]
	if !ok {
		if rev != "" {
			return conflict("document update conflict")
		}
		return nil
	}
	if existing[api.RevField] != rev {
		return conflict("document update conflict")
	}
	return nil
}

// QueryView runs the Go view registered under the design document and view
// names of q.
func (s *Store) QueryView(ctx context.Context, q api.ViewQuery) (api.ViewResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.designs[q.Design] = q
	v, ok := s.views[q.Design+"/"+q.View]
	if !ok {
		return api.ViewResult{}, notFound(fmt.Sprintf("missing view %s/%s", q.Design, q.View))
	}

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	em := &rowEmitter{}
	for _, id := range ids {
		em.id = id
		v.Map(em, clone(s.docs[id]))
	}
	return s.query(v, em.rows, q.Params), nil
}

func clone(doc map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(doc))
	if err := deepcopy.Copy(&c, &doc); err != nil {
		for k, v := range doc {
			c[k] = v
		}
	}
	return c
}
