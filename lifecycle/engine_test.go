package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/potato/api"
)

type journal []string

type stubStore struct {
	api.Store
	log     *journal
	saved   []map[string]interface{}
	deleted []map[string]interface{}
	revs    int
	err     error
}

func (s *stubStore) SaveDocument(ctx context.Context, doc map[string]interface{}) (api.SaveResult, error) {
	*s.log = append(*s.log, "store:save")
	s.saved = append(s.saved, doc)
	if s.err != nil {
		return api.SaveResult{}, s.err
	}
	s.revs++
	id, _ := doc[api.IDField].(string)
	if id == "" {
		id = "generated"
	}
	return api.SaveResult{ID: id, Rev: fmt.Sprintf("%d-x", s.revs)}, nil
}

func (s *stubStore) DeleteDocument(ctx context.Context, doc map[string]interface{}) error {
	*s.log = append(*s.log, "store:delete")
	s.deleted = append(s.deleted, doc)
	return s.err
}

func recordingModel(docType string, log *journal) *Model {
	m := &Model{Type: docType}
	for _, p := range Phases {
		p := p
		m.Callbacks.On(p, func(ctx context.Context, doc *api.Document) error {
			*log = append(*log, string(p))
			return nil
		})
	}
	return m
}

func newEngine(models ...*Model) (*Engine, *stubStore, *journal) {
	log := &journal{}
	store := &stubStore{log: log}
	return NewEngine(store, NewRegistry(models...), nil), store, log
}

func TestSaveNewDocument(t *testing.T) {
	e, store, log := newEngine()
	e.registry.Register(recordingModel("User", log))
	doc := api.New("User", map[string]interface{}{"name": "alice"})
	doc.Errors().Add("name", "stale")

	ok, err := e.Save(context.Background(), doc, true)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, journal{
		"before_validation_on_save",
		"before_validation_on_create",
		"before_save",
		"before_create",
		"store:save",
		"after_save",
		"after_create",
	}, *log)
	assert.Equal(t, "generated", doc.ID())
	assert.Equal(t, "1-x", doc.Rev())
	assert.False(t, doc.IsDirty())
	assert.True(t, doc.Errors().Empty(), "errors are cleared before validating")
	assert.Equal(t, map[string]interface{}{"name": "alice", "type": "User"}, store.saved[0])
}

func TestSaveExistingDocument(t *testing.T) {
	e, store, log := newEngine()
	e.registry.Register(recordingModel("User", log))
	doc := api.FromMap(map[string]interface{}{"_id": "u1", "_rev": "1-a", "type": "User", "name": "alice"})
	doc.Set("name", "bob")

	ok, err := e.Save(context.Background(), doc, true)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, journal{
		"before_validation_on_save",
		"before_validation_on_update",
		"before_save",
		"before_update",
		"store:save",
		"after_save",
		"after_update",
	}, *log)
	assert.Equal(t, "u1", doc.ID())
	assert.Equal(t, "1-x", doc.Rev())
	assert.False(t, doc.IsDirty())
	assert.Equal(t, "1-a", store.saved[0]["_rev"], "the held revision is sent")
}

func TestSaveCleanDocumentIsANoop(t *testing.T) {
	e, store, log := newEngine()
	e.registry.Register(recordingModel("User", log))
	doc := api.FromMap(map[string]interface{}{"_id": "u1", "_rev": "1-a", "type": "User"})

	ok, err := e.Save(context.Background(), doc, true)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, *log)
	assert.Empty(t, store.saved)
}

func TestSaveStopsAtTheValidationGate(t *testing.T) {
	e, store, log := newEngine()
	m := recordingModel("User", log)
	m.Validator = ValidatorFunc(func(ctx context.Context, doc *api.Document) error {
		*log = append(*log, "validate")
		doc.Errors().Add("name", "can't be blank")
		return nil
	})
	e.registry.Register(m)
	doc := api.New("User", nil)

	ok, err := e.Save(context.Background(), doc, true)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, journal{"before_validation_on_save", "before_validation_on_create", "validate"}, *log)
	assert.Empty(t, store.saved)
	assert.Equal(t, []string{"Name can't be blank"}, doc.Errors().FullMessages())
	assert.True(t, doc.IsNew())
}

func TestValidationKeepsCallbackErrors(t *testing.T) {
	e, store, _ := newEngine()
	m := &Model{Type: "User"}
	m.Callbacks.On(BeforeValidationOnSave, func(ctx context.Context, doc *api.Document) error {
		doc.Errors().Add("", "locked")
		return nil
	})
	m.Validator = ValidatorFunc(func(ctx context.Context, doc *api.Document) error {
		assert.True(t, doc.Errors().Empty(), "validator starts from a clean collection")
		doc.Errors().Add("name", "can't be blank")
		return nil
	})
	e.registry.Register(m)
	doc := api.New("User", nil)

	ok, err := e.Save(context.Background(), doc, true)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, store.saved)
	assert.Equal(t, []string{"Name can't be blank", "locked"}, doc.Errors().FullMessages())
}

func TestCallbackErrorsAloneFailValidation(t *testing.T) {
	e, store, _ := newEngine()
	m := &Model{Type: "User"}
	m.Callbacks.On(BeforeValidationOnCreate, func(ctx context.Context, doc *api.Document) error {
		doc.Errors().Add("", "locked")
		return nil
	})
	e.registry.Register(m)

	ok, err := e.Save(context.Background(), api.New("User", nil), true)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, store.saved)
}

func TestSaveWithoutValidation(t *testing.T) {
	e, _, log := newEngine()
	m := recordingModel("User", log)
	m.Validator = ValidatorFunc(func(ctx context.Context, doc *api.Document) error {
		doc.Errors().Add("name", "can't be blank")
		return nil
	})
	e.registry.Register(m)

	ok, err := e.Save(context.Background(), api.New("User", nil), false)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, journal{"before_save", "before_create", "store:save", "after_save", "after_create"}, *log)
}

func TestValidatorFailure(t *testing.T) {
	e, store, _ := newEngine(&Model{
		Type: "User",
		Validator: ValidatorFunc(func(ctx context.Context, doc *api.Document) error {
			return errors.New("bad rule")
		}),
	})

	ok, err := e.Save(context.Background(), api.New("User", nil), true)

	assert.False(t, ok)
	assert.EqualError(t, err, "unable to validate User document: bad rule")
	assert.Empty(t, store.saved)
}

func TestStoreErrorsPropagateUnchanged(t *testing.T) {
	e, store, log := newEngine()
	e.registry.Register(recordingModel("User", log))
	conflict := errors.New("conflict")
	store.err = conflict
	doc := api.FromMap(map[string]interface{}{"_id": "u1", "_rev": "1-a", "type": "User"})
	doc.Set("name", "bob")

	ok, err := e.Save(context.Background(), doc, true)

	assert.False(t, ok)
	assert.Same(t, conflict, err)
	assert.Len(t, store.saved, 1, "no retry")
	assert.Equal(t, "1-a", doc.Rev())
	assert.True(t, doc.IsDirty())
	assert.NotContains(t, *log, "after_save")
}

func TestCallbackErrorAbortsSave(t *testing.T) {
	e, store, _ := newEngine()
	m := &Model{Type: "User"}
	m.Callbacks.On(BeforeCreate, func(ctx context.Context, doc *api.Document) error {
		return errors.New("refused")
	})
	e.registry.Register(m)

	ok, err := e.Save(context.Background(), api.New("User", nil), true)

	assert.False(t, ok)
	assert.EqualError(t, err, "refused")
	assert.Empty(t, store.saved)
}

func TestStoreReturningIncompleteIdentity(t *testing.T) {
	e, store, _ := newEngine()
	store.err = nil
	doc := api.New("User", nil)
	bad := &incompleteStore{}
	e.store = bad

	_, err := e.Save(context.Background(), doc, true)

	assert.Error(t, err)
	assert.True(t, doc.IsNew())
	assert.Empty(t, store.saved)
}

type incompleteStore struct{ api.Store }

func (incompleteStore) SaveDocument(ctx context.Context, doc map[string]interface{}) (api.SaveResult, error) {
	return api.SaveResult{ID: "u1"}, nil
}

func TestDestroy(t *testing.T) {
	e, store, log := newEngine()
	e.registry.Register(recordingModel("User", log))
	doc := api.FromMap(map[string]interface{}{"_id": "u1", "_rev": "2-a", "type": "User", "name": "alice"})

	require.NoError(t, e.Destroy(context.Background(), doc))

	assert.Equal(t, journal{"before_destroy", "store:delete", "after_destroy"}, *log)
	assert.Equal(t, map[string]interface{}{
		"_id": "u1", "_rev": "2-a", "_deleted": true, "type": "User", "name": "alice",
	}, store.deleted[0])
	assert.Empty(t, doc.ID())
	assert.Empty(t, doc.Rev())
	assert.Equal(t, "alice", doc.Get("name"))
	assert.True(t, doc.Deleted())
}

func TestDestroyNewDocument(t *testing.T) {
	e, store, _ := newEngine()

	err := e.Destroy(context.Background(), api.New("User", nil))

	assert.Equal(t, ErrNotPersisted, err)
	assert.Empty(t, store.deleted)
}

func TestDestroyFailureKeepsIdentity(t *testing.T) {
	e, store, log := newEngine()
	e.registry.Register(recordingModel("User", log))
	store.err = errors.New("conflict")
	doc := api.FromMap(map[string]interface{}{"_id": "u1", "_rev": "2-a", "type": "User"})

	err := e.Destroy(context.Background(), doc)

	assert.Same(t, store.err, err)
	assert.Equal(t, "u1", doc.ID())
	assert.Equal(t, journal{"before_destroy", "store:delete"}, *log)
}

func TestDestroyFailureClearsDeletionMarker(t *testing.T) {
	e, store, _ := newEngine(&Model{Type: "User"})
	store.err = errors.New("conflict")
	doc := api.FromMap(map[string]interface{}{"_id": "u1", "_rev": "2-a", "type": "User", "name": "alice"})

	require.Error(t, e.Destroy(context.Background(), doc))
	assert.False(t, doc.Deleted())

	store.err = nil
	doc.Set("name", "bob")
	ok, err := e.Save(context.Background(), doc, true)

	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, store.saved, 1)
	assert.NotContains(t, store.saved[0], "_deleted")
}

func TestAfterDestroyErrorClearsIdentity(t *testing.T) {
	failure := errors.New("audit unavailable")
	m := &Model{Type: "User"}
	m.Callbacks.On(AfterDestroy, func(ctx context.Context, doc *api.Document) error {
		return failure
	})
	e, store, log := newEngine(m)
	doc := api.FromMap(map[string]interface{}{"_id": "u1", "_rev": "2-a", "type": "User"})

	err := e.Destroy(context.Background(), doc)

	assert.Same(t, failure, err)
	assert.Equal(t, journal{"store:delete"}, *log)
	assert.Len(t, store.deleted, 1)
	assert.Empty(t, doc.ID())
	assert.Empty(t, doc.Rev())
}

func TestOnUnknownPhasePanics(t *testing.T) {
	var c Callbacks
	assert.Panics(t, func() {
		c.On(Phase("around_save"), func(ctx context.Context, doc *api.Document) error { return nil })
	})
}

func TestCallbacksRunInRegistrationOrder(t *testing.T) {
	var c Callbacks
	var order []int
	c.On(BeforeSave, func(ctx context.Context, doc *api.Document) error {
		order = append(order, 1)
		return nil
	}).On(BeforeSave, func(ctx context.Context, doc *api.Document) error {
		order = append(order, 2)
		return nil
	})

	require.NoError(t, c.Run(context.Background(), BeforeSave, api.New("User", nil)))
	assert.Equal(t, []int{1, 2}, order)
}
