package lifecycle

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xdbsoft/potato/api"
)

// ErrNotPersisted is returned when destroying a document that has no identity.
var ErrNotPersisted = errors.New("document is not persisted")

type sequence struct {
	validation []Phase
	before     []Phase
	after      []Phase
}

var (
	createSequence = sequence{
		validation: []Phase{BeforeValidationOnSave, BeforeValidationOnCreate},
		before:     []Phase{BeforeSave, BeforeCreate},
		after:      []Phase{AfterSave, AfterCreate},
	}
	updateSequence = sequence{
		validation: []Phase{BeforeValidationOnSave, BeforeValidationOnUpdate},
		before:     []Phase{BeforeSave, BeforeUpdate},
		after:      []Phase{AfterSave, AfterUpdate},
	}
)

// Engine runs the mutation protocol of documents against a store.
type Engine struct {
	store    api.Store
	registry *Registry
	logger   *zap.SugaredLogger
}

func NewEngine(store api.Store, registry *Registry, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{store: store, registry: registry, logger: logger}
}

// Save creates or updates doc. A clean document is left untouched and reported
// saved. When validation fails it returns false and a nil error, the document
// errors hold the reasons and the store is not called.
func (e *Engine) Save(ctx context.Context, doc *api.Document, validate bool) (bool, error) {
	if !doc.IsDirty() {
		return true, nil
	}
	if doc.IsNew() {
		return e.run(ctx, doc, validate, createSequence, e.create)
	}
	return e.run(ctx, doc, validate, updateSequence, e.update)
}

func (e *Engine) run(ctx context.Context, doc *api.Document, validate bool, seq sequence, mutate func(context.Context, *api.Document) error) (bool, error) {
	model := e.registry.Lookup(doc.Type())
	callbacks := callbacksOf(model)

	if validate {
		doc.Errors().Clear()
		if err := callbacks.runAll(ctx, seq.validation, doc); err != nil {
			return false, err
		}
		ok, err := valid(ctx, model, doc)
		if err != nil || !ok {
			return false, err
		}
	}

	if err := callbacks.runAll(ctx, seq.before, doc); err != nil {
		return false, err
	}
	if err := mutate(ctx, doc); err != nil {
		return false, err
	}
	if err := callbacks.runAll(ctx, seq.after, doc); err != nil {
		return false, err
	}
	return true, nil
}

// valid runs the validator once. Errors added before, by the validation
// callbacks, are kept.
func valid(ctx context.Context, model *Model, doc *api.Document) (bool, error) {
	prior := doc.Errors().Clone()
	doc.Errors().Clear()

	var err error
	if model != nil && model.Validator != nil {
		err = model.Validator.Validate(ctx, doc)
	}
	doc.Errors().Merge(prior)
	if err != nil {
		return false, errors.Wrapf(err, "unable to validate %s document", doc.Type())
	}
	return doc.Errors().Empty(), nil
}

func (e *Engine) create(ctx context.Context, doc *api.Document) error {
	res, err := e.store.SaveDocument(ctx, doc.ToMap())
	if err != nil {
		return err
	}
	if err := doc.SetIdentity(res.ID, res.Rev); err != nil {
		return errors.Wrap(err, "store returned an invalid identity")
	}
	doc.ClearChanges()
	e.logger.Debugw("document created", "type", doc.Type(), "id", res.ID, "rev", res.Rev)
	return nil
}

func (e *Engine) update(ctx context.Context, doc *api.Document) error {
	res, err := e.store.SaveDocument(ctx, doc.ToMap())
	if err != nil {
		return err
	}
	if err := doc.SetIdentity(doc.ID(), res.Rev); err != nil {
		return errors.Wrap(err, "store returned an invalid revision")
	}
	doc.ClearChanges()
	e.logger.Debugw("document updated", "type", doc.Type(), "id", doc.ID(), "rev", res.Rev)
	return nil
}

// Destroy deletes doc from the store. The document keeps its attributes but
// loses its identity.
func (e *Engine) Destroy(ctx context.Context, doc *api.Document) error {
	if doc.IsNew() {
		return ErrNotPersisted
	}
	callbacks := callbacksOf(e.registry.Lookup(doc.Type()))

	if err := callbacks.Run(ctx, BeforeDestroy, doc); err != nil {
		return err
	}
	doc.MarkDeleted()
	if err := e.store.DeleteDocument(ctx, doc.ToMap()); err != nil {
		doc.ClearDeleted()
		return err
	}
	e.logger.Debugw("document destroyed", "type", doc.Type(), "id", doc.ID())
	doc.ClearIdentity()
	return callbacks.Run(ctx, AfterDestroy, doc)
}

func callbacksOf(m *Model) *Callbacks {
	if m == nil {
		return nil
	}
	return &m.Callbacks
}
