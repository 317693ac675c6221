package lifecycle

import (
	"context"

	"github.com/xdbsoft/potato/api"
)

// Validator fills the error collection of a document. The returned error
// reports a failure to validate, not an invalid document.
type Validator interface {
	Validate(ctx context.Context, doc *api.Document) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, doc *api.Document) error

func (f ValidatorFunc) Validate(ctx context.Context, doc *api.Document) error {
	return f(ctx, doc)
}

// Model gathers the lifecycle behaviour of one document type.
type Model struct {
	Type      string
	Callbacks Callbacks
	Validator Validator
}

// Registry holds the models known to a database, by type.
type Registry struct {
	models map[string]*Model
}

func NewRegistry(models ...*Model) *Registry {
	r := &Registry{models: make(map[string]*Model)}
	for _, m := range models {
		r.Register(m)
	}
	return r
}

func (r *Registry) Register(m *Model) {
	r.models[m.Type] = m
}

// Lookup returns the model of docType, nil when none was registered.
func (r *Registry) Lookup(docType string) *Model {
	if r == nil {
		return nil
	}
	return r.models[docType]
}
