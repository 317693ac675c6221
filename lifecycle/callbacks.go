// Package lifecycle drives the validation and callback phases around every
// mutation of a document.
package lifecycle

import (
	"context"

	"github.com/xdbsoft/potato/api"
)

// Phase identifies a point of the lifecycle where callbacks run.
type Phase string

const (
	BeforeValidationOnSave   Phase = "before_validation_on_save"
	BeforeValidationOnCreate Phase = "before_validation_on_create"
	BeforeValidationOnUpdate Phase = "before_validation_on_update"
	BeforeSave               Phase = "before_save"
	BeforeCreate             Phase = "before_create"
	BeforeUpdate             Phase = "before_update"
	AfterSave                Phase = "after_save"
	AfterCreate              Phase = "after_create"
	AfterUpdate              Phase = "after_update"
	BeforeDestroy            Phase = "before_destroy"
	AfterDestroy             Phase = "after_destroy"
)

// Phases is the fixed list of known phases.
var Phases = []Phase{
	BeforeValidationOnSave,
	BeforeValidationOnCreate,
	BeforeValidationOnUpdate,
	BeforeSave,
	BeforeCreate,
	BeforeUpdate,
	AfterSave,
	AfterCreate,
	AfterUpdate,
	BeforeDestroy,
	AfterDestroy,
}

func (p Phase) valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Callback is a handler bound to a phase. A returned error aborts the operation.
type Callback func(ctx context.Context, doc *api.Document) error

// Callbacks maps phases to their handlers, run in registration order.
type Callbacks struct {
	handlers map[Phase][]Callback
}

// On registers fn for phase p. It panics on an unknown phase.
func (c *Callbacks) On(p Phase, fn Callback) *Callbacks {
	if !p.valid() {
		panic("unknown lifecycle phase " + string(p))
	}
	if c.handlers == nil {
		c.handlers = make(map[Phase][]Callback)
	}
	c.handlers[p] = append(c.handlers[p], fn)
	return c
}

// Run runs the handlers of p, stopping at the first error.
func (c *Callbacks) Run(ctx context.Context, p Phase, doc *api.Document) error {
	if c == nil {
		return nil
	}
	for _, fn := range c.handlers[p] {
		if err := fn(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (c *Callbacks) runAll(ctx context.Context, phases []Phase, doc *api.Document) error {
	for _, p := range phases {
		if err := c.Run(ctx, p, doc); err != nil {
			return err
		}
	}
	return nil
}
