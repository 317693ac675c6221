package api

import (
	"context"
	"reflect"
	"sort"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tiendc/go-deepcopy"
)

// Reserved fields of the persisted representation.
const (
	IDField      = "_id"
	RevField     = "_rev"
	DeletedField = "_deleted"
	TypeField    = "type"
)

//ErrDetached is returned by the active record helpers of a document that was never
//associated with a database
var ErrDetached = errors.New("document is detached (no database)")

//Database is the back-reference a document holds on the facade that loaded or saved it
type Database interface {
	Save(ctx context.Context, doc *Document) (bool, error)
	Destroy(ctx context.Context, doc *Document) error
}

//Document represents a typed document of the store
type Document struct {
	id      string
	rev     string
	docType string

	attributes map[string]interface{}
	snapshot   map[string]interface{}
	forced     bool
	deleted    bool

	errors   Errors
	database Database
}

//New creates a new, unpersisted document of the given type
func New(docType string, attributes map[string]interface{}) *Document {
	d := &Document{
		docType:    docType,
		attributes: make(map[string]interface{}, len(attributes)),
		snapshot:   make(map[string]interface{}),
	}
	for k, v := range attributes {
		d.attributes[k] = v
	}
	return d
}

//FromMap rebuilds a persisted document from its stored representation
func FromMap(m map[string]interface{}) *Document {
	d := &Document{attributes: make(map[string]interface{}, len(m))}
	for k, v := range m {
		switch k {
		case IDField:
			d.id, _ = v.(string)
		case RevField:
			d.rev, _ = v.(string)
		case TypeField:
			d.docType, _ = v.(string)
		case DeletedField:
		default:
			d.attributes[k] = v
		}
	}
	d.ClearChanges()
	return d
}

func (d *Document) ID() string   { return d.id }
func (d *Document) Rev() string  { return d.rev }
func (d *Document) Type() string { return d.docType }

//IsNew reports whether the document has never been persisted
func (d *Document) IsNew() bool { return d.id == "" }

//SetIdentity assigns the id and revision handed out by the store. Both are required.
func (d *Document) SetIdentity(id, rev string) error {
	if id == "" || rev == "" {
		return errors.Errorf("incomplete identity (id=%q, rev=%q)", id, rev)
	}
	d.id = id
	d.rev = rev
	return nil
}

//ClearIdentity detaches the document from its stored version
func (d *Document) ClearIdentity() {
	d.id = ""
	d.rev = ""
}

func (d *Document) Get(name string) interface{} { return d.attributes[name] }

func (d *Document) Set(name string, value interface{}) {
	if d.attributes == nil {
		d.attributes = make(map[string]interface{})
	}
	d.attributes[name] = value
}

//Attributes returns a copy of the attribute map
func (d *Document) Attributes() map[string]interface{} {
	out := make(map[string]interface{}, len(d.attributes))
	for k, v := range d.attributes {
		out[k] = v
	}
	return out
}

//IsDirty reports whether the document holds changes that were not persisted yet
func (d *Document) IsDirty() bool {
	return d.IsNew() || d.forced || len(d.Changes()) > 0
}

//MarkDirty forces the next save to hit the store even without attribute changes
func (d *Document) MarkDirty() { d.forced = true }

//Changed reports whether the named attribute differs from its last persisted value
func (d *Document) Changed(name string) bool {
	cur, inCur := d.attributes[name]
	old, inOld := d.snapshot[name]
	return inCur != inOld || !equal(cur, old)
}

// equal compares attribute values, unexported struct fields included. Values
// cmp cannot compare count as different.
func equal(a, b interface{}) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return cmp.Equal(a, b, cmp.Exporter(func(reflect.Type) bool { return true }))
}

//Was returns the last persisted value of the named attribute
func (d *Document) Was(name string) interface{} { return d.snapshot[name] }

//Changes lists the changed attribute names, sorted
func (d *Document) Changes() []string {
	var names []string
	for k := range d.attributes {
		if d.Changed(k) {
			names = append(names, k)
		}
	}
	for k := range d.snapshot {
		if _, ok := d.attributes[k]; !ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

//ClearChanges takes a new snapshot of the attributes, making the document clean
func (d *Document) ClearChanges() {
	snapshot := make(map[string]interface{}, len(d.attributes))
	if err := deepcopy.Copy(&snapshot, &d.attributes); err != nil {
		snapshot = make(map[string]interface{}, len(d.attributes))
	}
	for k, v := range d.attributes {
		// values the copy could not reproduce, unexported fields included, are kept as is
		if c, ok := snapshot[k]; !ok || !equal(c, v) {
			snapshot[k] = v
		}
	}
	d.snapshot = snapshot
	d.forced = false
}

func (d *Document) Deleted() bool { return d.deleted }

//MarkDeleted flags the document so that its serialization carries the deletion marker
func (d *Document) MarkDeleted() { d.deleted = true }

//ClearDeleted removes the deletion marker, after a failed deletion
func (d *Document) ClearDeleted() { d.deleted = false }

func (d *Document) Errors() *Errors { return &d.errors }

func (d *Document) Database() Database { return d.database }

func (d *Document) SetDatabase(db Database) { d.database = db }

//ToMap returns the stored representation of the document
func (d *Document) ToMap() map[string]interface{} {
	m := d.Attributes()
	m[TypeField] = d.docType
	if !d.IsNew() {
		m[IDField] = d.id
		m[RevField] = d.rev
		if d.deleted {
			m[DeletedField] = true
		}
	}
	return m
}

//Decode decodes the stored representation of the document into v
func (d *Document) Decode(v interface{}) error {
	b, err := json.Marshal(d.ToMap())
	if err != nil {
		return errors.Wrap(err, "unable to encode document")
	}
	return errors.Wrap(json.Unmarshal(b, v), "unable to decode document")
}

//Save persists the document through the database that loaded or saved it
func (d *Document) Save(ctx context.Context) (bool, error) {
	if d.database == nil {
		return false, ErrDetached
	}
	return d.database.Save(ctx, d)
}

//Destroy deletes the document through the database that loaded or saved it
func (d *Document) Destroy(ctx context.Context) error {
	if d.database == nil {
		return ErrDetached
	}
	return d.database.Destroy(ctx, d)
}

//NextID generates a pseudo-random ID that could be used when creating a document
func NextID() string {
	return xid.New().String()
}
