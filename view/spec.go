// Package view compiles declarative view requests into map/reduce source and
// canonical query parameters, runs them against a store and shapes the rows
// into results.
package view

import (
	"strings"
	"unicode"
)

// Kind selects how a view emits and how its rows are turned into results.
type Kind int

const (
	// Documents views emit the document id and return the documents themselves.
	Documents Kind = iota
	// Properties views emit a subset of the properties and rebuild partial
	// documents from the emitted values, without include_docs.
	Properties
	// Raw views return the rows as they come.
	Raw
)

// Options describe how the map/reduce source of a view is generated.
type Options struct {
	Kind Kind
	// Key lists the properties emitted as key. Empty emits doc._id, several
	// properties emit an array key.
	Key []string
	// Properties lists the properties emitted as value by Properties views.
	Properties []string
	// Value is a javascript expression emitted as value by Documents and Raw
	// views. Defaults to null.
	Value string
	// Conditions is a javascript boolean expression ANDed into the type guard.
	Conditions string
	Reduce     string
	ListName   string
	ListSource string
}

// Spec is the immutable description of one view query.
type Spec struct {
	docType string
	name    string
	opts    Options
	params  Params
}

// New builds the specification of the view name of docType. arg holds the
// query parameters, in any form accepted by Normalize.
func New(docType, name string, opts Options, arg interface{}) Spec {
	opts.Key = append([]string(nil), opts.Key...)
	opts.Properties = append([]string(nil), opts.Properties...)

	s := Spec{
		docType: docType,
		name:    name,
		opts:    opts,
		params:  Normalize(arg),
	}
	if opts.Kind == Documents && !s.ReduceMode() {
		if _, ok := s.params["include_docs"]; !ok {
			s.params["include_docs"] = true
		}
	}
	return s
}

func (s Spec) Type() string     { return s.docType }
func (s Spec) ViewName() string { return s.name }
func (s Spec) Kind() Kind       { return s.opts.Kind }

// DesignDocument is the name of the design document grouping the views of the type.
func (s Spec) DesignDocument() string {
	return underscore(s.docType)
}

// Params returns a copy of the normalized query parameters.
func (s Spec) Params() Params {
	return s.params.clone()
}

// ReduceMode reports whether the query runs the reduce function.
func (s Spec) ReduceMode() bool {
	if s.opts.Reduce == "" {
		return false
	}
	reduce, ok := s.params["reduce"].(bool)
	return !ok || reduce
}

// MapFunction generates the map source. The type guard is always present so a
// view never emits documents of another type.
func (s Spec) MapFunction() string {
	var b strings.Builder
	b.WriteString("function(doc) {\n")
	b.WriteString("  if(doc." + typeField + " && doc." + typeField + " == " + jsString(s.docType))
	if s.opts.Conditions != "" {
		b.WriteString(" && (" + s.opts.Conditions + ")")
	}
	b.WriteString(") {\n")
	b.WriteString("    emit(" + s.key() + ", " + s.value() + ");\n")
	b.WriteString("  }\n")
	b.WriteString("}")
	return b.String()
}

func (s Spec) ReduceFunction() string { return s.opts.Reduce }

func (s Spec) ListName() string { return s.opts.ListName }

func (s Spec) ListFunction() string { return s.opts.ListSource }

const typeField = "type"

func (s Spec) key() string {
	switch len(s.opts.Key) {
	case 0:
		return "doc._id"
	case 1:
		return property(s.opts.Key[0])
	}
	parts := make([]string, len(s.opts.Key))
	for i, k := range s.opts.Key {
		parts[i] = property(k)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s Spec) value() string {
	if s.opts.Kind == Properties {
		parts := []string{"'_id': doc._id", "'_rev': doc._rev", "'" + typeField + "': doc." + typeField}
		for _, p := range s.opts.Properties {
			parts = append(parts, jsString(p)+": "+property(p))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if s.opts.Value != "" {
		return s.opts.Value
	}
	return "null"
}

func property(name string) string {
	return "doc[" + jsString(name) + "]"
}

func jsString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}

// underscore turns a type name such as BlogPost into blog_post.
func underscore(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		if r == ':' || r == '.' || r == '/' || unicode.IsSpace(r) {
			r = '_'
		}
		b.WriteRune(r)
	}
	return b.String()
}
