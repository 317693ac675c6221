package api

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

//Errors is the ordered collection of validation messages of a document, keyed by field.
//Messages added with an empty field name are base errors.
type Errors struct {
	fields   []string
	messages map[string][]string
}

func (e *Errors) Add(field, message string) {
	if e.messages == nil {
		e.messages = make(map[string][]string)
	}
	if _, ok := e.messages[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.messages[field] = append(e.messages[field], message)
}

//On returns the messages recorded for a field
func (e *Errors) On(field string) []string {
	return e.messages[field]
}

func (e *Errors) Clear() {
	e.fields = nil
	e.messages = nil
}

func (e *Errors) Empty() bool { return len(e.fields) == 0 }

//Len is the total number of messages
func (e *Errors) Len() int {
	n := 0
	for _, m := range e.messages {
		n += len(m)
	}
	return n
}

//Fields lists the fields with errors, in insertion order
func (e *Errors) Fields() []string {
	return append([]string(nil), e.fields...)
}

func (e *Errors) Clone() Errors {
	var c Errors
	c.Merge(*e)
	return c
}

//Merge appends every message of other
func (e *Errors) Merge(other Errors) {
	for _, f := range other.fields {
		for _, m := range other.messages[f] {
			e.Add(f, m)
		}
	}
}

//FullMessages renders every message prefixed by its humanized field name
func (e *Errors) FullMessages() []string {
	var out []string
	for _, f := range e.fields {
		for _, m := range e.messages[f] {
			if f == "" {
				out = append(out, m)
				continue
			}
			out = append(out, humanize(f)+" "+m)
		}
	}
	return out
}

func humanize(field string) string {
	s := strings.TrimSuffix(field, "_id")
	s = strings.ReplaceAll(s, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
