package view

// Params are the query parameters sent along a view query.
type Params map[string]interface{}

func (p Params) clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Range is a key range, expanded into startkey/endkey. A nil bound leaves
// the range open on that side.
type Range struct {
	Start, End interface{}
}

func (p Params) expand(r Range) {
	delete(p, "key")
	if r.Start != nil {
		p["startkey"] = r.Start
	}
	if r.End != nil {
		p["endkey"] = r.End
	}
}

// Normalize turns the convenience parameter forms into the canonical set:
// a bare value is a key, a Range key becomes startkey/endkey and keys wins
// over both. Other parameters pass through. arg is never modified.
func Normalize(arg interface{}) Params {
	params := Params{}
	switch a := arg.(type) {
	case nil:
	case Params:
		params = a.clone()
	case map[string]interface{}:
		params = Params(a).clone()
	default:
		params["key"] = a
	}

	switch r := params["key"].(type) {
	case Range:
		params.expand(r)
	case *Range:
		params.expand(*r)
	}

	if _, ok := params["keys"]; ok {
		delete(params, "key")
		delete(params, "startkey")
		delete(params, "endkey")
	} else if _, ok := params["key"]; ok {
		delete(params, "startkey")
		delete(params, "endkey")
	}
	return params
}
