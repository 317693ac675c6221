package rules

// Rule is a validation rule of a document type. If is a gript condition
// evaluated with the variables doc (the attributes), id, type and new; a false
// result adds Message to the errors of Field.
type Rule struct {
	Field   string  `json:"field" yaml:"field"`
	If      string  `json:"if" yaml:"if"`
	Message string  `json:"message" yaml:"message"`
	On      []Event `json:"on" yaml:"on"`
}

// Event restricts a rule to creations or updates. A rule without events
// applies to both.
type Event string

const (
	CREATE Event = "CREATE"
	UPDATE Event = "UPDATE"
)

func (r Rule) appliesTo(e Event) bool {
	if len(r.On) == 0 {
		return true
	}
	for _, on := range r.On {
		if on == e {
			return true
		}
	}
	return false
}
