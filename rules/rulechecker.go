package rules

import (
	"context"

	"github.com/pkg/errors"
	"github.com/xdbsoft/gript"

	"github.com/xdbsoft/potato/api"
)

const defaultMessage = "is invalid"

// Checker validates documents against a list of rules. It satisfies
// lifecycle.Validator.
type Checker struct {
	rules []Rule
}

func NewChecker(rules []Rule) Checker {
	return Checker{rules: rules}
}

func checkCondition(condition string, variables map[string]interface{}) (bool, error) {
	if len(condition) == 0 {
		return true, nil
	}
	r, err := gript.Eval(condition, variables)
	if err != nil {
		return false, err
	}
	result, ok := r.(bool)
	if !ok {
		return false, errors.New("Invalid condition: result is not boolean")
	}
	return result, nil
}

// Validate adds the message of every failing rule to the document errors. An
// error is returned only when a condition cannot be evaluated.
func (c Checker) Validate(ctx context.Context, doc *api.Document) error {

	event := UPDATE
	if doc.IsNew() {
		event = CREATE
	}

	variables := map[string]interface{}{
		"doc":  doc.Attributes(),
		"id":   doc.ID(),
		"type": doc.Type(),
		"new":  doc.IsNew(),
	}

	for _, rule := range c.rules {
		if !rule.appliesTo(event) {
			continue
		}
		ok, err := checkCondition(rule.If, variables)
		if err != nil {
			return errors.Wrapf(err, "unable to check rule %q", rule.If)
		}
		if ok {
			continue
		}
		msg := rule.Message
		if msg == "" {
			msg = defaultMessage
		}
		doc.Errors().Add(rule.Field, msg)
	}
	return nil
}
