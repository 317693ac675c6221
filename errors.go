package potato

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

//ErrMissingID is returned when loading a document without id
var ErrMissingID = errors.New("document id is required")

//IsNotFound returns whether the error cause is that something was not found
func IsNotFound(err error) bool {
	nfe, ok := errors.Cause(err).(NotFound)
	return ok && nfe.IsNotFound()
}

//NotFound is the interface that wraps the IsNotFound method
type NotFound interface {
	IsNotFound() bool
}

//IsConflict returns whether the error cause is a stale revision
func IsConflict(err error) bool {
	ce, ok := errors.Cause(err).(Conflict)
	return ok && ce.IsConflict()
}

//Conflict is the interface that wraps the IsConflict method
type Conflict interface {
	IsConflict() bool
}

//IsValidationFailed returns whether the error cause is an invalid document
func IsValidationFailed(err error) bool {
	ve, ok := errors.Cause(err).(ValidationFailed)
	return ok && ve.IsValidationFailed()
}

//ValidationFailed is the interface that wraps the IsValidationFailed method
type ValidationFailed interface {
	IsValidationFailed() bool
}

//IsConfiguration returns whether the error cause is an incorrect configuration
func IsConfiguration(err error) bool {
	ce, ok := errors.Cause(err).(Configuration)
	return ok && ce.IsConfiguration()
}

//Configuration is the interface that wraps the IsConfiguration method
type Configuration interface {
	IsConfiguration() bool
}

//IsUnavailable returns whether the error cause is that the database cannot be used
func IsUnavailable(err error) bool {
	ue, ok := errors.Cause(err).(Unavailable)
	return ok && ue.IsUnavailable()
}

//Unavailable is the interface that wraps the IsUnavailable method
type Unavailable interface {
	IsUnavailable() bool
}

//ValidationFailedError carries the full messages of a document that failed validation
type ValidationFailedError struct {
	Type     string
	Messages []string
}

func (err *ValidationFailedError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", err.Type, strings.Join(err.Messages, ", "))
}

func (err *ValidationFailedError) IsValidationFailed() bool {
	return true
}

type configurationError string

func (err configurationError) IsConfiguration() bool {
	return true
}
func (err configurationError) Error() string {
	return string(err)
}

type unavailableError struct {
	Database string
	cause    error
}

func (err unavailableError) Error() string {
	if err.cause == nil {
		return fmt.Sprintf("database %q does not exist", err.Database)
	}
	return fmt.Sprintf("database %q is unavailable: %v", err.Database, err.cause)
}

func (err unavailableError) IsUnavailable() bool {
	return true
}
