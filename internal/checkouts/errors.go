package checkouts

import (
	"errors"
	"sort"
	"strings"

	"cotracker/internal/database"
)

var (
	// ErrNotFound is returned when a named pilot, airstrip or base does not exist
	ErrNotFound = database.ErrNotFound
	// ErrNotBase is returned when attachments are edited on an airstrip that is not a base
	ErrNotBase = errors.New("airstrip is not a base")
)

// AuthorizationError means the actor lacks a capability or acted outside their own scope
type AuthorizationError struct {
	Actor  string
	Action Action
	Reason string
}

func (e *AuthorizationError) Error() string {
	return e.Reason
}

// ValidationError carries per-field problems with submitted form data
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid form data: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, problem string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = problem
	}
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

func isNotBase(err error) bool {
	return err != nil && errors.Is(err, ErrNotBase)
}
