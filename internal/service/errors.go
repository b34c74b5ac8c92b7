package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrForbidden means the acting user's role does not allow the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means a referenced entity does not exist or is out of scope.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the write would break a uniqueness or state rule.
	ErrConflict = errors.New("conflict")
	// ErrNotMember means the target user holds no membership in the project.
	ErrNotMember = errors.New("user is not a member of the project")
	// ErrInvalidReorder means the supplied ids are not exactly the siblings.
	ErrInvalidReorder = errors.New("ordered ids must list every sibling exactly once")
	// ErrInvalidTag means a tag id does not belong to the item's project.
	ErrInvalidTag = errors.New("tag does not belong to the project")
	// ErrInvalidNewOwner means the proposed owner is the current owner or not a member.
	ErrInvalidNewOwner = errors.New("new owner must be a different member of the project")
	// ErrTransferFailed means the ownership transfer was rolled back.
	ErrTransferFailed = errors.New("ownership transfer failed")
	// ErrInvalidCredentials is returned by login for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports structurally invalid input, field by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem with field. The first message per field wins.
func (e *ValidationError) Add(field, format string, args ...any) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = fmt.Sprintf(format, args...)
}

// Err returns e when any field failed, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, format string, args ...any) error {
	v := &ValidationError{}
	v.Add(field, format, args...)
	return v
}
