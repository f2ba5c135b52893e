// Package ax wraps accessibility elements exposed by a platform backend:
// applications, their windows, and the notifications they raise.
package ax

import (
	"fmt"

	"github.com/1broseidon/axwatch/internal/platform"
)

const (
	RoleApplication = "AXApplication"
	RoleWindow      = "AXWindow"
)

// Element is an opaque handle to a native accessibility element.
type Element struct {
	backend platform.Backend
	ref     platform.Ref
	role    string
}

// NewElement wraps ref. It does not check that the element exists.
func NewElement(b platform.Backend, ref platform.Ref, role string) *Element {
	return &Element{backend: b, ref: ref, role: role}
}

// Ref returns the element's native reference.
func (e *Element) Ref() platform.Ref {
	return e.ref
}

// PID returns the process owning the element.
func (e *Element) PID() platform.PID {
	return e.ref.PID
}

// Role returns the element's accessibility role.
func (e *Element) Role() string {
	return e.role
}

// IsApplication reports whether e is an application root element.
func (e *Element) IsApplication() bool {
	return e.ref.IsApplication()
}

// Backend returns the backend the element was obtained from.
func (e *Element) Backend() platform.Backend {
	return e.backend
}

// Equal reports whether e and other refer to the same native element.
func (e *Element) Equal(other *Element) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ref == other.ref
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s)", e.role, e.ref)
}
