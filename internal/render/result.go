package render

import (
	"fmt"
	"html/template"
	"net/http"
)

type Kind int

const (
	Rendered Kind = iota
	Incomplete
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case Rendered:
		return "rendered"
	case Incomplete:
		return "incomplete"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const IncompleteMessage = "Upload incomplete. Try again later."

// Result is the outcome of a render.
//
// Fragment is set only for Rendered; Heading only for Incomplete.
type Result struct {
	Kind     Kind
	Name     string
	Strategy StrategyTag
	Fragment template.HTML
	Heading  string
}

// HTTPStatus is the status a web response for r should carry.
func (r Result) HTTPStatus() int {
	switch r.Kind {
	case Incomplete:
		return http.StatusConflict
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusOK
	}
}

// Err returns the rejection as an error, or nil for Rendered.
func (r Result) Err() error {
	switch r.Kind {
	case Incomplete:
		return &IncompleteError{Name: r.Name, Filename: r.Heading}
	case Forbidden:
		return &ForbiddenError{Name: r.Name}
	default:
		return nil
	}
}

// IncompleteError reports an item whose upload has not finished. Retrying
// later may succeed.
type IncompleteError struct {
	Name     string
	Filename string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("item %s: upload incomplete, try again later", e.Name)
}

// ForbiddenError reports a locked item requested without admin permission.
type ForbiddenError struct {
	Name string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("item %s: locked (admin permission required)", e.Name)
}
