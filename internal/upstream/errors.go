package upstream

import (
	"fmt"
	"strings"
)

// Error is a GraphQL endpoint failure: transport error, non-2xx status or a
// top-level errors list.
type Error struct {
	Network  string
	Status   int
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("graphql %s: %v", e.Network, e.Err)
	case e.ok():
		return fmt.Sprintf("graphql %s: %s", e.Network, strings.Join(e.Messages, "; "))
	case len(e.Messages) > 0:
		return fmt.Sprintf("graphql %s: http status %d: %s", e.Network, e.Status, strings.Join(e.Messages, "; "))
	default:
		return fmt.Sprintf("graphql %s: http status %d", e.Network, e.Status)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same request may succeed.
func (e *Error) Transient() bool {
	if e.Err != nil {
		return true
	}
	if e.ok() {
		return false
	}
	return e.Status == 429 || e.Status >= 500
}

// ok is true for errors reported inside a 2xx response.
func (e *Error) ok() bool {
	return e.Status >= 200 && e.Status <= 299
}

// HasFieldError reports whether any message rejects a field of the query.
func (e *Error) HasFieldError(fields ...string) bool {
	keywords := append([]string{"field", "unknown"}, fields...)
	for _, m := range e.Messages {
		lower := strings.ToLower(m)
		for _, k := range keywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				return true
			}
		}
	}
	return false
}
