package plan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTaskNotFound indicates that a selector matched no task.
var ErrTaskNotFound = errors.New("task not found")

// Select resolves a task selector against the document. The selector is
// either a 1-based ordinal or a case-insensitive substring matched
// against task titles; the ordinal interpretation wins whenever the
// selector parses as an in-range integer. Substring matches resolve to
// the first match in document order.
func (d *Document) Select(selector string) (Task, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return Task{}, fmt.Errorf("%w: empty selector", ErrTaskNotFound)
	}

	if n, err := strconv.Atoi(selector); err == nil && n >= 1 && n <= len(d.Tasks) {
		return d.Tasks[n-1], nil
	}

	needle := strings.ToLower(selector)
	for _, t := range d.Tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			return t, nil
		}
	}

	return Task{}, fmt.Errorf("%w: %q", ErrTaskNotFound, selector)
}
