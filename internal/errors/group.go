package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorGroup aggregates per-item failures from a batch operation (ingest,
// prune). It is distinguishable from a single-item *Error by type, per
// spec §9 "Batch error aggregation".
type ErrorGroup struct {
	// Errors is keyed by the context (source id, product id) that failed.
	Errors map[string]error
}

// NewErrorGroup returns an empty ErrorGroup.
func NewErrorGroup() *ErrorGroup {
	return &ErrorGroup{Errors: map[string]error{}}
}

// Add records err under key. A no-op if err is nil.
func (g *ErrorGroup) Add(key string, err error) {
	if err == nil {
		return
	}
	g.Errors[key] = err
}

// Empty reports whether no errors were recorded.
func (g *ErrorGroup) Empty() bool {
	return len(g.Errors) == 0
}

// ErrOrNil returns g as an error if it has any entries, nil otherwise. This
// is the usual way to surface an ErrorGroup built up over a loop.
func (g *ErrorGroup) ErrOrNil() error {
	if g.Empty() {
		return nil
	}
	return g
}

func (g *ErrorGroup) Error() string {
	keys := make([]string, 0, len(g.Errors))
	for k := range g.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := new(strings.Builder)
	fmt.Fprintf(b, "error-group: %d error(s)", len(keys))
	for _, k := range keys {
		fmt.Fprintf(b, "\n\t%s: %s", k, g.Errors[k].Error())
	}
	return b.String()
}

// Kind always reports ErrorGroupKind, so callers can distinguish a batch
// failure from a single-item one without a type assertion.
func (g *ErrorGroup) Kind() Kind {
	return ErrorGroupKind
}
