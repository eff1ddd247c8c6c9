package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies scheduler failures.  Every public operation either
// succeeds or returns an error of exactly one kind.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation means the input is malformed (start >= end, empty
	// purpose, unknown room).  Callers fix the input; never retried.
	KindValidation
	// KindConflict means an Approved reservation overlaps the window.
	KindConflict
	// KindNotFound means the referenced reservation or room does not exist.
	KindNotFound
	// KindInvalidState means the reservation's status forbids the operation.
	KindInvalidState
	// KindInvalidTransition means the lifecycle does not allow the move.
	KindInvalidTransition
	// KindForbidden means the actor may not touch the reservation.
	KindForbidden
	// KindBusy means the store could not complete the transaction because
	// of contention, after its own bounded retries.
	KindBusy
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindValidation:        "validation",
	KindConflict:          "conflict",
	KindNotFound:          "not_found",
	KindInvalidState:      "invalid_state",
	KindInvalidTransition: "invalid_transition",
	KindForbidden:         "forbidden",
	KindBusy:              "busy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is the concrete error type returned by the scheduler.  Fields and
// Conflicts are populated for validation and conflict failures.
type Error struct {
	Kind      Kind
	Op        string
	Msg       string
	Fields    map[string]string
	Conflicts []uint64
	Err       error
}

// Sentinels for errors.Is.  A sentinel matches any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrBusy              = &Error{Kind: KindBusy}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	b.WriteString(msg)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == ""
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ConflictsOf returns the conflicting reservation ids carried by err.
func ConflictsOf(err error) []uint64 {
	var e *Error
	if errors.As(err, &e) {
		return e.Conflicts
	}
	return nil
}

// FieldsOf returns the field errors carried by err.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

func newError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// wrap attaches op to store errors.  Errors that already carry a kind keep
// it; anything else stays KindUnknown and surfaces as a generic failure.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Op != "" {
			return err
		}
		cp := *e
		cp.Op = op
		return &cp
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Op: op, Msg: err.Error(), Conflicts: e.Conflicts, Fields: e.Fields}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// validationError accumulates field problems.
type validationError struct {
	fields map[string]string
}

func (v *validationError) add(field, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validationError) err(op string) error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Op: op, Msg: "invalid request", Fields: v.fields}
}
