package decl

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrorKind classifies a DeclarationError.
type ErrorKind int

const (
	ImmutablePropertyWithSetter ErrorKind = iota + 1
	IncompleteComputedProperty
	DuplicatePromotedProperty
	UninitializedStoredProperty
	DuplicateExtension
	AmbiguousExtension
	UnexpectedEnclosingInstance
	MissingEnclosingInstance

	InvalidEnclosingRef
	EnclosingInstanceMismatch
	DuplicateMember
	ComputedPropertyInitializer
	AssignmentToReadOnly
	UnknownOverride
	InvalidExtension
	PrivateMemberAccess
	FieldInComputedProperty
)

var kindNames = map[ErrorKind]string{
	ImmutablePropertyWithSetter: "ImmutablePropertyWithSetter",
	IncompleteComputedProperty:  "IncompleteComputedProperty",
	DuplicatePromotedProperty:   "DuplicatePromotedProperty",
	UninitializedStoredProperty: "UninitializedStoredProperty",
	DuplicateExtension:          "DuplicateExtension",
	AmbiguousExtension:          "AmbiguousExtension",
	UnexpectedEnclosingInstance: "UnexpectedEnclosingInstance",
	MissingEnclosingInstance:    "MissingEnclosingInstance",
	InvalidEnclosingRef:         "InvalidEnclosingRef",
	EnclosingInstanceMismatch:   "EnclosingInstanceMismatch",
	DuplicateMember:             "DuplicateMember",
	ComputedPropertyInitializer: "ComputedPropertyInitializer",
	AssignmentToReadOnly:        "AssignmentToReadOnly",
	UnknownOverride:             "UnknownOverride",
	InvalidExtension:            "InvalidExtension",
	PrivateMemberAccess:         "PrivateMemberAccess",
	FieldInComputedProperty:     "FieldInComputedProperty",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// DeclarationError reports an invalid declaration. Class and Member
// identify the offending declaration; Member is empty for class-level
// errors.
type DeclarationError struct {
	Kind   ErrorKind
	Class  string
	Member string
	Detail string
}

// Errorf builds a DeclarationError.
func Errorf(kind ErrorKind, class, member, format string, args ...any) *DeclarationError {
	return &DeclarationError{
		Kind:   kind,
		Class:  class,
		Member: member,
		Detail: fmt.Sprintf(format, args...),
	}
}

func (e *DeclarationError) Error() string {
	where := e.Class
	if e.Member != "" {
		if where != "" {
			where += "."
		}
		where += e.Member
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", where, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", where, e.Kind, e.Detail)
}

// Is matches another DeclarationError of the same kind, so that
// errors.Is(err, &DeclarationError{Kind: k}) works as a kind test.
func (e *DeclarationError) Is(target error) bool {
	t, ok := target.(*DeclarationError)
	return ok && t.Kind == e.Kind
}

// Errors flattens a combined error into its DeclarationErrors. Other
// errors are skipped.
func Errors(err error) []*DeclarationError {
	var out []*DeclarationError
	for _, e := range multierr.Errors(err) {
		var de *DeclarationError
		if errors.As(e, &de) {
			out = append(out, de)
		}
	}
	return out
}

// Kinds returns the kinds of all DeclarationErrors in err, in order.
func Kinds(err error) []ErrorKind {
	errs := Errors(err)
	kinds := make([]ErrorKind, len(errs))
	for i, e := range errs {
		kinds[i] = e.Kind
	}
	return kinds
}

// HasKind reports whether err contains a DeclarationError of kind k.
func HasKind(err error, k ErrorKind) bool {
	for _, got := range Kinds(err) {
		if got == k {
			return true
		}
	}
	return false
}
