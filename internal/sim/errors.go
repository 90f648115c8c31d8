package sim

// Error kinds drive the caller's retry policy: validation and insufficient
// resource errors require a changed request, conflicts are safe to retry
// with the same request_id, internal errors may be retried.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindInvalidState Kind = "invalid_state_error"
	KindInsufficient Kind = "insufficient_resource_error"
	KindConflict     Kind = "conflict_error"
	KindInternal     Kind = "internal_error"
)

// Error is the resolver's typed error. Code is a stable snake_case token
// surfaced to clients; Kind selects the HTTP status and retry semantics.
type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string { return e.Code }

func validationErr(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

func invalidStateErr(code string) *Error {
	return &Error{Kind: KindInvalidState, Code: code}
}

func insufficientErr(code string) *Error {
	return &Error{Kind: KindInsufficient, Code: code}
}

func conflictErr(code string) *Error {
	return &Error{Kind: KindConflict, Code: code}
}

func internalErr(code string) *Error {
	return &Error{Kind: KindInternal, Code: code}
}

// KindOf classifies any error coming out of Submit; non-sim errors are
// internal by definition.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
