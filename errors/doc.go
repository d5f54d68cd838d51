/*
Package errors provides semantic error types for entitysession.

The package defines common error scenarios with specific types that can be
checked using the standard errors.Is() function or the provided helper functions.

Common Errors:

	var (
	    ErrNotFound        = errors.New("entity not found")
	    ErrAlreadyExists   = errors.New("entity already exists")
	    ErrInvalidInput    = errors.New("invalid input")
	    ErrIntrospection   = errors.New("introspection failed")
	    ErrSessionClosed   = errors.New("session closed")
	    ErrTypeMismatch    = errors.New("collection type mismatch")
	)

Usage:

	q, err := users.ByExample(User{Name: "Alice"})
	if err != nil {
	    if errors.IsIntrospection(err) {
	        // User has no registered descriptor: a programming error
	        panic(err)
	    }
	    return err
	}

Introspection errors are configuration errors: they are never retried and
point at a missing or incomplete registry.Descriptor. Lookups that find
nothing (Collection.ByID, Collection.IsPersisted) report absence through
their results, never through ErrNotFound.

The error types implement the error interface and support wrapping,
making them compatible with Go's standard error handling patterns.
*/
package errors
