package graph

import (
	"shopsync/internal/domain"
)

// resolverError carries the domain code into the GraphQL error's extensions.
type resolverError struct {
	err  error
	code string
}

func (e *resolverError) Error() string {
	if e.code == domain.CodeInternal {
		return "internal server error"
	}
	return e.err.Error()
}

func (e *resolverError) Unwrap() error {
	return e.err
}

func (e *resolverError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

func gqlError(err error) error {
	if err == nil {
		return nil
	}
	return &resolverError{err: err, code: domain.CodeOf(err)}
}
