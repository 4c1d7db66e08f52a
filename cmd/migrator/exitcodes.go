package main

import (
	"errors"

	"github.com/lyzr/pubmigrate/cmd/migrator/service"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK       = 0
	exitFailures = 2
	exitUsage    = 3
	exitSchema   = 4
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode maps an error to the process exit status. A schema fetch failure
// is recognised even when it was not wrapped with a code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	var schemaErr *service.SchemaFetchError
	if errors.As(err, &schemaErr) {
		return exitSchema
	}
	return 1
}
