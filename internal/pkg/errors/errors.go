// Package errors defines the sentinels shared across repos, services and
// handlers. Callers wrap them with fmt.Errorf("%w: ...") and match with
// errors.Is; handlers translate them to HTTP status codes at the edge.
package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
)
