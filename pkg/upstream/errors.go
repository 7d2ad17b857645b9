package upstream

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of a failed response is kept for logging
const maxErrorBody = 512

// TransportError is returned when the request could not complete
type TransportError struct {
	Environment string
	Resource    string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s %s: transport error: %v", e.Environment, e.Resource, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseError is returned for a non-2xx response
type ResponseError struct {
	Environment string
	Resource    string
	StatusCode  int
	Body        string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("upstream %s %s: unexpected status %d", e.Environment, e.Resource, e.StatusCode)
}

// ParseError is returned when the body is not a collection document
type ParseError struct {
	Environment string
	Resource    string
	Reason      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream %s %s: %s", e.Environment, e.Resource, e.Reason)
}

// IsUpstreamError reports whether err is one of the upstream error types
func IsUpstreamError(err error) bool {
	var te *TransportError
	var re *ResponseError
	var pe *ParseError
	return errors.As(err, &te) || errors.As(err, &re) || errors.As(err, &pe)
}

// Outcome classifies err into a metric label
func Outcome(err error) string {
	var te *TransportError
	var re *ResponseError
	var pe *ParseError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &re):
		return "status_error"
	case errors.As(err, &pe):
		return "parse_error"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
