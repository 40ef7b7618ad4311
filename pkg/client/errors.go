package client

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Sternrassler/apicache/pkg/api"
	"github.com/Sternrassler/apicache/pkg/cache"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is an error response from the admin API.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Code       string
	Message    string

	// Requested and Current are set for capacity_too_small.
	Requested int
	Current   int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("apicache %s error (status %d, %s): %s", e.Class, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("apicache %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// Unwrap maps error codes back to the cache package's sentinel errors,
// so errors.Is(err, cache.ErrInvalidCapacity) works across the wire.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case api.CodeInvalidCapacity, api.CodeCapacityTooSmall:
		return cache.ErrInvalidCapacity
	case api.CodeBadPattern:
		return doublestar.ErrBadPattern
	default:
		return nil
	}
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are deterministic, repeating them changes nothing
		return false
	case ErrorClassServer:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
