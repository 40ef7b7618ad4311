// Package api defines the JSON bodies of the apicache administrative endpoints.
// The server in internal/server writes them and pkg/client reads them.
package api

import "encoding/json"

// Admin routes, relative to the server root.
const (
	PathStats    = "/cache"
	PathMaxSize  = "/cache/maxsize"
	PathClearAll = "/cache/clear-all"
	PathEntries  = "/cache/entries"
)

// Machine-readable error codes.
const (
	CodeInvalidCapacity  = "invalid_capacity"
	CodeCapacityTooSmall = "capacity_too_small"
	CodeBadPattern       = "bad_pattern"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal"
)

// ErrorResponse is returned with every 4xx and 5xx admin response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Requested int    `json:"requested,omitempty"`
	Current   int    `json:"current,omitempty"`
}

// MaxSizeRequest is the body of PUT /cache/maxsize. MaxSize may be a JSON
// number or a string; the server parses it.
type MaxSizeRequest struct {
	MaxSize json.RawMessage `json:"max_size"`
}

// MaxSizeResponse reports the capacity limit.
type MaxSizeResponse struct {
	MaxSize int `json:"max_size"`
}

// ClearResponse confirms a clear. Deleted is set for pattern clears.
type ClearResponse struct {
	Cleared string `json:"cleared"`
	Deleted *int   `json:"deleted,omitempty"`
}

// RawValue turns a JSON number or string into the raw text the capacity parser expects.
func RawValue(msg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return string(msg)
}
