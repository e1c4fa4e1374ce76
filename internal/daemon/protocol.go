package daemon

import "fmt"

// JSON-RPC 2.0 method names.
const (
	MethodPing    = "ping"
	MethodStatus  = "status"
	MethodQuery   = "query"
	MethodRebuild = "rebuild"
	MethodFlush   = "flush"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Daemon-specific error codes.
const (
	ErrCodeUnknownIndex = -32001
	ErrCodeQueryFailed  = -32002
	ErrCodeNotReady     = -32003
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error is a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewSuccessResponse builds a result response.
func NewSuccessResponse(id string, result any) Response {
	return Response{JSONRPC: "2.0", Result: result, ID: id}
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// QueryParams asks for the postings under one key of one index.
type QueryParams struct {
	// Index is the index id (required).
	Index string `json:"index"`

	// Key is the index key to look up (required).
	Key string `json:"key"`

	// PathPrefix restricts results to files under this prefix.
	PathPrefix string `json:"path_prefix,omitempty"`

	// Limit caps the number of hits. Default: 100.
	Limit int `json:"limit,omitempty"`

	// ReliableOnly excludes files whose reindexing is still pending
	// instead of waiting for them.
	ReliableOnly bool `json:"reliable_only,omitempty"`
}

// Validate checks required fields and normalizes the limit.
func (p *QueryParams) Validate() error {
	if p.Index == "" {
		return fmt.Errorf("index is required")
	}
	if p.Key == "" {
		return fmt.Errorf("key is required")
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	return nil
}

// QueryHit is one file contributing the queried key.
type QueryHit struct {
	Path  string `json:"path"`
	Value string `json:"value,omitempty"`
}

// RebuildParams names the index to rebuild.
type RebuildParams struct {
	Index string `json:"index"`
}

// Validate checks required fields.
func (p *RebuildParams) Validate() error {
	if p.Index == "" {
		return fmt.Errorf("index is required")
	}
	return nil
}

// IndexStatus is one registered index in a status report.
type IndexStatus struct {
	ID         string `json:"id"`
	Version    int    `json:"version"`
	Rebuilding bool   `json:"rebuilding"`
}

// StatusResult is the daemon's status report.
type StatusResult struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	Uptime       string        `json:"uptime"`
	WatcherMode  string        `json:"watcher_mode,omitempty"`
	PendingFiles int           `json:"pending_files"`
	OverlayDocs  int           `json:"overlay_docs"`
	Indexes      []IndexStatus `json:"indexes,omitempty"`
}

// PingResult answers a ping.
type PingResult struct {
	Pong bool `json:"pong"`
}

// FlushResult answers a flush.
type FlushResult struct {
	Flushed bool `json:"flushed"`
}

// RebuildResult answers a rebuild request.
type RebuildResult struct {
	Requested bool `json:"requested"`
}
