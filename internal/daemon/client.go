package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Client talks to a running daemon over its control socket. One
// connection carries one request.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient returns a client for the daemon at cfg.SocketPath.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// IsRunning reports whether the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks that the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var result PingResult
	if err := c.call(ctx, MethodPing, nil, &result); err != nil {
		return err
	}
	if !result.Pong {
		return fmt.Errorf("daemon answered ping without pong")
	}
	return nil
}

// Status fetches the daemon's status report.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Query asks the daemon for the postings under one key of one index.
func (c *Client) Query(ctx context.Context, params QueryParams) ([]QueryHit, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var hits []QueryHit
	if err := c.call(ctx, MethodQuery, params, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// Rebuild asks the daemon to rebuild one index from scratch.
func (c *Client) Rebuild(ctx context.Context, index string) error {
	params := RebuildParams{Index: index}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	var result RebuildResult
	return c.call(ctx, MethodRebuild, params, &result)
}

// Flush asks the daemon to persist buffered index state.
func (c *Client) Flush(ctx context.Context) error {
	var result FlushResult
	return c.call(ctx, MethodFlush, nil, &result)
}

// call runs one request round trip and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s failed: %s (code: %d)", method, resp.Error.Message, resp.Error.Code)
	}

	if out == nil || resp.Result == nil {
		return nil
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

func (c *Client) connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
