package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// RequestHandler serves the daemon's control methods.
type RequestHandler interface {
	HandleQuery(ctx context.Context, params QueryParams) ([]QueryHit, error)
	HandleRebuild(params RebuildParams) error
	HandleFlush(ctx context.Context) error
	GetStatus() StatusResult
}

// Server accepts control requests on a Unix socket.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	log        *slog.Logger
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer returns a server for socketPath.
func NewServer(socketPath string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{socketPath: socketPath, log: log}
}

// SetHandler installs the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe serves until the context ends. The socket is removed
// on exit; a stale one from a crashed run is removed on entry.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.log.Info("control socket listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.log.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection serves one request per connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		s.log.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	_ = encoder.Encode(s.handleRequest(ctx, req))
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())

	case MethodQuery:
		return s.handleQuery(ctx, req)

	case MethodRebuild:
		return s.handleRebuild(req)

	case MethodFlush:
		if s.handler == nil {
			return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
		}
		if err := s.handler.HandleFlush(ctx); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
		}
		return NewSuccessResponse(req.ID, FlushResult{Flushed: true})

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleQuery(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	var params QueryParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	hits, err := s.handler.HandleQuery(ctx, params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeQueryFailed, err.Error())
	}
	return NewSuccessResponse(req.ID, hits)
}

func (s *Server) handleRebuild(req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	var params RebuildParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	if err := s.handler.HandleRebuild(params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeUnknownIndex, err.Error())
	}
	return NewSuccessResponse(req.ID, RebuildResult{Requested: true})
}

// decodeParams round-trips the untyped params into their real shape.
func decodeParams(raw any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode params")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode params")
	}
	return nil
}

func (s *Server) getStatus() StatusResult {
	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.handler != nil {
		h := s.handler.GetStatus()
		status.WatcherMode = h.WatcherMode
		status.PendingFiles = h.PendingFiles
		status.OverlayDocs = h.OverlayDocs
		status.Indexes = h.Indexes
	}
	return status
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
