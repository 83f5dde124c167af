// Package rpc exposes an emulator over HTTP JSON-RPC and WebSocket, and
// provides a client implementing interaction.Client against it.
//
// Requests have the form {"method": "name", "params": [{...}]}. Every
// response is {"result": {...}} with result.status set to "success" or
// "error"; errors carry error, error_code and error_message.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/LeJamon/shalltest/internal/emulator"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxRequestBody = 4 << 20

// Config configures the server.
type Config struct {
	Addr string `mapstructure:"addr"`
	// RateLimit is the sustained number of requests per second; zero
	// disables rate limiting.
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:8888",
		Burst:   1,
		Timeout: 30 * time.Second,
	}
}

// Server handles JSON-RPC requests for one emulator.
type Server struct {
	emu      *emulator.Emulator
	cfg      Config
	logger   *zap.Logger
	registry *MethodRegistry
	limiter  *rate.Limiter
	ws       *WebSocketServer
}

// Request is a JSON-RPC request.
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
}

// NewServer creates a server for emu. A nil logger discards output.
func NewServer(emu *emulator.Emulator, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	s := &Server{
		emu:      emu,
		cfg:      cfg,
		logger:   logger.Named("rpc"),
		registry: NewMethodRegistry(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	s.registerMethods()
	s.ws = newWebSocketServer(emu, s.logger)
	return s
}

// Handler returns the HTTP handler serving JSON-RPC on /, subscriptions on
// /ws and a liveness probe on /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	mux.Handle("/ws", s.ws)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("rpc server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		s.ws.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.ws.Close()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	s.logger.Info("rpc server stopped")
	return err
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
		method := r.URL.Query().Get("command")
		if method == "" {
			method = "server_info"
		}
		s.dispatch(w, r, method, nil)
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.writeResponse(w, nil, newError(CodeInternal, "internal", "failed to read request body"))
		return
	}
	defer r.Body.Close()

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, nil, newError(CodeParseError, "jsonInvalid", "invalid JSON: %v", err))
		return
	}
	if req.Method == "" {
		s.writeResponse(w, nil, newError(CodeMissingCommand, "missingCommand", "missing method field"))
		return
	}

	var params json.RawMessage
	if len(req.Params) > 0 {
		params = req.Params[0]
	}
	s.dispatch(w, r, req.Method, params)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, method string, params json.RawMessage) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeResponse(w, nil, newError(CodeSlowDown, "slowDown", "rate limit exceeded"))
		return
	}

	handler, ok := s.registry.Get(method)
	if !ok {
		s.writeResponse(w, nil, errMethodNotFound(method))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, rpcErr := handler(ctx, params)
	fields := []zap.Field{zap.String("method", method), zap.Duration("took", time.Since(start))}
	if rpcErr != nil {
		s.logger.Debug("rpc call failed", append(fields, zap.String("error", rpcErr.Name), zap.String("message", rpcErr.Message))...)
	} else {
		s.logger.Debug("rpc call", fields...)
	}
	s.writeResponse(w, result, rpcErr)
}

func (s *Server) writeResponse(w http.ResponseWriter, result map[string]any, rpcErr *Error) {
	var body map[string]any
	if rpcErr != nil {
		body = map[string]any{
			"status":        "error",
			"error":         rpcErr.Name,
			"error_code":    rpcErr.Code,
			"error_message": rpcErr.Message,
		}
	} else {
		body = result
		if body == nil {
			body = map[string]any{}
		}
		body["status"] = "success"
	}

	data, err := json.Marshal(map[string]any{"result": body})
	if err != nil {
		s.logger.Error("failed to marshal response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status, code := "ok", http.StatusOK
	if !s.emu.IsRunning() {
		status, code = "stopped", http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "height": s.emu.Height()})
}

// decodeParams decodes params into dst, keeping numbers as json.Number so
// integers survive the trip without becoming floats.
func decodeParams(params json.RawMessage, dst any) *Error {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return errInvalidParams("invalid params: %v", err)
	}
	return nil
}

// Close disconnects WebSocket subscribers. Serve calls it on shutdown; it is
// needed only when the handler is mounted elsewhere.
func (s *Server) Close() {
	s.ws.Close()
}
