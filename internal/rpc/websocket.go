package rpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 64 * 1024
)

// Message is a frame pushed to WebSocket subscribers.
type Message struct {
	Type        string                      `json:"type"`
	Transaction *emulator.TransactionResult `json:"transaction,omitempty"`
}

// WebSocketServer streams every sealed transaction to connected clients.
type WebSocketServer struct {
	emu      *emulator.Emulator
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[string]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func newWebSocketServer(emu *emulator.Emulator, logger *zap.Logger) *WebSocketServer {
	return &WebSocketServer{
		emu:    emu,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]context.CancelFunc),
	}
}

// ServeHTTP upgrades the request and streams results until the client
// disconnects, the emulator stops or the server closes.
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		cancel()
		conn.Close()
		return
	}
	ws.conns[id] = cancel
	ws.wg.Add(1)
	ws.mu.Unlock()

	logger := ws.logger.With(zap.String("conn", id))
	logger.Debug("websocket connected", zap.String("remote", r.RemoteAddr))

	defer func() {
		ws.mu.Lock()
		delete(ws.conns, id)
		ws.mu.Unlock()
		ws.wg.Done()
		logger.Debug("websocket disconnected")
	}()

	results, unsubscribe := ws.emu.Subscribe()
	defer unsubscribe()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ws.writeLoop(ctx, conn, results, logger)

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	cancel()
	<-readerDone
}

func (ws *WebSocketServer) writeLoop(ctx context.Context, conn *websocket.Conn, results <-chan *emulator.TransactionResult, logger *zap.Logger) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(Message{Type: "transaction", Transaction: res}); err != nil {
				logger.Debug("websocket send failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

// Close disconnects every client and waits for their handlers to finish.
func (ws *WebSocketServer) Close() {
	ws.mu.Lock()
	ws.closed = true
	for _, cancel := range ws.conns {
		cancel()
	}
	ws.mu.Unlock()
	ws.wg.Wait()
}

// Connections returns the number of connected clients.
func (ws *WebSocketServer) Connections() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.conns)
}
