package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/request"
)

// Surface is the part of the coordinator the bridge drives.
type Surface interface {
	RegisterCallback(ctx context.Context, client request.ClientID, l callback.Listener) error
	UnregisterCallback(ctx context.Context, client request.ClientID) error
	SupportedStates(ctx context.Context) ([]int, error)
	RequestState(ctx context.Context, client request.ClientID, token request.Token, identifier int, flags request.Flags) error
	CancelRequest(ctx context.Context, client request.ClientID, token request.Token) error
	Info(ctx context.Context) (coordinator.Info, error)
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address for Start.
	Addr string

	// TokenHash is a bcrypt hash of the bearer token. Empty disables auth.
	TokenHash string

	// RequestRate is the sustained per-client rate of request frames per
	// second. Zero disables limiting.
	RequestRate float64

	// RequestBurst is the per-client burst size.
	RequestBurst int

	// Logger receives connection logs. Nil discards them.
	Logger *slog.Logger
}

// Server accepts WebSocket clients.
type Server struct {
	config   Config
	surface  Surface
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	clients    map[*Client]bool
	stopped    bool
	httpServer *http.Server
	listener   net.Listener
}

// ErrServerStopped is returned when starting a stopped server.
var ErrServerStopped = errors.New("bridge server stopped")

// New creates a server for surface.
func New(cfg Config, surface Surface) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		config:  cfg,
		surface: surface,
		logger:  logger,
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServerStopped
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler()}

	go func() {
		s.logger.Info("bridge listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes every client and the listener.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]bool)
	srv := s.httpServer
	s.mu.Unlock()

	if srv != nil {
		return srv.Close()
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.TokenHash != "" {
		token := extractBearerToken(r)
		if token == "" {
			http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.config.TokenHash), []byte(token)); err != nil {
			s.logger.Warn("connection rejected: invalid token", "remote", r.RemoteAddr)
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		http.Error(w, "server stopped", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(s, conn)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[client] = true
	s.mu.Unlock()

	s.logger.Info("client connected", "client", client.id, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

// removeClient drops client and unregisters it from the coordinator.
func (s *Server) removeClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	if c.registered() {
		if err := s.surface.UnregisterCallback(context.Background(), c.id); err != nil {
			s.logger.Debug("unregister on disconnect failed", "client", c.id, "error", err)
		}
	}
	s.logger.Info("client disconnected", "client", c.id, "remaining", s.ClientCount())
}

// extractBearerToken reads "Authorization: Bearer <token>", falling back to
// the token query parameter.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	if len(auth) > len(bearerPrefix) {
		prefix := auth[:len(bearerPrefix)]
		if prefix == bearerPrefix || prefix == "bearer " {
			return auth[len(bearerPrefix):]
		}
	}
	return r.URL.Query().Get("token")
}

// HashToken returns a bcrypt hash suitable for Config.TokenHash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
