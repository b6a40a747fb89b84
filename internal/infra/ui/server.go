// Package ui serves the push-to-talk page and carries press/release gestures
// to the session over a websocket.
package ui

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voice-chatbot/internal/domain"
)

//go:embed page.html
var page []byte

// Controller is the session surface the page drives.
type Controller interface {
	Press(ctx context.Context) bool
	Release() bool
	State() domain.SessionState
	Subscribe() (<-chan domain.SessionState, func())
}

type message struct {
	Type  string              `json:"type"`
	State domain.SessionState `json:"state,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Server struct {
	addr        string
	server      *http.Server
	listener    net.Listener
	controller  Controller
	icon        []byte
	logger      *slog.Logger
	mux         *http.ServeMux
	rateLimiter *RateLimiter

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	clients int
}

// NewServer loads the microphone icon and builds the routes. A missing icon is
// an error: the control cannot be drawn without it.
func NewServer(addr, iconPath string, controller Controller, metrics http.Handler, logger *slog.Logger) (*Server, error) {
	icon, err := os.ReadFile(iconPath)
	if err != nil {
		return nil, fmt.Errorf("loading microphone icon: %w", err)
	}

	s := &Server{
		addr:        addr,
		controller:  controller,
		icon:        icon,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute),
		baseCtx:     context.Background(),
	}
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /icon.png", s.handleIcon)
	s.mux.HandleFunc("GET /ws", s.rateLimiter.Middleware(s.handleGestures))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	return s, nil
}

// Start listens on the configured address. Sessions started by gestures
// inherit ctx.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.baseCtx = ctx
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.logger.Info("push-to-talk page available", "url", "http://"+ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

// Addr is the bound address once started, or the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Write(s.icon)
}

func (s *Server) handleGestures(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.clients++
	ctx := s.baseCtx
	s.mu.Unlock()

	states, unsubscribe := s.controller.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(message{Type: "state", State: s.controller.State()}); err != nil {
		s.dropClient()
		return
	}

	go func() {
		for state := range states {
			if err := conn.WriteJSON(message{Type: "state", State: state}); err != nil {
				return
			}
		}
	}()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		switch domain.GestureType(msg.Type) {
		case domain.GesturePress:
			if s.controller.Press(ctx) {
				s.logger.Debug("control pressed")
			}
		case domain.GestureRelease:
			if s.controller.Release() {
				s.logger.Debug("control released")
			}
		default:
			s.logger.Warn("unknown gesture", "type", msg.Type)
		}
	}

	s.dropClient()
}

// dropClient releases the control when the last page goes away mid-press.
func (s *Server) dropClient() {
	s.mu.Lock()
	s.clients--
	last := s.clients == 0
	s.mu.Unlock()

	if last && s.controller.Release() {
		s.logger.Info("page disconnected while recording, releasing")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	clients := s.clients
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","state":"%s","clients":%d}`, s.controller.State(), clients)
}
