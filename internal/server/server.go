package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dpend/internal/sim"
)

const DefaultFPS = 25

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the websocket envelope in both directions. Clients send
// {"type":"click"} or {"type":"reset"}; the server sends frames.
type Message struct {
	Type  string     `json:"type"`
	Frame *sim.Frame `json:"frame,omitempty"`
}

// Server hosts a simulator over HTTP. One tick goroutine owns the
// simulator; handlers only queue kicks and read the last published frame.
type Server struct {
	logger   *slog.Logger
	sim      *sim.Simulator
	dt       float64
	interval time.Duration
	hub      *Hub
	router   *gin.Engine

	resetReq atomic.Bool
	started  time.Time

	mu     sync.RWMutex
	latest []byte
}

type Option func(*Server)

// WithFPS sets how many ticks per second the server advances and
// broadcasts.
func WithFPS(fps int) Option {
	return func(s *Server) {
		if fps > 0 {
			s.interval = time.Second / time.Duration(fps)
		}
	}
}

func New(logger *slog.Logger, simulator *sim.Simulator, dt float64, opts ...Option) *Server {
	s := &Server{
		logger:   logger,
		sim:      simulator,
		dt:       dt,
		interval: time.Second / DefaultFPS,
		hub:      NewHub(logger),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publish()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", s.health)
	r.GET("/state", s.state)
	r.POST("/perturb", s.perturb)
	r.POST("/reset", s.reset)
	r.GET("/ws", s.websocket)
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.hub.Run(ctx) })
	g.Go(func() error { return s.loop(ctx) })
	g.Go(func() error {
		s.logger.Info("serving", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) loop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.hub.Broadcast(s.Tick())
		}
	}
}

// Tick advances the simulator by one frame and returns the encoded frame
// it published. It must only be called from the owning goroutine.
func (s *Server) Tick() []byte {
	if s.resetReq.Swap(false) {
		s.sim.Reset()
		s.logger.Info("simulation reset")
	}
	s.sim.Advance(s.dt)
	return s.publish()
}

// requestReset drops kicks queued before the request and flags a reset for
// the next Tick. Kicks queued after it survive the reset.
func (s *Server) requestReset() {
	if n := s.sim.DiscardPending(); n > 0 {
		s.logger.Debug("dropped kicks queued before reset", slog.Int("kicks", n))
	}
	s.resetReq.Store(true)
}

func (s *Server) publish() []byte {
	frame := s.sim.Frame()
	data, err := json.Marshal(Message{Type: "frame", Frame: &frame})
	if err != nil {
		// NaN and Inf have no JSON encoding
		s.logger.Warn("state diverged, frame not encodable", slog.Float64("t", frame.Time))
		data, _ = json.Marshal(Message{Type: "diverged"})
	}

	s.mu.Lock()
	s.latest = data
	s.mu.Unlock()
	return data
}

func (s *Server) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("ignoring malformed websocket message", slog.Any("error", err))
		return
	}
	switch msg.Type {
	case "click", "perturb":
		s.sim.QueuePerturb()
	case "reset":
		s.requestReset()
	default:
		s.logger.Debug("ignoring websocket message", slog.String("type", msg.Type))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

func (s *Server) state(c *gin.Context) {
	s.mu.RLock()
	data := s.latest
	s.mu.RUnlock()
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) perturb(c *gin.Context) {
	s.sim.QueuePerturb()
	c.JSON(http.StatusAccepted, gin.H{"pending": s.sim.Pending()})
}

func (s *Server) reset(c *gin.Context) {
	s.requestReset()
	c.JSON(http.StatusAccepted, gin.H{"reset": true})
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection to websocket", slog.Any("error", err))
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go s.hub.writePump(client)
	s.hub.readPump(client, s.handleMessage)
}
