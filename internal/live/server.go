package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/scopegrab/scopegrab/internal/capture"
	"github.com/scopegrab/scopegrab/internal/history"
	"github.com/scopegrab/scopegrab/internal/render"
	"github.com/scopegrab/scopegrab/internal/resilience"
	"github.com/scopegrab/scopegrab/internal/syncx"
	"github.com/scopegrab/scopegrab/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// FrameMessage carries one processed capture. Image is PNG, which
// encoding/json serializes as base64.
type FrameMessage struct {
	Type    string    `json:"type"`
	TakenAt time.Time `json:"taken_at"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Image   []byte    `json:"image"`
}

type RefreshMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Options configures the live view loop.
type Options struct {
	Interval      time.Duration // time between captures
	DedupDistance int           // frames within this pHash distance are not re-broadcast
	Spec          render.Spec   // annotation applied to every frame
	RenderOpts    render.Options
}

// Server polls the instrument and fans finished frames out to WebSocket
// clients. A circuit breaker around the instrument keeps a powered-off
// scope from being hammered every tick.
type Server struct {
	grab    *capture.Grabber
	store   *history.Store // nil disables the history endpoint's backing data
	opts    Options
	breaker *resilience.Breaker

	latest *syncx.RWGuard[*FrameMessage]

	// captureMu serializes captures: the grabber and its SCPI client carry
	// one command stream, and refresh requests race the ticker loop.
	captureMu sync.Mutex

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a live view server.
func New(grab *capture.Grabber, store *history.Store, opts Options) *Server {
	if opts.Interval < MinInterval {
		opts.Interval = MinInterval
	}
	return &Server{
		grab:       grab,
		store:      store,
		opts:       opts,
		breaker:    resilience.NewBreaker(resilience.LiveConfig()),
		latest:     syncx.NewGuard[*FrameMessage](nil),
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/capture", s.handleCapture)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

// Run captures frames at the configured interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.captureOnce(ctx)
		}
	}
}

func (s *Server) captureOnce(ctx context.Context) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	ctx, span := trace.StartSpan(ctx, "live_capture")
	defer span.End()
	log := trace.Logger(ctx)

	res, err := resilience.ExecuteWithResult(s.breaker, func() (*capture.Result, error) {
		return s.grab.Screenshot(ctx, s.opts.Spec, s.opts.RenderOpts)
	})
	if err != nil {
		if err != resilience.ErrOpen {
			log.Warn("live capture failed", "error", err)
		}
		return
	}

	if !s.grab.Changed(res, s.opts.DedupDistance) {
		log.Debug("frame unchanged, skipping broadcast")
		return
	}

	data, err := capture.Encode(res.Image, "png")
	if err != nil {
		log.Error("frame encode failed", "error", err)
		return
	}

	frame := &FrameMessage{
		Type:    "frame",
		TakenAt: res.TakenAt,
		Width:   res.Image.Bounds().Dx(),
		Height:  res.Image.Bounds().Dy(),
		Image:   data,
	}
	s.latest.Set(frame)
	s.broadcast(frame)
}

func (s *Server) broadcast(frame *FrameMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			_ = wsjson.Write(context.Background(), c, frame)
		}(conn)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// New clients get the current frame right away.
	if frame := s.latest.Get(); frame != nil {
		_ = wsjson.Write(baseCtx, conn, frame)
	}

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "refresh":
			ctx := baseCtx
			if tc, ok := trace.FromMessage(msg); ok {
				ctx = trace.WithContext(ctx, trace.NewChild(tc))
			} else {
				ctx, _ = trace.EnsureContext(ctx)
			}
			s.captureOnce(ctx)
		}
	}
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	frame := s.latest.Get()
	if frame == nil {
		http.Error(w, `{"error":"no capture yet"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(frame)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.store == nil {
		json.NewEncoder(w).Encode([]history.Capture{})
		return
	}

	rows, err := s.store.Recent(r.Context(), HistoryLimit)
	if err != nil {
		trace.Logger(r.Context()).Error("history query failed", "error", err)
		http.Error(w, `{"error":"history unavailable"}`, http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []history.Capture{}
	}
	json.NewEncoder(w).Encode(rows)
}
