// Package statusz serves a read-only view of the running match over HTTP:
// /healthz, /session (JSON snapshot), /board.png and /matches (recent archive).
package statusz

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/tafl-htp-bot/internal/archive"
	"github.com/park285/tafl-htp-bot/internal/obslog"
	"github.com/park285/tafl-htp-bot/internal/render"
	"github.com/park285/tafl-htp-bot/pkg/matchdto"
)

const (
	renderTimeout      = 3 * time.Second
	defaultRecentLimit = 20
)

// Server implements session.Reporter. Publish stores a copy, so handlers never
// share memory with the session goroutine.
type Server struct {
	renderer render.BoardRenderer
	lister   archive.Lister
	started  time.Time

	mu      sync.RWMutex
	current *matchdto.Snapshot

	srv *fasthttp.Server
}

// NewServer builds the handler set. lister may be nil when no archive is configured.
func NewServer(renderer render.BoardRenderer, lister archive.Lister) *Server {
	s := &Server{renderer: renderer, lister: lister, started: time.Now()}
	s.srv = &fasthttp.Server{
		Handler:      s.Handle,
		Name:         "tafl-htp-bot",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Publish(snap matchdto.Snapshot) {
	c := snap.Clone()
	s.mu.Lock()
	s.current = &c
	s.mu.Unlock()
}

func (s *Server) snapshot() (matchdto.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return matchdto.Snapshot{}, false
	}
	return s.current.Clone(), true
}

// Serve blocks until ln is closed or Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	obslog.L().Info("statusz_listen", zap.String("addr", ln.Addr().String()))
	return s.srv.Serve(ln)
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/healthz":
		s.handleHealth(ctx)
	case "/session":
		s.handleSession(ctx)
	case "/board.png":
		s.handleBoard(ctx)
	case "/matches":
		s.handleMatches(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

type health struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	MatchID string `json:"match_id,omitempty"`
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	h := health{Status: "ok", Uptime: time.Since(s.started).Truncate(time.Second).String()}
	if snap, ok := s.snapshot(); ok {
		h.MatchID = snap.MatchID
	}
	writeJSON(ctx, fasthttp.StatusOK, h)
}

func (s *Server) handleSession(ctx *fasthttp.RequestCtx) {
	snap, ok := s.snapshot()
	if !ok {
		ctx.Error("no match yet", fasthttp.StatusNotFound)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, snap)
}

func (s *Server) handleBoard(ctx *fasthttp.RequestCtx) {
	snap, ok := s.snapshot()
	if !ok {
		ctx.Error("no match yet", fasthttp.StatusNotFound)
		return
	}
	rctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	img, err := s.renderer.RenderPNG(rctx, snap)
	if err != nil {
		obslog.L().Warn("statusz_render_failed", zap.String("match_id", snap.MatchID), zap.Error(err))
		ctx.Error("render failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("image/png")
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetBody(img)
}

func (s *Server) handleMatches(ctx *fasthttp.RequestCtx) {
	if s.lister == nil {
		ctx.Error("archive disabled", fasthttp.StatusNotFound)
		return
	}
	limit := defaultRecentLimit
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n <= 0 {
			ctx.Error("invalid limit", fasthttp.StatusBadRequest)
			return
		}
		limit = n
	}
	lctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	matches, err := s.lister.Recent(lctx, limit)
	if err != nil {
		obslog.L().Warn("statusz_recent_failed", zap.Error(err))
		ctx.Error("archive unavailable", fasthttp.StatusServiceUnavailable)
		return
	}
	// transcripts are large; the list view omits them
	for _, m := range matches {
		m.Transcript = ""
	}
	writeJSON(ctx, fasthttp.StatusOK, matches)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
