// Package server exposes boards over HTTP: the websocket sync endpoint plus read-only JSON views.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/astromechza/sketchsync/pkg/board"
	"github.com/astromechza/sketchsync/pkg/history"
	"github.com/astromechza/sketchsync/pkg/presence"
	"github.com/astromechza/sketchsync/pkg/relay"
)

type Options struct {
	Logger *slog.Logger
	// AllowedOrigins restricts browser origins on the sync endpoint. Empty allows any origin.
	AllowedOrigins []string
	Relay          relay.Options
}

type Server struct {
	registry *board.Registry
	logger   *slog.Logger
	opts     Options
	upgrader websocket.Upgrader
}

type Snapshot struct {
	Board   string           `json:"board"`
	Version uint64           `json:"version"`
	History []history.Stroke `json:"history"`
}

type Presence struct {
	Board   string            `json:"board"`
	Cursors []presence.Cursor `json:"cursors"`
}

func New(registry *board.Registry, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Relay.Logger == nil {
		opts.Relay.Logger = opts.Logger
	}
	s := &Server{registry: registry, logger: opts.Logger, opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}

// Handler builds the router with request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.logger.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/boards/{board}/sync").HandlerFunc(s.syncBoard)
	r.Methods(http.MethodGet).Path("/boards/{board}/latest").HandlerFunc(s.getBoard)
	r.Methods(http.MethodGet).Path("/boards/{board}/presence").HandlerFunc(s.getPresence)
	r.Methods(http.MethodGet).Path("/sync").HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s.serveSync(writer, request, board.DefaultBoardID)
	})
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.health)
	return r
}

func (s *Server) writeJSON(writer http.ResponseWriter, status int, v any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		s.logger.Error("failed to write out", "err", err)
	}
}

func (s *Server) lookup(writer http.ResponseWriter, request *http.Request) (*board.Board, bool) {
	id := mux.Vars(request)["board"]
	if err := board.ValidateID(id); err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	b, ok := s.registry.Lookup(id)
	if !ok {
		writer.WriteHeader(http.StatusNotFound)
		return nil, false
	}
	return b, true
}

func (s *Server) getBoard(writer http.ResponseWriter, request *http.Request) {
	b, ok := s.lookup(writer, request)
	if !ok {
		return
	}
	strokes, version := b.Snapshot()
	s.writeJSON(writer, http.StatusOK, Snapshot{Board: b.ID(), Version: version, History: strokes})
}

func (s *Server) getPresence(writer http.ResponseWriter, request *http.Request) {
	b, ok := s.lookup(writer, request)
	if !ok {
		return
	}
	cursors := b.Cursors()
	if cursors == nil {
		cursors = []presence.Cursor{}
	}
	s.writeJSON(writer, http.StatusOK, Presence{Board: b.ID(), Cursors: cursors})
}

func (s *Server) health(writer http.ResponseWriter, _ *http.Request) {
	boards, connections := 0, 0
	s.registry.Range(func(b *board.Board) bool {
		boards++
		connections += b.Connections()
		return true
	})
	s.writeJSON(writer, http.StatusOK, map[string]any{"status": "ok", "boards": boards, "connections": connections})
}

func (s *Server) syncBoard(writer http.ResponseWriter, request *http.Request) {
	s.serveSync(writer, request, mux.Vars(request)["board"])
}

func (s *Server) serveSync(writer http.ResponseWriter, request *http.Request, id string) {
	b, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, board.ErrClosed) {
			http.Error(writer, err.Error(), http.StatusServiceUnavailable)
		} else {
			http.Error(writer, err.Error(), http.StatusBadRequest)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	session, err := b.Join(request.Context())
	if err != nil {
		s.logger.Error("failed to join", "board", id, "err", err)
		return
	}
	defer b.Leave(session)

	if err := relay.Sync(request.Context(), conn, b, session, s.opts.Relay); err != nil {
		s.logger.Error("failed to sync", "board", id, "user", session.ID, "err", err)
	}
}
