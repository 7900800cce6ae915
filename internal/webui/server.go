package webui

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/L1nMay/homeports/internal/config"
	"github.com/L1nMay/homeports/internal/logger"
	"github.com/L1nMay/homeports/internal/metrics"
	"github.com/L1nMay/homeports/internal/model"
	"github.com/L1nMay/homeports/internal/scan"
	"github.com/L1nMay/homeports/internal/storage"
)

//go:embed assets/*
var assetsFS embed.FS

// Store is the persistence the web UI reads and annotates.
type Store interface {
	SetNote(ip, name string) error
	Names() (map[string]string, error)
	ListScanRuns(limit int) ([]model.ScanRun, error)
	GetStats() (storage.Stats, error)
}

type Server struct {
	cfg     *config.Config
	store   Store
	runner  *scan.Runner
	metrics *metrics.Metrics

	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer wires the HTTP API. m may be nil.
func NewServer(cfg *config.Config, store Store, runner *scan.Runner, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		runner:  runner,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/network", s.handleNetwork).Methods(http.MethodGet)
	api.HandleFunc("/networks", s.handleNetworks).Methods(http.MethodGet)

	api.HandleFunc("/scan/devices", s.handleScanDevices).Methods(http.MethodPost)
	api.HandleFunc("/scan/ports/{ip}", s.handleScanPorts).Methods(http.MethodPost)
	api.HandleFunc("/scan/all", s.handleScanAll).Methods(http.MethodPost)
	api.HandleFunc("/scan/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/scan/pause", s.handlePause).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan/stream", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/scan/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/scan/ws", s.handleWebSocket).Methods(http.MethodGet)

	api.HandleFunc("/speed", s.handleSpeedList).Methods(http.MethodGet)
	api.HandleFunc("/speed", s.handleSpeed).Methods(http.MethodPost)
	api.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/device/note", s.handleNote).Methods(http.MethodPost)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/clear", s.handleClear).Methods(http.MethodPost)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	static, _ := fs.Sub(assetsFS, "assets")
	files := http.FileServer(http.FS(static))
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.Handle("/app.js", files).Methods(http.MethodGet)
	r.Handle("/style.css", files).Methods(http.MethodGet)

	return r
}

// Handler returns the router wrapped with request logging and CORS.
func (s *Server) Handler() http.Handler {
	logged := handlers.CustomLoggingHandler(io.Discard, s.router, s.logRequest)
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
	)(logged)
}

// logRequest is called by the logging handler once the response is written.
func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	route := p.URL.Path
	var match mux.RouteMatch
	if s.router.Match(p.Request, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			route = tpl
		}
	}

	logger.Debugf("webui %s %s %d %dB %s", p.Request.Method, p.URL.Path, p.StatusCode, p.Size,
		time.Since(p.TimeStamp).Round(time.Millisecond))
	s.metrics.HTTPRequest(route, p.StatusCode)
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("webui panic on %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	b, err := assetsFS.ReadFile("assets/index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFor maps runner errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scan.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, scan.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scan.ErrUnknownProfile),
		errors.Is(err, scan.ErrUnknownPortMode),
		errors.Is(err, scan.ErrInvalidAddress):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
