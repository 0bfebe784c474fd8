package server

import (
	"context"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"statusmonitor/internal/logger"
	"statusmonitor/internal/models"
)

//go:embed static/*
var embeddedStatic embed.FS

// StatusSource answers pull queries with the live snapshot.
type StatusSource interface {
	Current() models.Snapshot
}

// Server wraps HTTP serving of the dashboard, the status API and the
// push channel.
type Server struct {
	httpServer *http.Server
	source     StatusSource
	hub        *Hub
	staticFS   fs.FS
	log        logger.Logger
}

// New creates a configured HTTP server. Access logs are written to accessLog.
func New(addr string, source StatusSource, hub *Hub, accessLog io.Writer, log logger.Logger) *Server {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}
	if log == nil {
		log = logger.Noop()
	}
	if accessLog == nil {
		accessLog = io.Discard
	}

	s := &Server{
		source:   source,
		hub:      hub,
		staticFS: staticFS,
		log:      log,
	}
	router := mux.NewRouter()
	s.registerRoutes(router)

	handler := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log}))(router)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handlers.LoggingHandler(accessLog, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown disconnects dashboards and gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(r *mux.Router) {
	fileServer := http.FileServer(http.FS(s.staticFS))

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", fileServer)).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.hub.ServeWS).Methods(http.MethodGet)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data, err := fs.ReadFile(s.staticFS, "index.html")
	if err != nil {
		http.Error(w, "index missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Current().Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type recoveryLogger struct {
	log logger.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.log.Error("handler panic: %v", args)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
