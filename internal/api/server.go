package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
	"github.com/mosesmc52/journal-bot/internal/reminder"
	"github.com/mosesmc52/journal-bot/internal/scheduler"
	"github.com/mosesmc52/journal-bot/internal/store"
)

// DefaultAddr is the default listen address for the HTTP server.
const DefaultAddr = ":8080"

// helloMessage is served on GET / as the bot's introduction.
const helloMessage = "Hi, I'm Samantha. I help you remember your life."

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address (host:port).
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Deps carries the collaborators the HTTP handlers dispatch into.
type Deps struct {
	Store     store.Store
	Reminders *reminder.Service
	Scheduler *scheduler.Scheduler
	// Webhook receives inbound Twilio requests; nil disables the route.
	Webhook http.HandlerFunc
}

// Server is the journal bot HTTP server.
type Server struct {
	addr      string
	store     store.Store
	reminders *reminder.Service
	sched     *scheduler.Scheduler
	webhook   http.HandlerFunc
	httpSrv   *http.Server
}

// NewServer creates an API server over the given collaborators.
func NewServer(deps Deps, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		addr:      cfg.Addr,
		store:     deps.Store,
		reminders: deps.Reminders,
		sched:     deps.Scheduler,
		webhook:   deps.Webhook,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.helloHandler)
	mux.HandleFunc("/health", s.healthHandler)
	if s.webhook != nil {
		mux.HandleFunc("/webhook/twilio", s.webhook)
	}
	mux.HandleFunc("/reminders", s.remindersHandler)
	mux.HandleFunc("/reminders/", s.reminderDeleteHandler)
	mux.HandleFunc("/messages", s.messagesHandler)
	mux.HandleFunc("/messages/latest", s.latestMessageHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/jobs", s.jobsHandler)
	return mux
}

// Start begins serving HTTP in a background goroutine.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

// helloHandler serves the bot introduction on the root path and rejects any
// other unmatched route.
func (s *Server) helloHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONResponse(w, http.StatusNotFound, models.Error(fmt.Sprintf("endpoint %s not supported", r.URL.Path)))
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(helloMessage, nil))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}
