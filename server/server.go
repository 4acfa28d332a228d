// Package server exposes the dashboard HTTP surface: task and reply
// rule CRUD, session status and logout, and the runtime settings
// endpoints. Handlers mutate the in-memory collections, persist a
// snapshot, and keep the scheduler in sync.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/klchiu/waops/action"
	"github.com/klchiu/waops/config"
	"github.com/klchiu/waops/task"
	"github.com/klchiu/waops/wa"
)

// Scheduler is the trigger-registry surface the handlers drive.
type Scheduler interface {
	Schedule(t task.Task)
	Unschedule(id string)
	StopAll()
}

// Dispatcher runs one task occurrence, used by the test-fire endpoint.
type Dispatcher interface {
	Fire(ctx context.Context, t task.Task) error
}

// Persister writes collection snapshots after mutations.
type Persister interface {
	SaveTasks(tasks []task.Task) error
	SaveRules(rules []action.Rule) error
}

// Mailer is the alert-email surface the settings endpoints drive.
type Mailer interface {
	SetConfig(cfg config.EmailConfig)
	SendTest() error
}

// Deps collects everything the server needs. All fields are required
// except Hub, which is created when nil.
type Deps struct {
	Config    *config.Config
	Viper     *viper.Viper
	Tasks     *task.Collection
	Rules     *action.Collection
	Store     Persister
	Scheduler Scheduler
	Dispatch  Dispatcher
	Gateway   wa.Gateway
	Mailer    Mailer
	Hub       *Hub
	Logger    *zap.SugaredLogger
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg     *config.Config
	v       *viper.Viper
	tasks   *task.Collection
	rules   *action.Collection
	store   Persister
	sched   Scheduler
	disp    Dispatcher
	gateway wa.Gateway
	mail    Mailer
	hub     *Hub
	log     *zap.SugaredLogger

	// guards the mutable config sections (email, server host)
	cfgMu sync.RWMutex

	httpSrv *http.Server
}

// New builds the server and its route table.
func New(d Deps) *Server {
	s := &Server{
		cfg:     d.Config,
		v:       d.Viper,
		tasks:   d.Tasks,
		rules:   d.Rules,
		store:   d.Store,
		sched:   d.Scheduler,
		disp:    d.Dispatch,
		gateway: d.Gateway,
		mail:    d.Mailer,
		hub:     d.Hub,
		log:     d.Logger,
	}
	if s.hub == nil {
		s.hub = NewHub(s.statusPayload, d.Logger)
	}
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", d.Config.Server.Port),
		Handler: s.routes(),
	}
	return s
}

// Hub returns the websocket status hub so session callbacks can
// broadcast into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// BroadcastStatus pushes the current session state to every connected
// dashboard client.
func (s *Server) BroadcastStatus() {
	s.hub.Broadcast(s.statusPayload())
}

// routes configures all HTTP handlers
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tasks", s.corsMiddleware(s.handleTasks))              // List/create tasks (GET/POST)
	mux.HandleFunc("/api/tasks/{id}", s.corsMiddleware(s.handleTask))          // Task CRUD (GET/PUT/DELETE)
	mux.HandleFunc("/api/tasks/{id}/toggle", s.corsMiddleware(s.handleTaskToggle))
	mux.HandleFunc("/api/tasks/{id}/test", s.corsMiddleware(s.handleTaskTest)) // Immediate test fire (POST)

	mux.HandleFunc("/api/actions", s.corsMiddleware(s.handleRules))     // List/create reply rules (GET/POST)
	mux.HandleFunc("/api/actions/{id}", s.corsMiddleware(s.handleRule)) // Rule CRUD (GET/PUT/DELETE)
	mux.HandleFunc("/api/actions/{id}/toggle", s.corsMiddleware(s.handleRuleToggle))

	mux.HandleFunc("/api/status", s.corsMiddleware(s.handleStatus))
	mux.HandleFunc("/api/logout", s.corsMiddleware(s.handleLogout))
	mux.HandleFunc("/api/email-config", s.corsMiddleware(s.handleEmailConfig))
	mux.HandleFunc("/api/email-config/test", s.corsMiddleware(s.handleEmailTest))
	mux.HandleFunc("/api/server-config", s.corsMiddleware(s.handleServerConfig))

	mux.HandleFunc("/ws", s.corsMiddleware(s.hub.HandleWebSocket))

	return mux
}

// corsMiddleware adds CORS headers so the dashboard frontend can be
// served from a different origin than the API.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Serve blocks serving HTTP until Shutdown is called.
func (s *Server) Serve() error {
	s.log.Infow("Dashboard HTTP server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpSrv.Shutdown(ctx)
}
