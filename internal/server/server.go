package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/eventbus"
	"github.com/geto-app/geto/internal/observability"
	"github.com/geto-app/geto/internal/templates"
)

// DefaultListen is the loopback address getod binds when none is configured.
const DefaultListen = "127.0.0.1:7788"

const defaultWatchInterval = time.Second

// Deps are the collaborators behind the HTTP API. Any of them may be nil, in
// which case the matching routes answer 503.
type Deps struct {
	Apply       Applier
	Revert      Reverter
	AutoLaunch  AutoLauncher
	Entries     EntryManager
	Preferences domain.PreferencesRepository
	Cleanup     Cleaner
	Devices     DeviceLister
	Packages    PackageLister
	Permissions PermissionHelper
	Launcher    Launcher
	Bus         *eventbus.Bus

	// Templates defaults to templates.Load.
	Templates func() ([]templates.Template, error)
	Clock     clockwork.Clock
}

// Options tune the transport.
type Options struct {
	Listen         string
	InstanceName   string
	AllowedOrigins []string
	WatchInterval  time.Duration
	MetricsHandler http.Handler
	HTTPMetrics    *observability.HTTPMetrics
}

// APIServer serves the getod HTTP and WebSocket API.
type APIServer struct {
	deps     Deps
	opts     Options
	clock    clockwork.Clock
	router   chi.Router
	inbox    *resultInbox
	origins  originChecker
	upgrader websocket.Upgrader
	started  time.Time

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewAPIServer builds the router and subscribes to the result topics.
func NewAPIServer(deps Deps, opts Options) *APIServer {
	if deps.Templates == nil {
		deps.Templates = templates.Load
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if strings.TrimSpace(opts.Listen) == "" {
		opts.Listen = DefaultListen
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = defaultWatchInterval
	}

	s := &APIServer{
		deps:    deps,
		opts:    opts,
		clock:   clock,
		inbox:   newResultInbox(deps.Bus),
		origins: newOriginChecker(opts.AllowedOrigins),
		started: clock.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return s.origins.Allowed(origin)
		},
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *APIServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("server: already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.opts.Listen, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.httpServer = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[APIServer] serve error: %v", err)
		}
	}()
	log.Printf("[APIServer] listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *APIServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Listen
}

// Shutdown stops accepting requests and releases the result subscriptions.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	s.inbox.Close()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
