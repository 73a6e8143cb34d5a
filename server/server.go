package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-source-portal/adapters"
	"github.com/jrsteele09/go-source-portal/agreements"
	"github.com/jrsteele09/go-source-portal/apiclient"
	"github.com/jrsteele09/go-source-portal/gate"
	"github.com/jrsteele09/go-source-portal/internal/config"
	"github.com/jrsteele09/go-source-portal/internal/inflight"
	"github.com/jrsteele09/go-source-portal/server/flowstate"
	"github.com/jrsteele09/go-source-portal/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// refresherIdleAfter is how long a browser's agreement refresher keeps running
// without the agreement pages being requested
const refresherIdleAfter = 10 * time.Minute

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	basePath   string
	mux        *http.ServeMux
	handler    http.Handler
	routes     []string
	config     config.Config
	api        *apiclient.Client
	kvFactory  sessions.KeyValueFactory
	gate       *gate.Gate
	tester     *adapters.Tester
	refreshers *agreements.RefresherRegistry
	busy       *inflight.Guard
	flows      flowstate.Repo
	pages      *pageSet
	nowTime    func() time.Time
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithAPIClient replaces the API client built from config
func WithAPIClient(c *apiclient.Client) Option {
	return func(s *Server) {
		s.api = c
	}
}

// WithAdapterTester replaces the gRPC connectivity tester built from config
func WithAdapterTester(t *adapters.Tester) Option {
	return func(s *Server) {
		s.tester = t
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// New builds the portal. kvFactory supplies the durable per-browser namespace
// every session lives in.
func New(cfg config.Config, kvFactory sessions.KeyValueFactory, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if kvFactory == nil {
		return nil, errors.New("[Server New] session key value factory is required")
	}

	s := &Server{
		env:        cfg.GetEnv(),
		basePath:   strings.TrimSuffix(cfg.GetBasePath(), "/"),
		mux:        http.NewServeMux(),
		config:     cfg,
		kvFactory:  kvFactory,
		gate:       gate.New(),
		refreshers: agreements.NewRefresherRegistry(refresherIdleAfter),
		busy:       inflight.NewGuard(),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.api == nil {
		s.api = apiclient.New(cfg.GetAPIBaseURL(),
			apiclient.WithTimeout(cfg.GetAPITimeout()),
			apiclient.WithUserAgent(cfg.GetAppName()),
		)
	}
	if s.tester == nil {
		s.tester = adapters.NewTester(adapters.WithTimeout(cfg.GetConnectivityTimeout()))
	}
	s.flows = flowstate.NewKeyValueRepo(kvFactory, flowstate.DefaultMaxAge, s.nowTime)

	pages, err := parsePages(s.templateFuncs())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}
	s.pages = pages

	s.initRoutes()
	s.logRoutes()

	s.handler = s.mux
	if s.basePath != "" {
		s.handler = http.StripPrefix(s.basePath, s.mux)
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run sweeps idle agreement refreshers until ctx is done
func (s *Server) Run(ctx context.Context) {
	s.refreshers.Run(ctx, time.Minute)
}

// Close stops every background refresher
func (s *Server) Close() {
	s.refreshers.StopAll()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// url prefixes a portal route with the base path
func (s *Server) url(route string) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return s.basePath + route
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], s.url(parts[1]))
		} else {
			logRoute("", s.url(parts[0]))
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
