// Package api wires the HTTP surface of the backend: routing,
// middleware chain and the handler groups.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/appcuatri/backend/pkg/auth"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/middleware"
	"github.com/appcuatri/backend/pkg/observability"
	"github.com/appcuatri/backend/pkg/push"
	"github.com/appcuatri/backend/pkg/sso"
	"github.com/appcuatri/backend/pkg/storage"
)

// Options carries every dependency the server needs. Verifier, Push and
// LoginLimiter are optional; the matching endpoints degrade gracefully
// when they are absent.
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics

	Users    storage.UserStore
	Products storage.ProductStore
	Files    storage.FileStore

	Tokens *auth.TokenService
	Hasher *auth.PasswordHasher

	Verifier    sso.Verifier
	Provisioner *sso.Provisioner
	Push        push.Sender

	LoginLimiter *middleware.DistributedRateLimiter

	// UploadsDir enables static serving of local uploads when the
	// filesystem backend is active.
	UploadsDir    string
	MaxFileSize   int64
	MaxFiles      int
	CORSOrigins   []string
	TracingActive bool
}

// Server is the HTTP API server
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
	opts    Options

	authMW *middleware.AuthMiddleware
}

// NewServer builds the router with the full middleware chain
func NewServer(opts Options) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  opts.Logger,
		metrics: opts.Metrics,
		opts:    opts,
		authMW:  middleware.NewAuthMiddleware(opts.Tokens, opts.Users, opts.Metrics),
	}

	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(opts.Logger))
	s.router.Use(httputil.RecoveryMiddleware(opts.Logger))
	s.router.Use(httputil.CORSMiddleware(opts.CORSOrigins))
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	s.setupRoutes()
	return s
}

// Router returns the handler, wrapped for tracing when enabled
func (s *Server) Router() http.Handler {
	if s.opts.TracingActive {
		return otelhttp.NewHandler(s.router, "http.server")
	}
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Liveness endpoint on the API port, mirroring the ops server.
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"uptime": time.Since(startTime).String(),
		}, "API is running")
	}).Methods("GET")

	authHandlers := NewAuthHandlers(s.opts, s.authMW)
	authHandlers.RegisterRoutes(api)

	userHandlers := NewUserHandlers(s.opts.Users, s.opts.Hasher, s.authMW)
	userHandlers.RegisterRoutes(api)

	productHandlers := NewProductHandlers(s.opts.Products, s.authMW)
	productHandlers.RegisterRoutes(api)

	uploadHandlers := NewUploadHandlers(s.opts.Files, s.opts.Metrics, s.opts.MaxFileSize, s.opts.MaxFiles)
	uploadHandlers.RegisterRoutes(api, s.authMW)

	notificationHandlers := NewNotificationHandlers(s.opts.Users, s.opts.Push, s.opts.Metrics)
	notificationHandlers.RegisterRoutes(api, s.authMW)

	// Local uploads are exposed as static files; the S3 backend serves
	// straight from the bucket instead.
	if s.opts.UploadsDir != "" {
		s.router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.UploadsDir))))
	}
}

var startTime = time.Now()
