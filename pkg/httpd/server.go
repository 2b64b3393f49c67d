// Package httpd serves the operational endpoints of the daemon, such as metrics.
package httpd

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
)

const (
	defaultMaxHeaderSize  = 1 << 20
	defaultCleanupTimeout = 10 * time.Second
)

// ErrServe is returned when the server cannot listen
var ErrServe = errors.New("cannot serve http")

// Server of http endpoints, with a graceful shutdown
type Server struct {
	addr           string
	handler        http.Handler
	listenLimit    int
	keepAlive      bool
	readTimeout    time.Duration
	writeTimeout   time.Duration
	cleanupTimeout time.Duration
	maxHeaderSize  int
	l              *zap.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	stopped  chan struct{}
}

// Option for the server
type Option func(*Server)

// HandlesRequestsWith handles the http requests to the server
func HandlesRequestsWith(h http.Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// Logger for the server
func Logger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// ListenLimit limits the number of outstanding requests
func ListenLimit(n int) Option {
	return func(s *Server) {
		s.listenLimit = n
	}
}

// Timeouts to read a request and to write its response
func Timeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// CleanupTimeout is the grace period given to running requests on shutdown
func CleanupTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.cleanupTimeout = d
		}
	}
}

// KeepAlive toggles http keep-alives
func KeepAlive(enabled bool) Option {
	return func(s *Server) {
		s.keepAlive = enabled
	}
}

// New server listening on addr (host:port). It is not started.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:           addr,
		handler:        http.NotFoundHandler(),
		keepAlive:      true,
		readTimeout:    30 * time.Second,
		writeTimeout:   30 * time.Second,
		cleanupTimeout: defaultCleanupTimeout,
		maxHeaderSize:  defaultMaxHeaderSize,
		l:              dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Start listening, and serve requests in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return ErrServe.Describe("listen on %q", s.addr).Wrap(err)
	}
	if s.listenLimit > 0 {
		listener = netutil.LimitListener(listener, s.listenLimit)
	}

	srv := &http.Server{
		Handler:           s.handler,
		MaxHeaderBytes:    s.maxHeaderSize,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.cleanupTimeout,
	}
	srv.SetKeepAlivesEnabled(s.keepAlive)

	s.srv = srv
	s.listener = listener
	s.stopped = make(chan struct{})

	s.l.Info("serving", zap.String("addr", "http://"+listener.Addr().String()))
	go func(stopped chan<- struct{}) {
		defer close(stopped)
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.l.Error("http server failed", zap.Error(err))
		}
		s.l.Info("stopped serving", zap.String("addr", "http://"+listener.Addr().String()))
	}(s.stopped)

	return nil
}

// Addr the server listens on, once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown the server, letting running requests complete within the cleanup timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cleanupTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	<-s.stopped
	s.srv = nil
	s.listener = nil
	return err
}
