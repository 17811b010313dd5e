package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
)

// Server exposes a collector over HTTP.
type Server struct {
	srv    *http.Server
	addr   net.Addr
	logger logging.Logger
}

func NewServer(addr, path string, collector MetricsCollector, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	mux := http.NewServeMux()
	mux.Handle(path, collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger.Named("metrics"),
	}
}

// Start listens in the background. Listen errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.logger.Info("metrics server listening", logging.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.addr == nil {
		return s.srv.Addr
	}
	return s.addr.String()
}
