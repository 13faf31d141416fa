// Package monitor serves the progress of a training run over HTTP.
package monitor

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

type Server struct {
	Addr    string
	tracker *Tracker
	server  *http.Server
	logger  log.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func NewServer(addr string, tracker *Tracker, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{
		Addr:    addr,
		tracker: tracker,
		logger:  logger,
		done:    make(chan struct{}),
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler routes GET /status and GET /trials
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/status", s.handleStatus)
	r.GET("/trials", s.handleTrials)
	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Status())
}

func (s *Server) handleTrials(c *gin.Context) {
	trials := s.tracker.Trials()
	if state := c.Query("state"); state != "" {
		filtered := trials[:0]
		for _, t := range trials {
			if string(t.State) == state {
				filtered = append(filtered, t)
			}
		}
		trials = filtered
	}
	c.JSON(http.StatusOK, gin.H{"trials": trials, "count": len(trials)})
}

// Start listens on Addr and serves until ctx is cancelled or Shutdown is called
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.Addr)
	}
	s.Addr = lis.Addr().String()
	level.Info(s.logger).Log("msg", "monitor listening", "addr", s.Addr)

	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			level.Error(s.logger).Log("msg", "monitor stopped", "err", err)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.done:
		}
	}()
	return nil
}

// Shutdown stops the server, later calls are no-ops
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			level.Warn(s.logger).Log("msg", "monitor shutdown", "err", err)
		}
	})
}

// Done is closed once Shutdown has been called
func (s *Server) Done() <-chan struct{} {
	return s.done
}
