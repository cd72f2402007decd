package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/activity"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/logger"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/printer"
)

// Connectivity is the event-channel side of the status view.
type Connectivity interface {
	IsConnected() bool
}

type QueueInfo interface {
	QueueDepth() int
}

// Server exposes the operator diagnostics on localhost: current connection
// state, queue depth and the bounded activity log. Read-only except for the
// explicit printer reconnect, which is the operator acknowledgment a faulted
// link requires.
type Server struct {
	srv     *http.Server
	log     *activity.Log
	manager *printer.Manager
	channel Connectivity
	queue   QueueInfo
}

func NewServer(addr string, log *activity.Log, manager *printer.Manager, channel Connectivity, queue QueueInfo) *Server {
	s := &Server{
		log:     log,
		manager: manager,
		channel: channel,
		queue:   queue,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/status", s.handleStatus)
	r.Get("/log", s.handleLog)
	r.Post("/printer/reconnect", s.handleReconnect)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Start() {
	go func() {
		logger.Info("operator panel listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("operator panel stopped", "err", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channelConnected": s.channel.IsConnected(),
		"printerState":     s.manager.State().String(),
		"printer":          s.manager.Info(),
		"queueDepth":       s.queue.QueueDepth(),
	})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.log.Snapshot(),
	})
}

// handleReconnect resets a faulted link and pairs again.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if s.manager.State() == printer.StateFaulted {
		s.manager.Reset()
	}
	info, err := s.manager.Connect(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
			"state": s.manager.State().String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"printer": info,
		"state":   s.manager.State().String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
