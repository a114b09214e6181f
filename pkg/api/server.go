package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nyxlab/boxd/pkg/errors"
	"github.com/nyxlab/boxd/pkg/logging"
)

// updateInterval is the period of the input state and statistics
// senders.
const updateInterval = 50 * time.Millisecond

// Server runs the control WebSocket endpoint and the periodic state
// broadcasts.
type Server struct {
	listen string
	dev    Device
	hub    *Hub
	log    zerolog.Logger

	httpServer *http.Server
	done       chan struct{}

	mu      sync.Mutex
	running bool
}

// NewServer wires the hub to the device. Panels can connect to any path;
// the conventional one is /ws.
func NewServer(listen, dataDir string, dev Device, hub *Hub) *Server {
	disp := newDispatcher(dev, dataDir)
	hub.dispatch = disp.handle
	hub.onDisconnect = dev.ResetTestStates

	return &Server{
		listen: listen,
		dev:    dev,
		hub:    hub,
		log:    logging.Component("api"),
		done:   make(chan struct{}),
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.listen
}

// Start begins serving and returns once the listener is up. The hub,
// the broadcast senders, and the device log mirror all start here.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.Transport(errors.ErrTransportListenFailed, "server already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.hub.ServeWS)

	s.httpServer = &http.Server{
		Addr:              s.listen,
		Handler:           recoverPanics(s.log, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.SetForwarder(func(message, state string) {
		if s.hub.ClientCount() > 0 {
			s.hub.DeviceLog(message, state)
		}
	})
	go s.hub.Run()
	go s.broadcaster()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.listen).Msg("control server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Catch immediate bind failures such as a port already in use.
	select {
	case err := <-errCh:
		logging.SetForwarder(nil)
		close(s.done)
		s.hub.Stop()
		return errors.ListenError(s.listen, err)
	case <-time.After(100 * time.Millisecond):
		s.running = true
		return nil
	}
}

// Shutdown stops the senders, disconnects every panel, and closes the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	logging.SetForwarder(nil)
	close(s.done)
	s.hub.Stop()

	s.log.Info().Msg("control server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// broadcaster pushes the hardware snapshot every update interval, plus
// session statistics while an experiment runs.
func (s *Server) broadcaster() {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			s.hub.broadcastJSON(newInputState(s.dev.Snapshot(), s.dev.Version()))
			if s.dev.Running() {
				s.hub.broadcastJSON(newStatistics(s.dev.Statistics()))
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"version": s.dev.Version(),
		"running": s.dev.Running(),
		"clients": s.hub.ClientCount(),
	})
}

// recoverPanics keeps a panicking handler from taking down the device
// loop alongside the connection.
func recoverPanics(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
