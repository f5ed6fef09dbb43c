// Package server provides the HTTP API of the launcher daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/launcher/errors"
	"github.com/grovetools/launcher/internal/daemon/engine"
	"github.com/grovetools/launcher/internal/daemon/store"
	"github.com/grovetools/launcher/pkg/models"
	"github.com/grovetools/launcher/version"
)

// RunningConfig holds the settings the daemon is actually using.
// This is exposed via the /api/config endpoint so clients can verify what config is active.
type RunningConfig struct {
	Socket            string        `json:"socket"`
	StorePath         string        `json:"store_path"`
	InventoryDir      string        `json:"inventory_dir"`
	BindBatchSize     int           `json:"bind_batch_size"`
	IdleRecheck       time.Duration `json:"idle_recheck"`
	StrictConsistency bool          `json:"strict_consistency"`
	StartedAt         time.Time     `json:"started_at"`
}

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	engine        *engine.Engine
	runningConfig *RunningConfig
	upgrader      websocket.Upgrader
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Only local clients can reach the unix socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetEngine sets the engine whose model the server exposes.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.engine = eng
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Launcher-Version", version.GetInfo().Short())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/state", s.withEngine(s.handleGetState))
	mux.HandleFunc("GET /api/model", s.withEngine(s.handleGetModel))
	mux.HandleFunc("GET /api/workspace", s.withEngine(s.handleGetWorkspace))
	mux.HandleFunc("GET /api/apps", s.withEngine(s.handleGetApps))
	mux.HandleFunc("GET /api/items", s.withEngine(s.handleListItems))
	mux.HandleFunc("POST /api/items", s.withEngine(s.handleAddItem))
	mux.HandleFunc("PATCH /api/items/{id}", s.withEngine(s.handleMoveItem))
	mux.HandleFunc("DELETE /api/items/{id}", s.withEngine(s.handleDeleteItem))
	mux.HandleFunc("POST /api/events", s.withEngine(s.handleEvent))
	mux.HandleFunc("POST /api/reload", s.withEngine(s.handleReload))
	mux.HandleFunc("GET /api/stream", s.withEngine(s.handleStreamState))
	mux.HandleFunc("GET /api/ws", s.withEngine(s.handleWebsocket))
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	return s.withRequestID(mux)
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	err = s.server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start).String(),
		}).Debug("Request served")
	})
}

func (s *Server) withEngine(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.engine == nil {
			http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as a coded error body with a status derived from its code.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidTarget, errors.ErrCodeUnknownEvent:
		status = http.StatusBadRequest
	case errors.ErrCodeItemNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeModelMismatch, errors.ErrCodeLoaderRunning, errors.ErrCodeNotLoaded:
		status = http.StatusConflict
	}
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, &errors.LauncherError{Code: code, Message: err.Error()})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Model().DumpState())
}

// handleGetWorkspace returns the workspace as the consumer has bound it.
func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store().Items())
}

func (s *Server) handleGetApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store().Apps())
}

// handleListItems returns the model's workspace, which may be ahead of the bound view.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Model().WorkspaceItems())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req models.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}
	target, err := models.ParseLaunchTarget(req.Target)
	if err != nil {
		writeError(w, errors.InvalidTarget(req.Target, err))
		return
	}
	if req.Title == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "title is required"))
		return
	}
	item := &models.Item{
		ItemType:  req.ItemType,
		Title:     req.Title,
		Target:    target,
		Container: -100,
	}
	added, err := s.engine.Model().AddItem(r.Context(), item, req.Position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) itemFromPath(r *http.Request) (*models.Item, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "item id must be an integer")
	}
	item, ok := s.engine.Model().Item(id)
	if !ok {
		return nil, errors.ItemNotFound(id)
	}
	return item, nil
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.itemFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.MoveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}
	if err := s.engine.Model().MoveItem(r.Context(), item, req.Position); err != nil {
		writeError(w, err)
		return
	}
	moved, _ := s.engine.Model().Item(item.ID)
	writeJSON(w, http.StatusOK, moved)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.itemFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.Model().DeleteItem(r.Context(), item); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
		return
	}
	// Events outlive the request; the model routes them onto its worker.
	if err := s.engine.Dispatch(context.WithoutCancel(r.Context()), ev); err != nil {
		writeError(w, err)
		return
	}
	s.engine.Store().Broadcast(store.Update{Type: store.UpdateEvent, Source: "client", Payload: ev})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Model().ForceReload(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reloading"})
}

// handleStreamState provides Server-Sent Events (SSE) for bound-view updates.
func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	// Send the current view so the client has data right away.
	if data, err := json.Marshal(initialUpdate(s.engine.Store())); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleWebsocket streams the same updates as /api/stream over a websocket.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.engine.Store().Subscribe()
	defer s.engine.Store().Unsubscribe(ch)

	// Reads only serve to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(initialUpdate(s.engine.Store())); err != nil {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case update, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(update); err != nil {
				s.logger.WithError(err).Debug("Websocket client gone")
				return
			}
		}
	}
}

func initialUpdate(st *store.Store) store.Update {
	view := st.Get()
	return store.Update{
		Type:    store.UpdateInitial,
		Source:  "daemon",
		Count:   len(view.Items),
		Payload: view,
		At:      time.Now(),
	}
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}
