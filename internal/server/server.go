// Package server exposes the scoring pipeline over HTTP: a small dashboard,
// a score history API backed by the SQLite store, and a webhook for
// automated submissions. The server owns a configuration snapshot behind a
// read lock; every scoring call uses whatever snapshot is current, and the
// core never sees global state.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/schmug/scubascore/internal/config"
	"github.com/schmug/scubascore/internal/history"
	"github.com/schmug/scubascore/internal/ingest"
	"github.com/schmug/scubascore/internal/model"
	"github.com/schmug/scubascore/internal/scoring"
)

// maxBodyBytes bounds submitted scan payloads.
const maxBodyBytes = 32 << 20

// Config holds HTTP server configuration.
type Config struct {
	Addr               string
	DBPath             string
	WeightsPath        string
	ServiceWeightsPath string
	CompensatingPath   string
	Logger             *slog.Logger
}

// snapshot is one immutable view of the three scoring configs.
type snapshot struct {
	weights        *config.WeightConfig
	serviceWeights *config.ServiceWeightConfig
	compensating   *config.CompensatingConfig
}

// Server serves the dashboard and scoring API.
type Server struct {
	cfg    Config
	store  *history.Store
	logger *slog.Logger

	mu   sync.RWMutex
	snap snapshot

	srv *http.Server
}

// New creates a server with loaded configuration and an open history store.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	store, err := history.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: cfg.Logger,
	}
	if err := s.Reload(); err != nil {
		store.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /api/scores", s.handleList)
	mux.HandleFunc("POST /api/scores", s.handleSubmit)
	mux.HandleFunc("GET /api/scores/{id}", s.handleGet)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /api/settings", s.handleSettingsGet)
	mux.HandleFunc("POST /api/settings", s.handleSettingsPost)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Reload atomically swaps in a fresh configuration snapshot read from disk.
// Called at startup, by the file watcher, and after a settings update.
func (s *Server) Reload() error {
	weights, err := config.LoadWeights(s.cfg.WeightsPath)
	if err != nil {
		return fmt.Errorf("reload weights: %w", err)
	}
	serviceWeights, err := config.LoadServiceWeights(s.cfg.ServiceWeightsPath)
	if err != nil {
		return fmt.Errorf("reload service weights: %w", err)
	}
	compensating, err := config.LoadCompensating(s.cfg.CompensatingPath)
	if err != nil {
		return fmt.Errorf("reload compensating controls: %w", err)
	}

	s.mu.Lock()
	s.snap = snapshot{weights: weights, serviceWeights: serviceWeights, compensating: compensating}
	s.mu.Unlock()
	return nil
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.cfg.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Handler exposes the route mux. For tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Shutdown drains in-flight requests and closes the history store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// score runs the full pipeline on a decoded document using the current
// configuration snapshot.
func (s *Server) score(doc any) (model.ScoreResult, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	rules, err := ingest.ParseResults(doc, snap.weights, snap.compensating)
	if err != nil {
		return model.ScoreResult{}, err
	}
	return scoring.Compute(rules, snap.serviceWeights), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list history", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	result, ok := s.scoreRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	result, ok := s.scoreRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"overall_score": result.OverallScore,
	})
}

// scoreRequest decodes, scores, and persists a submitted scan. Shared by the
// API and webhook endpoints; writes the error response itself on failure.
func (s *Server) scoreRequest(w http.ResponseWriter, r *http.Request) (model.ScoreResult, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return model.ScoreResult{}, false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "no JSON data provided")
		return model.ScoreResult{}, false
	}

	doc, err := ingest.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.ScoreResult{}, false
	}

	result, err := s.score(doc)
	if err != nil {
		if errors.Is(err, ingest.ErrParse) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			s.logger.Error("score submission", "error", err)
			writeError(w, http.StatusInternalServerError, "scoring failed")
		}
		return model.ScoreResult{}, false
	}

	if _, err := s.store.Save(r.Context(), result); err != nil {
		s.logger.Error("save score", "error", err)
		writeError(w, http.StatusInternalServerError, "cannot persist score")
		return model.ScoreResult{}, false
	}

	return result, true
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid score id")
		return
	}
	result, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error("get score", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// settingsPayload carries raw YAML for the editable config files.
type settingsPayload struct {
	Weights        string `json:"weights_yaml"`
	ServiceWeights string `json:"service_weights_yaml"`
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsPayload{
		Weights:        readFileOrEmpty(s.cfg.WeightsPath),
		ServiceWeights: readFileOrEmpty(s.cfg.ServiceWeightsPath),
	})
}

// handleSettingsPost rewrites the weight files atomically and reloads the
// snapshot. Invalid YAML is rejected before anything touches disk.
func (s *Server) handleSettingsPost(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}

	updates := []struct {
		path    string
		content string
		check   func(string) error
	}{
		{s.cfg.WeightsPath, payload.Weights, func(p string) error { _, err := config.LoadWeights(p); return err }},
		{s.cfg.ServiceWeightsPath, payload.ServiceWeights, func(p string) error { _, err := config.LoadServiceWeights(p); return err }},
	}

	for _, u := range updates {
		if u.path == "" {
			writeError(w, http.StatusConflict, "server started without editable config paths")
			return
		}
		if err := writeAndValidate(u.path, u.content, u.check); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.Reload(); err != nil {
		s.logger.Error("reload after settings update", "error", err)
		writeError(w, http.StatusInternalServerError, "saved but reload failed")
		return
	}
	s.logger.Info("configuration updated via settings API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// writeAndValidate stages new content in a temp file, validates it, and
// only then renames over the live config.
func writeAndValidate(path, content string, check func(string) error) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := check(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func readFileOrEmpty(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
