package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ttmouse/node-banana/internal/app/dto"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/internal/infrastructure/metrics"
	"github.com/ttmouse/node-banana/pkg/nodebanana"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// maxWorkflowBytes bounds uploaded workflow documents, which carry inline images.
const maxWorkflowBytes = 64 << 20

type server struct {
	rt      *nodebanana.Runtime
	runs    *runManager
	metrics *metrics.Collector
	logger  *zap.Logger
}

func newServer(rt *nodebanana.Runtime, m *metrics.Collector, logger *zap.Logger) *server {
	return &server{rt: rt, runs: newRunManager(logger), metrics: m, logger: logger}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/workflow", func(r chi.Router) {
			r.Get("/", s.getWorkflow)
			r.Post("/", s.loadWorkflow)
			r.Get("/run", s.runStatus)
			r.Post("/run", s.startRun)
			r.Post("/stop", s.stopRun)
		})
		r.Post("/nodes/{id}/regenerate", s.regenerate)
		r.Post("/history/undo", s.history(s.rt.Store().Undo))
		r.Post("/history/redo", s.history(s.rt.Store().Redo))
		r.Get("/notifications", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.rt.Notifications())
		})
	})
	return r
}

func (s *server) getWorkflow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.ExportWorkflow())
}

func (s *server) loadWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.runs.running() {
		writeError(w, http.StatusConflict, dto.ErrRunInProgress)
		return
	}
	wf, err := decodeWorkflow(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	issues, err := s.rt.LoadWorkflow(wf)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

type runRequest struct {
	StartNodeID string `json:"startNodeId"`
}

func (s *server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.StartNodeID != "" && s.rt.Store().Node(req.StartNodeID) == nil {
		writeError(w, http.StatusNotFound, graph.ErrNodeNotFound)
		return
	}
	s.launch(w, func(ctx context.Context) (*dto.RunResult, error) {
		return s.rt.Run(ctx, req.StartNodeID)
	})
}

func (s *server) regenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.rt.Store().Node(id) == nil {
		writeError(w, http.StatusNotFound, graph.ErrNodeNotFound)
		return
	}
	s.launch(w, func(ctx context.Context) (*dto.RunResult, error) {
		return s.rt.Regenerate(ctx, id)
	})
}

func (s *server) launch(w http.ResponseWriter, fn func(ctx context.Context) (*dto.RunResult, error)) {
	if s.rt.Store().IsActive() || !s.runs.start(fn) {
		writeError(w, http.StatusConflict, dto.ErrRunInProgress)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *server) stopRun(w http.ResponseWriter, _ *http.Request) {
	s.rt.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

type runStatusResponse struct {
	State dto.RunState   `json:"state"`
	Last  *dto.RunResult `json:"last,omitempty"`
}

func (s *server) runStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, runStatusResponse{
		State: s.rt.Store().RunState(),
		Last:  s.runs.lastResult(),
	})
}

func (s *server) history(step func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		moved, err := step()
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"applied": moved})
	}
}

func decodeWorkflow(w http.ResponseWriter, r *http.Request) (*serialization.WorkflowFile, error) {
	body := http.MaxBytesReader(w, r.Body, maxWorkflowBytes)
	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return serialization.DecodeWorkflow(buf)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dto.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrGraphNotFound):
		return http.StatusNotFound
	case errors.Is(err, serialization.ErrUnsupportedVersion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
