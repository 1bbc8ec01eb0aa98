// Package server exposes a trainable MLP over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/swarnim-j/micrograd/engine"
	"github.com/swarnim-j/micrograd/internal/config"
	"github.com/swarnim-j/micrograd/internal/ctxlog"
	"github.com/swarnim-j/micrograd/internal/train"
	"github.com/swarnim-j/micrograd/nn"
)

// Server owns HTTP handlers and the active model.
//
// mu guards which session is active; each session's own mutex serializes
// forward/backward work, since computation graphs are not safe for concurrent
// use.
type Server struct {
	mu      sync.RWMutex
	session *session
	logger  *slog.Logger
}

type session struct {
	mu      sync.Mutex
	trainer *train.Trainer
}

// New creates a server with no model. logger may be nil.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// RegisterRoutes attaches all endpoints to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/init", s.handleInit)
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("POST /api/graph", s.handleGraph)
}

// Handler returns the routes wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.withLogging(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Server shutting down", "addr", addr)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Init validates cfg, builds a fresh model from it and makes it the active
// one. It returns the number of trainable parameters.
func (s *Server) Init(cfg *config.Config) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	trainer, err := cfg.NewTrainer()
	if err != nil {
		return 0, err
	}
	s.setSession(&session{trainer: trainer})
	return len(trainer.Model.Parameters()), nil
}

// active reads the current session with a shared lock.
func (s *Server) active() *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// setSession swaps the active session with an exclusive lock.
func (s *Server) setSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// writeJSON is a helper to consistently send JSON responses.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeOptionalJSON decodes JSON when body is present.
// Empty bodies are treated as "use defaults" rather than errors.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := &config.Config{
		Model: config.Model{Inputs: req.Config.Inputs, Layers: req.Config.Layers, Seed: req.Config.Seed},
		Train: config.Train{
			Steps:        1,
			LearningRate: req.Config.LearningRate,
			Optimizer:    req.Config.Optimizer,
		},
		Samples: req.Samples,
	}
	if cfg.Model.Seed == 0 {
		cfg.Model.Seed = config.DefaultSeed
	}
	if cfg.Train.LearningRate == 0 {
		cfg.Train.LearningRate = config.DefaultLearningRate
	}
	if cfg.Train.Optimizer == "" {
		cfg.Train.Optimizer = config.DefaultOptimizer
	}
	params, err := s.Init(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctxlog.FromContext(r.Context()).Info("Model initialized", "params", params, "layers", cfg.Model.Layers)
	writeJSON(w, http.StatusOK, InitResponse{Status: "initialized", Params: params})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	sess := s.active()
	if sess == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	req := TrainRequest{}
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	steps := req.StepsPerCall
	if steps <= 0 {
		steps = 1
	}

	// Lock the session during forward/backward/update to avoid concurrent mutation.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	resp, err := sess.trainer.Run(r.Context(), steps, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	sess := s.active()
	if sess == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	out, err := sess.trainer.Predict(req.Inputs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, PredictResponse{Outputs: out})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	sess := s.active()
	if sess == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	var req GraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	loss, err := sess.trainer.SampleLoss(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Clear leftovers from training so the exported grads belong to this sample.
	nn.ZeroGrad(sess.trainer.Model)
	loss.Backward()

	writeJSON(w, http.StatusOK, GraphResponse{Loss: loss.Data, Nodes: exportGraph(loss)})
}

// exportGraph numbers the nodes reachable from root in topological order.
func exportGraph(root *engine.Value) []GraphNode {
	topo := engine.TopoSort(root)
	ids := make(map[*engine.Value]int, len(topo))
	nodes := make([]GraphNode, len(topo))
	for i, v := range topo {
		ids[v] = i
		producers := []int{}
		for _, p := range v.Producers() {
			producers = append(producers, ids[p])
		}
		nodes[i] = GraphNode{ID: i, Op: v.Label(), Data: v.Data, Grad: v.Grad, Producers: producers}
	}
	return nodes
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(ctxlog.WithLogger(r.Context(), logger)))

		logger.Debug("Request handled", "status", rec.status, "duration", time.Since(start))
	})
}
