package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"spectrovideo/framegenerator"
)

// Server renders preview frames straight from the panorama.
type Server struct {
	extractor *framegenerator.Extractor
	panorama  *framegenerator.Panorama
	backend   framegenerator.ImageBackend
	logger    *zap.Logger
}

func NewServer(extractor *framegenerator.Extractor, panorama *framegenerator.Panorama, backend framegenerator.ImageBackend, logger *zap.Logger) *Server {
	return &Server{extractor: extractor, panorama: panorama, backend: backend, logger: logger}
}

func allowCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func (s *Server) Frame(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	if r.Method == http.MethodOptions {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	c, win, err := s.extractor.RenderFrame(s.panorama, index)
	if errors.Is(err, framegenerator.ErrPlayheadOutOfRange) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Frame-Center", strconv.Itoa(win.Center))
	w.Header().Set("X-Cursor-Offset", strconv.Itoa(win.CursorOffset))
	if err := s.backend.Encode(c, w); err != nil {
		s.logger.Error("encode preview frame", zap.Int("frame", index), zap.Error(err))
		framegenerator.PreviewRequestsTotal.WithLabelValues("500").Inc()
		return
	}
	framegenerator.PreviewRequestsTotal.WithLabelValues("200").Inc()
}

func (s *Server) Plan(w http.ResponseWriter, r *http.Request) {
	allowCORS(w)
	if r.Method == http.MethodOptions {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.extractor.Plan(s.panorama)); err != nil {
		s.logger.Error("encode plan", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	framegenerator.PreviewRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	s.logger.Debug("preview request failed", zap.Int("code", code), zap.Error(err))
	http.Error(w, err.Error(), code)
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/frames/{index:[0-9]+}", s.Frame).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/plan", s.Plan).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Use(mux.CORSMethodMiddleware(r))

	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("preview server starting", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
