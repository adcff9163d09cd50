package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/mediascout/mediascout/pkg/logger"
	"github.com/mediascout/mediascout/pkg/pagination"
	"github.com/mediascout/mediascout/pkg/scanner"
	"github.com/mediascout/mediascout/pkg/storage"
	"go.uber.org/zap"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type GenericResponse struct {
	Error    *error `json:"error,omitempty"`
	Response any    `json:"response"`
}

// ScanRunner walks the given datasources and reconciles the library.
type ScanRunner interface {
	ID() string
	Run(ctx context.Context, datasources []string) (*scanner.Summary, error)
}

// ScanState tracks where the most recent scan is in its lifecycle.
type ScanState string

const (
	ScanIdle    ScanState = "idle"
	ScanRunning ScanState = "running"
	ScanDone    ScanState = "done"
	ScanFailed  ScanState = "failed"
)

// ScanReport is the status endpoint's view of the latest scan.
type ScanReport struct {
	State   ScanState        `json:"state"`
	TaskID  string           `json:"taskID,omitempty"`
	Summary *scanner.Summary `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Server houses all dependencies for the http server to work such as loggers, storage, and the scan task factory.
type Server struct {
	baseLogger  *zap.SugaredLogger
	store       storage.Storage
	datasources []string
	newTask     func() ScanRunner

	mu     sync.Mutex
	report ScanReport
}

// New creates a new server. newTask is invoked once per triggered scan.
func New(logger *zap.SugaredLogger, store storage.Storage, datasources []string, newTask func() ScanRunner) *Server {
	return &Server{
		baseLogger:  logger,
		store:       store,
		datasources: datasources,
		newTask:     newTask,
		report:      ScanReport{State: ScanIdle},
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, err error) error {
	return writeResponse(w, status, GenericResponse{
		Error: &err,
	})
}

func writeResponse(w http.ResponseWriter, status int, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	w.Header().Set("content-type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}

	w.Write(b)
	return nil
}

// Serve starts the http server and is a blocking call
func (s *Server) Serve(port int) error {
	rtr := mux.NewRouter()
	rtr.Use(s.LogMiddleware())
	rtr.HandleFunc("/healthz", s.Healthz()).Methods(http.MethodGet)

	api := rtr.PathPrefix("/api").Subrouter()

	v1 := api.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/shows", s.ListShows()).Methods(http.MethodGet)

	v1.HandleFunc("/scan", s.StartScan()).Methods(http.MethodPost)
	v1.HandleFunc("/scan/status", s.ScanStatus()).Methods(http.MethodGet)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
	)(rtr)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: corsHandler,
	}

	go func() {
		s.baseLogger.Infow("serving...", "port", port)
		if err := srv.ListenAndServe(); err != nil {
			s.baseLogger.Error(err.Error())
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	return srv.Shutdown(ctx)
}

// Healthz is an endpoint that can be used for probes
func (s *Server) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := GenericResponse{
			Response: "ok",
		}
		writeResponse(w, http.StatusOK, response)
	}
}

// ListShows lists the shows known to storage, optionally filtered by datasource
func (s *Server) ListShows() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		params, err := ParsePaginationParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		datasource := r.URL.Query().Get("datasource")
		shows, err := s.store.ListShows(r.Context(), datasource)
		if err != nil {
			log.Errorw("failed to list shows", "err", err)
			http.Error(w, "failed to list shows", http.StatusInternalServerError)
			return
		}

		resp := GenericResponse{
			Response: PaginatedResponse[*storage.Show]{
				Items: pagination.Slice(shows, params),
				Meta:  params.BuildMeta(len(shows)),
			},
		}

		writeResponse(w, http.StatusOK, resp)
	}
}

// StartScan triggers a library scan if one isn't already running
func (s *Server) StartScan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		s.mu.Lock()
		if s.report.State == ScanRunning {
			report := s.report
			s.mu.Unlock()
			writeResponse(w, http.StatusConflict, GenericResponse{Response: report})
			return
		}

		task := s.newTask()
		s.report = ScanReport{State: ScanRunning, TaskID: task.ID()}
		report := s.report
		s.mu.Unlock()

		log.Infow("scan started", "task", task.ID())
		go s.runScan(task)

		writeResponse(w, http.StatusAccepted, GenericResponse{Response: report})
	}
}

// ScanStatus reports the latest scan's state and summary
func (s *Server) ScanStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		report := s.report
		s.mu.Unlock()

		writeResponse(w, http.StatusOK, GenericResponse{Response: report})
	}
}

// runScan drives a triggered scan to completion. The request context is not
// used so the scan outlives the request that started it.
func (s *Server) runScan(task ScanRunner) {
	ctx := logger.WithCtx(context.Background(), s.baseLogger.With("task", task.ID()))

	summary, err := task.Run(ctx, s.datasources)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = ScanReport{State: ScanDone, TaskID: task.ID(), Summary: summary}
	if err != nil {
		s.report.State = ScanFailed
		s.report.Error = err.Error()
	}
}
