package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"sr-dashboard-go/internal/aggregator"
	"sr-dashboard-go/internal/dataset"
	"sr-dashboard-go/internal/layout"
	"sr-dashboard-go/internal/logger"
	"sr-dashboard-go/internal/source"
	"sr-dashboard-go/internal/types"
	"sr-dashboard-go/internal/widgets"
)

// Board is a published dashboard: a document and the source it binds.
type Board interface {
	Document() layout.Document
	Source() *source.Source
	Summary() dataset.DatasetSummary
	Insight() aggregator.Insight
}

// Interactive boards accept widget events.
type Interactive interface {
	Board
	Criteria() types.FilterCriteria
	SetDepartment(string) error
	SetMinDaysOpen(int) error
	Preview(types.FilterCriteria) (types.PlotFrame, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
}

type Server struct {
	*http.Server
	board    Board
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, board Board) *Server {
	s := &Server{
		board: board,
		log:   logger.New(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.logRequests)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Get("/ws", s.handleStream)
	router.Route("/api", func(r chi.Router) {
		r.Use(handlers.CompressHandler)
		r.Get("/document", s.handleDocument)
		r.Get("/source", s.handleSource)
		r.Get("/summary", s.handleSummary)

		if ib, ok := board.(Interactive); ok {
			r.Get("/criteria", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, ib.Criteria())
			})
			r.Put("/widgets/department", s.handleDepartment(ib))
			r.Put("/widgets/days_open", s.handleDaysOpen(ib))
			r.Get("/frame", s.handleFrame(ib))
		}
	})

	var h http.Handler = router
	if len(cfg.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		)(router)
	}

	s.Server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithRequest(r).WithFields(logrus.Fields{
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request served")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"source":  s.board.Source().Name(),
		"version": s.board.Source().Snapshot().Version,
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Document())
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Source().Snapshot())
}

type summaryResponse struct {
	Dataset dataset.DatasetSummary `json:"dataset"`
	Frame   aggregator.Insight     `json:"frame"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summaryResponse{
		Dataset: s.board.Summary(),
		Frame:   s.board.Insight(),
	})
}

type departmentRequest struct {
	Value *string `json:"value"`
}

type daysOpenRequest struct {
	Value *int `json:"value"`
}

func (s *Server) handleDepartment(ib Interactive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLog := s.log.WithRequest(r).WithField("handler", "department")
		var req departmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
			reqLog.Warn("bad request body")
			writeError(w, http.StatusBadRequest, "body must be {\"value\": <department>}")
			return
		}
		if err := ib.SetDepartment(*req.Value); err != nil {
			s.fail(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, ib.Source().Snapshot())
	}
}

func (s *Server) handleDaysOpen(ib Interactive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLog := s.log.WithRequest(r).WithField("handler", "days_open")
		var req daysOpenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
			reqLog.Warn("bad request body")
			writeError(w, http.StatusBadRequest, "body must be {\"value\": <integer>}")
			return
		}
		if err := ib.SetMinDaysOpen(*req.Value); err != nil {
			s.fail(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, ib.Source().Snapshot())
	}
}

func (s *Server) handleFrame(ib Interactive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLog := s.log.WithRequest(r).WithField("handler", "frame")
		c := types.FilterCriteria{Department: r.URL.Query().Get("department")}
		if c.Department == "" {
			c.Department = ib.Criteria().Department
		}
		if v := r.URL.Query().Get("min_days_open"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "min_days_open must be an integer")
				return
			}
			c.MinDaysOpen = n
		}
		f, err := ib.Preview(c)
		if err != nil {
			s.fail(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func (s *Server) fail(w http.ResponseWriter, log *logrus.Entry, err error) {
	if errors.Is(err, widgets.ErrInvalidOption) || errors.Is(err, widgets.ErrOutOfRange) {
		log.WithField("error", err.Error()).Warn("rejected widget value")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.WithField("error", err.Error()).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

// writeJSON encodes v before any header is written so an unencodable value
// becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.New().Component("httpapi").WithField("error", err.Error()).
			WithField("status", status).Error("failed to encode response")
		body = []byte(`{"error": "internal error"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logger.New().Component("httpapi").WithField("error", err.Error()).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
