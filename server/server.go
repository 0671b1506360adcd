package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"landing_copy_studio/document"
	"landing_copy_studio/workflow"
)

// Options tunes the HTTP API.
type Options struct {
	SessionTTL        time.Duration
	GenerationTimeout time.Duration
	MaxUploadBytes    int64
}

func (o Options) withDefaults() Options {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 2 * time.Hour
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = 90 * time.Second
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = document.DefaultMaxBytes
	}
	return o
}

// Server exposes the landing-page wizard as a JSON API. Generation calls run
// in the background; clients poll the session snapshot.
type Server struct {
	gen       workflow.CopyGenerator
	extractor document.Extractor
	store     *sessionStore
	opts      Options
	logger    *zap.Logger
	calls     sync.WaitGroup
}

func New(gen workflow.CopyGenerator, extractor document.Extractor, opts Options, logger *zap.Logger) (*Server, error) {
	if gen == nil {
		return nil, errors.New("copy generator required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	if extractor == nil {
		extractor = document.NewFileExtractor(opts.MaxUploadBytes, logger)
	}
	return &Server{
		gen:       gen,
		extractor: extractor,
		store:     newStore(opts.SessionTTL),
		opts:      opts,
		logger:    logger.With(zap.String("module", "server")),
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/options", s.handleOptions).Methods(http.MethodGet)
	api.HandleFunc("/keywords/suggest", s.handleSuggestKeywords).Methods(http.MethodGet)

	api.HandleFunc("/sessions", s.handleSessionCreate).Methods(http.MethodPost)
	sess := api.PathPrefix("/sessions/{id}").Subrouter()
	sess.HandleFunc("", s.withSession(s.handleSessionGet)).Methods(http.MethodGet)
	sess.HandleFunc("", s.handleSessionDelete).Methods(http.MethodDelete)
	sess.HandleFunc("/brief", s.withSession(s.handleBrief)).Methods(http.MethodPut)
	sess.HandleFunc("/landing", s.withSession(s.handleLanding)).Methods(http.MethodPut)
	sess.HandleFunc("/back", s.withSession(s.handleBack)).Methods(http.MethodPost)
	sess.HandleFunc("/sections", s.withSession(s.handleSectionAdd)).Methods(http.MethodPost)
	sess.HandleFunc("/sections/reorder", s.withSession(s.handleSectionReorder)).Methods(http.MethodPost)
	sess.HandleFunc("/sections/{sectionID}", s.withSession(s.handleSectionUpdate)).Methods(http.MethodPatch)
	sess.HandleFunc("/sections/{sectionID}", s.withSession(s.handleSectionRemove)).Methods(http.MethodDelete)
	sess.HandleFunc("/document", s.withSession(s.handleDocumentUpload)).Methods(http.MethodPost)
	sess.HandleFunc("/document", s.withSession(s.handleDocumentRemove)).Methods(http.MethodDelete)
	sess.HandleFunc("/generate", s.withSession(s.handleGenerate)).Methods(http.MethodPost)
	sess.HandleFunc("/retry", s.withSession(s.handleRetry)).Methods(http.MethodPost)
	sess.HandleFunc("/regenerate", s.withSession(s.handleRegenerate)).Methods(http.MethodPost)
	sess.HandleFunc("/approve", s.withSession(s.handleApprove)).Methods(http.MethodPost)
	sess.HandleFunc("/refine", s.withSession(s.handleRefine)).Methods(http.MethodPost)
	sess.HandleFunc("/reset", s.withSession(s.handleReset)).Methods(http.MethodPost)
	sess.HandleFunc("/error", s.withSession(s.handleDismissError)).Methods(http.MethodDelete)
	sess.HandleFunc("/result", s.withSession(s.handleResult)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// dispatch runs call in the background, bounded by the generation timeout.
// Outcomes land in the session; stale results are dropped by the controller.
func (s *Server) dispatch(sess *workflow.Session, call *workflow.Call) {
	if call == nil {
		return
	}
	s.calls.Add(1)
	go func() {
		defer s.calls.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.GenerationTimeout)
		defer cancel()
		err := sess.Run(ctx, call)
		switch {
		case err == nil:
		case errors.Is(err, workflow.ErrStaleCall):
			s.logger.Debug("stale call dropped", zap.String("session", sess.ID), zap.String("section_id", call.SectionID))
		default:
			s.logger.Warn("call failed", zap.String("session", sess.ID), zap.String("kind", string(call.Kind)), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched call has resolved.
func (s *Server) Wait() {
	s.calls.Wait()
}
