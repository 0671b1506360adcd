package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"landing_copy_studio/document"
	"landing_copy_studio/generator"
	"landing_copy_studio/publisher"
	"landing_copy_studio/workflow"
)

const maxJSONBody = 1 << 20

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *workflow.Session)

// withSession resolves {id} or answers 404.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.store.get(mux.Vars(r)["id"])
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h(w, r, sess)
	}
}

// --- Requests / responses ---

type sessionResp struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	workflow.Snapshot
}

type sectionReq struct {
	Name string                `json:"name"`
	Kind generator.SectionKind `json:"kind"`
}

type reorderReq struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

type variationReq struct {
	Variation string `json:"variation"`
	Feedback  string `json:"feedback,omitempty"`
}

type documentResp struct {
	document.Result
	Size string `json:"size"`
}

type optionsResp struct {
	VoiceTones   []generator.Option      `json:"voice_tones"`
	Platforms    []generator.Option      `json:"platforms"`
	Lengths      []generator.Option      `json:"lengths"`
	SectionKinds []generator.SectionKind `json:"section_kinds"`
	Funnels      []generator.Funnel      `json:"funnels"`
	Tickets      []generator.Ticket      `json:"tickets"`
	Creativity   []generator.Creativity  `json:"creativity"`
}

// --- Handlers ---

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResp{
		VoiceTones:   generator.VoiceToneOptions,
		Platforms:    generator.PlatformOptions,
		Lengths:      generator.LengthOptions,
		SectionKinds: generator.SectionKinds,
		Funnels:      []generator.Funnel{generator.FunnelCapture, generator.FunnelSales},
		Tickets:      []generator.Ticket{generator.TicketLow, generator.TicketMedium, generator.TicketHigh},
		Creativity:   []generator.Creativity{generator.CreativityLow, generator.CreativityMedium, generator.CreativityHigh},
	})
}

func (s *Server) handleSuggestKeywords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string][]string{
		"keywords": generator.SuggestKeywords(q.Get("prompt"), q.Get("platform")),
	})
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sess := workflow.NewSession(s.gen, s.logger)
	s.store.set(sess)
	s.logger.Info("session created", zap.String("session", sess.ID), zap.Int("active_sessions", s.store.len()))
	writeJSON(w, http.StatusCreated, snapshot(sess))
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if sess, ok := s.store.get(id); ok {
		sess.Reset()
		s.store.delete(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	var brief generator.Brief
	if !decodeJSON(w, r, &brief) {
		return
	}
	s.respond(w, sess, http.StatusOK, sess.ConfirmBrief(brief))
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	var landing generator.Landing
	if !decodeJSON(w, r, &landing) {
		return
	}
	s.respond(w, sess, http.StatusOK, sess.SetLanding(landing))
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	s.respond(w, sess, http.StatusOK, sess.BackToConfig())
}

func (s *Server) handleSectionAdd(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	var req sectionReq
	if !decodeJSON(w, r, &req) {
		return
	}
	section, err := sess.AddSection(req.Name, req.Kind)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, section)
}

func (s *Server) handleSectionUpdate(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	var patch workflow.SectionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	s.respond(w, sess, http.StatusOK, sess.UpdateSection(mux.Vars(r)["sectionID"], patch))
}

func (s *Server) handleSectionRemove(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	s.respond(w, sess, http.StatusOK, sess.RemoveSection(mux.Vars(r)["sectionID"]))
}

func (s *Server) handleSectionReorder(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	var req reorderReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.From == nil || req.To == nil {
		writeWorkflowError(w, &workflow.ValidationError{Fields: map[string]string{"from": "is required", "to": "is required"}})
		return
	}
	s.respond(w, sess, http.StatusOK, sess.ReorderSections(*req.From, *req.To))
}

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	// multipart overhead on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum allowed: "+document.FormatSize(s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	res, err := s.extractor.Extract(r.Context(), header.Filename, file)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, document.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, documentResp{Result: res, Size: document.FormatSize(res.SizeBytes)})
		return
	}
	err = sess.SetDocument(workflow.Document{
		Filename:  res.Filename,
		SizeBytes: res.SizeBytes,
		PageCount: res.PageCount,
		Text:      res.Text,
	})
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResp{Result: res, Size: document.FormatSize(res.SizeBytes)})
}

func (s *Server) handleDocumentRemove(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	s.respond(w, sess, http.StatusOK, sess.ClearDocument())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	s.startCall(w, sess)(sess.StartGeneration())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	s.startCall(w, sess)(sess.Retry())
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	s.startCall(w, sess)(sess.Regenerate())
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	var req variationReq
	if !decodeJSON(w, r, &req) {
		return
	}
	index, err := generator.ParseLabel(req.Variation)
	if err != nil {
		writeWorkflowError(w, &workflow.ValidationError{Fields: map[string]string{"variation": "must be one of: A, B, C"}})
		return
	}
	call, err := sess.Approve(index)
	if err == nil && call == nil {
		// last section approved, nothing left to generate
		writeJSON(w, http.StatusOK, snapshot(sess))
		return
	}
	s.startCall(w, sess)(call, err)
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	var req variationReq
	if !decodeJSON(w, r, &req) {
		return
	}
	index, err := generator.ParseLabel(req.Variation)
	if err != nil {
		writeWorkflowError(w, &workflow.ValidationError{Fields: map[string]string{"variation": "must be one of: A, B, C"}})
		return
	}
	s.startCall(w, sess)(sess.Refine(index, req.Feedback))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	sess.Reset()
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	sess.DismissError()
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, sess *workflow.Session) {
	format, err := publisher.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sections, err := sess.FinalSections()
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	out, err := publisher.Render(publisher.Page{Title: r.URL.Query().Get("title"), Sections: sections}, format)
	if err != nil {
		s.logger.Error("render result", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not render the landing page")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// --- Helpers ---

// startCall dispatches a freshly issued call and answers 202 with the snapshot.
func (s *Server) startCall(w http.ResponseWriter, sess *workflow.Session) func(*workflow.Call, error) {
	return func(call *workflow.Call, err error) {
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		s.dispatch(sess, call)
		writeJSON(w, http.StatusAccepted, snapshot(sess))
	}
}

func (s *Server) respond(w http.ResponseWriter, sess *workflow.Session, status int, err error) {
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeJSON(w, status, snapshot(sess))
}

func snapshot(sess *workflow.Session) sessionResp {
	return sessionResp{SessionID: sess.ID, CreatedAt: sess.CreatedAt, Snapshot: sess.Snapshot()}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

type errorResp struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	var verr *workflow.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, workflow.ErrUnknownSection):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrBusy),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrVariationIndex),
		errors.Is(err, workflow.ErrProtectedStatus):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, strings.TrimSpace(err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
