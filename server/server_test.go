package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landing_copy_studio/generator"
	"landing_copy_studio/workflow"
)

func newTestServer(t *testing.T, gen workflow.CopyGenerator) (*Server, http.Handler) {
	t.Helper()
	if gen == nil {
		agent, err := generator.NewAgent(generator.MockLLM{}, nil)
		require.NoError(t, err)
		gen = agent
	}
	srv, err := New(gen, nil, Options{}, nil)
	require.NoError(t, err)
	return srv, srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var brief = map[string]any{
	"prompt":     "Online course that teaches bakery owners to double sales",
	"voice_tone": "persuasive",
	"platform":   "landing",
	"length":     "medium",
	"keywords":   []string{"bakery", "sales"},
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[sessionResp](t, rec)
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, workflow.PhaseConfig, resp.Phase)
	return resp.SessionID
}

func structured(t *testing.T, h http.Handler, names ...string) string {
	t.Helper()
	id := createSession(t, h)
	rec := do(t, h, http.MethodPut, "/api/sessions/"+id+"/brief", brief)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, n := range names {
		rec = do(t, h, http.MethodPost, "/api/sessions/"+id+"/sections", map[string]string{"name": n})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	return id
}

func getSession(t *testing.T, h http.Handler, id string) sessionResp {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[sessionResp](t, rec)
}

func TestFullWorkflow(t *testing.T) {
	srv, h := newTestServer(t, nil)
	id := structured(t, h, "Hero", "FAQ")
	base := "/api/sessions/" + id

	rec := do(t, h, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	srv.Wait()

	snap := getSession(t, h, id)
	assert.Equal(t, workflow.PhaseReviewing, snap.Phase)
	require.Len(t, snap.Variations, 3)
	assert.Equal(t, "Hero: variation A", snap.Variations[0].Headline)

	rec = do(t, h, http.MethodPost, base+"/approve", map[string]string{"variation": "b"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	srv.Wait()

	snap = getSession(t, h, id)
	require.Len(t, snap.Variations, 3)
	assert.Equal(t, "FAQ: variation A", snap.Variations[0].Headline)

	rec = do(t, h, http.MethodPost, base+"/approve", map[string]string{"variation": "A"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	final := decode[sessionResp](t, rec)
	assert.Equal(t, workflow.PhaseFinalized, final.Phase)
	assert.Len(t, final.Approved, 2)

	rec = do(t, h, http.MethodGet, base+"/result?format=markdown&title=Bakery", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "# Bakery")
	assert.Contains(t, body, "### Hero: variation B")
	assert.Contains(t, body, "### FAQ: variation A")

	rec = do(t, h, http.MethodGet, base+"/result?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decode[sessionResp](t, rec)
	assert.Equal(t, workflow.PhaseConfig, snap.Phase)
	assert.Empty(t, snap.Approved)
	for _, s := range snap.Sections {
		assert.Equal(t, workflow.StatusPending, s.Status)
	}
}

func TestRefineOverHTTP(t *testing.T) {
	srv, h := newTestServer(t, nil)
	id := structured(t, h, "Offer")
	base := "/api/sessions/" + id

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, base+"/generate", nil).Code)
	srv.Wait()

	rec := do(t, h, http.MethodPost, base+"/refine", map[string]string{"variation": "C", "feedback": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorResp](t, rec).Fields, "feedback")

	rec = do(t, h, http.MethodPost, base+"/refine", map[string]string{"variation": "Z", "feedback": "make it punchier please"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/refine", map[string]string{"variation": "C", "feedback": "make it punchier please"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	srv.Wait()

	snap := getSession(t, h, id)
	assert.Equal(t, workflow.PhaseReviewing, snap.Phase)
	require.NotEmpty(t, snap.History)
	assert.Equal(t, workflow.CallRefine, snap.History[0].Kind)
	assert.Equal(t, "make it punchier please", snap.History[0].Feedback)

	rec = do(t, h, http.MethodPost, base+"/regenerate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	srv.Wait()
	assert.Len(t, getSession(t, h, id).Variations, 3)
}

func TestValidationAndStateErrors(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := createSession(t, h)
	base := "/api/sessions/" + id

	rec := do(t, h, http.MethodPut, base+"/brief", map[string]any{"prompt": "", "voice_tone": "angry"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := decode[errorResp](t, rec).Fields
	assert.Contains(t, fields, "prompt")
	assert.Contains(t, fields["voice_tone"], "must be one of")

	rec = do(t, h, http.MethodPost, base+"/generate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPut, base+"/brief", brief).Code)
	rec = do(t, h, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorResp](t, rec).Fields, "sections")

	rec = do(t, h, http.MethodPost, base+"/approve", map[string]string{"variation": "A"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/result", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPut, base+"/brief", bytes.NewBufferString("{not json"))
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	rec = do(t, h, http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, base+"/generate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSectionEndpoints(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := structured(t, h, "A", "B", "C")
	base := "/api/sessions/" + id
	sections := getSession(t, h, id).Sections
	require.Len(t, sections, 3)

	rec := do(t, h, http.MethodPatch, base+"/sections/"+sections[0].ID, map[string]string{"name": "Hero", "kind": "hero"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Hero", decode[sessionResp](t, rec).Sections[0].Name)

	rec = do(t, h, http.MethodPatch, base+"/sections/"+sections[0].ID, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/sections/reorder", map[string]int{"from": 2, "to": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "C", decode[sessionResp](t, rec).Sections[0].Name)

	rec = do(t, h, http.MethodPost, base+"/sections/reorder", map[string]int{"from": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodDelete, base+"/sections/"+sections[1].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sessionResp](t, rec).Sections
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Order)
	assert.Equal(t, 2, got[1].Order)

	rec = do(t, h, http.MethodPut, base+"/landing", map[string]string{"funnel": "capture", "client_info": "Family bakery"})
	require.Equal(t, http.StatusOK, rec.Code)
	landing := decode[sessionResp](t, rec).Landing
	assert.Equal(t, generator.FunnelCapture, landing.Funnel)
	assert.Equal(t, generator.TicketMedium, landing.Ticket)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base+"/back", nil).Code)
	assert.Equal(t, workflow.PhaseConfig, getSession(t, h, id).Phase)
}

func upload(t *testing.T, h http.Handler, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDocumentUpload(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := createSession(t, h)
	base := "/api/sessions/" + id

	rec := upload(t, h, base+"/document", "about.txt", []byte("We bake sourdough since 1998."))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[documentResp](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.PageCount)
	assert.Equal(t, "29 Bytes", resp.Size)
	assert.NotContains(t, rec.Body.String(), "sourdough", "extracted text stays server side")

	snap := getSession(t, h, id)
	require.NotNil(t, snap.Document)
	assert.Equal(t, "about.txt", snap.Document.Filename)

	rec = upload(t, h, base+"/document", "logo.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	failed := decode[documentResp](t, rec)
	assert.False(t, failed.Success)
	assert.NotEmpty(t, failed.Error)

	req := httptest.NewRequest(http.MethodPost, base+"/document", nil)
	missing := httptest.NewRecorder()
	h.ServeHTTP(missing, req)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodDelete, base+"/document", nil).Code)
	assert.Nil(t, getSession(t, h, id).Document)
}

type failingGen struct{ err error }

func (f failingGen) GenerateVariations(context.Context, generator.Request, string) ([]generator.Variation, error) {
	return nil, f.err
}

func (f failingGen) RefineVariation(context.Context, generator.Request, string, string, generator.Variation) ([]generator.Variation, error) {
	return nil, f.err
}

func TestGenerationFailureSurfaces(t *testing.T) {
	srv, h := newTestServer(t, failingGen{err: errors.Join(generator.ErrAuth, errors.New("401"))})
	id := structured(t, h, "Hero")
	base := "/api/sessions/" + id

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, base+"/generate", nil).Code)
	srv.Wait()

	snap := getSession(t, h, id)
	assert.Equal(t, workflow.PhaseGenerating, snap.Phase)
	assert.Contains(t, snap.Error, "API key")
	assert.False(t, snap.Busy)
	assert.Equal(t, workflow.StatusPending, snap.Sections[0].Status)

	rec := do(t, h, http.MethodDelete, base+"/error", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[sessionResp](t, rec).Error)

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, base+"/retry", nil).Code)
	srv.Wait()
}

type blockingGen struct {
	release chan struct{}
}

func (b blockingGen) GenerateVariations(ctx context.Context, req generator.Request, name string) ([]generator.Variation, error) {
	<-b.release
	agent, _ := generator.NewAgent(generator.MockLLM{}, nil)
	return agent.GenerateVariations(ctx, req, name)
}

func (b blockingGen) RefineVariation(ctx context.Context, req generator.Request, name, feedback string, cur generator.Variation) ([]generator.Variation, error) {
	<-b.release
	agent, _ := generator.NewAgent(generator.MockLLM{}, nil)
	return agent.RefineVariation(ctx, req, name, feedback, cur)
}

func TestBusySessionRejectsSecondCall(t *testing.T) {
	gen := blockingGen{release: make(chan struct{})}
	srv, h := newTestServer(t, gen)
	id := structured(t, h, "Hero")
	base := "/api/sessions/" + id

	rec := do(t, h, http.MethodPost, base+"/generate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, decode[sessionResp](t, rec).Busy)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, base+"/retry", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, base+"/sections", map[string]string{"name": "FAQ"}).Code)

	close(gen.release)
	srv.Wait()
	assert.Equal(t, workflow.PhaseReviewing, getSession(t, h, id).Phase)
}

func TestSessionDelete(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := createSession(t, h)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/sessions/"+id, nil).Code)
}

func TestOptionsAndKeywords(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/api/options", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[optionsResp](t, rec)
	assert.Len(t, opts.VoiceTones, 7)
	assert.Len(t, opts.Platforms, 8)
	assert.Contains(t, opts.SectionKinds, generator.KindFAQ)

	rec = do(t, h, http.MethodGet, "/api/keywords/suggest?prompt=Online+course+for+growing+bakeries&platform=landing", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	kw := decode[map[string][]string](t, rec)["keywords"]
	assert.NotEmpty(t, kw)
	assert.LessOrEqual(t, len(kw), 5)
}

func TestNewRequiresGenerator(t *testing.T) {
	_, err := New(nil, nil, Options{}, nil)
	assert.Error(t, err)
}
