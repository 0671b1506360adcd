package workflow

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"landing_copy_studio/generator"
)

// Phase is the wizard step the controller is in.
type Phase string

const (
	PhaseConfig     Phase = "config"
	PhaseStructure  Phase = "structure"
	PhaseGenerating Phase = "generating"
	PhaseReviewing  Phase = "reviewing"
	PhaseFinalized  Phase = "finalized"
)

// CopyGenerator drafts section copy. Implementations must return exactly three
// variations on success; the controller re-checks the contract anyway.
type CopyGenerator interface {
	GenerateVariations(ctx context.Context, req generator.Request, sectionName string) ([]generator.Variation, error)
	RefineVariation(ctx context.Context, req generator.Request, sectionName, feedback string, current generator.Variation) ([]generator.Variation, error)
}

// CallKind tells generation and refinement calls apart.
type CallKind string

const (
	CallGenerate CallKind = "generate"
	CallRefine   CallKind = "refine"
)

// Call is a ticket for one outstanding CopyGenerator request. Its result is
// applied only while {SectionID, Epoch} still matches the controller.
type Call struct {
	Kind      CallKind
	SectionID string
	Epoch     uint64

	sectionName string
	request     generator.Request
	feedback    string
	current     generator.Variation
}

// Document is the extracted client document attached to the session.
type Document struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	PageCount int    `json:"page_count"`
	Text      string `json:"-"`
}

// Turn records one resolved call.
type Turn struct {
	Kind        CallKind              `json:"kind"`
	SectionID   string                `json:"section_id"`
	SectionName string                `json:"section_name"`
	Feedback    string                `json:"feedback,omitempty"`
	Variations  []generator.Variation `json:"variations,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

const (
	maxHistory     = 20
	minFeedbackLen = 10
)

// ApprovedResult maps a section id to its approved variation.
type ApprovedResult map[string]generator.Variation

// FinalSection is one approved section of the assembled document.
type FinalSection struct {
	Section   Section             `json:"section"`
	Variation generator.Variation `json:"variation"`
	Text      string              `json:"text"`
}

// Snapshot is a read-only copy of everything the UI renders.
type Snapshot struct {
	Phase           Phase                 `json:"phase"`
	Brief           generator.Brief       `json:"brief"`
	Landing         generator.Landing     `json:"landing"`
	Sections        []Section             `json:"sections"`
	ActiveSectionID string                `json:"active_section_id,omitempty"`
	Variations      []generator.Variation `json:"variations,omitempty"`
	Approved        ApprovedResult        `json:"approved"`
	Busy            bool                  `json:"busy"`
	Error           string                `json:"error,omitempty"`
	Document        *Document             `json:"document,omitempty"`
	History         []Turn                `json:"history"`
}

// Controller is the section-generation state machine. Every method is safe for
// concurrent use; the lock is never held while the CopyGenerator runs.
type Controller struct {
	mu     sync.Mutex
	gen    CopyGenerator
	logger *zap.Logger
	now    func() time.Time

	ledger     *Ledger
	phase      Phase
	brief      generator.Brief
	landing    generator.Landing
	document   *Document
	active     string
	variations []generator.Variation
	approved   ApprovedResult
	inFlight   *Call
	epoch      uint64
	lastErr    string
	history    []Turn
}

func NewController(gen CopyGenerator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		gen:      gen,
		logger:   logger.With(zap.String("module", "workflow")),
		now:      time.Now,
		ledger:   NewLedger(),
		phase:    PhaseConfig,
		landing:  generator.Landing{}.WithDefaults(),
		approved: ApprovedResult{},
	}
}

// ConfirmBrief validates the brief and moves config -> structure.
func (c *Controller) ConfirmBrief(b generator.Brief) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require(PhaseConfig, "confirm brief"); err != nil {
		return err
	}
	b = b.Normalize()
	if fields := generator.FieldErrors(b); fields != nil {
		return &ValidationError{Fields: fields}
	}
	c.brief = b
	c.phase = PhaseStructure
	c.logger.Info("brief confirmed", zap.String("platform", b.Platform), zap.Int("keywords", len(b.Keywords)))
	return nil
}

// BackToConfig returns from structure editing to the brief form.
func (c *Controller) BackToConfig() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require(PhaseStructure, "back to config"); err != nil {
		return err
	}
	c.phase = PhaseConfig
	return nil
}

// SetLanding replaces the funnel, ticket and client information.
func (c *Controller) SetLanding(l generator.Landing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable("set landing"); err != nil {
		return err
	}
	l.ClientInfo = strings.TrimSpace(l.ClientInfo)
	if fields := generator.FieldErrors(l); fields != nil {
		return &ValidationError{Fields: fields}
	}
	c.landing = l.WithDefaults()
	return nil
}

// SetDocument attaches extracted document text used as generation context.
func (c *Controller) SetDocument(doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable("attach document"); err != nil {
		return err
	}
	c.document = &doc
	return nil
}

func (c *Controller) ClearDocument() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable("remove document"); err != nil {
		return err
	}
	c.document = nil
	return nil
}

// AddSection appends a pending section to the ledger.
func (c *Controller) AddSection(name string, kind generator.SectionKind) (Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable("add section"); err != nil {
		return Section{}, err
	}
	if kind != "" && !kind.Valid() {
		return Section{}, invalid("kind", "is not a known section kind")
	}
	return c.ledger.Add(strings.TrimSpace(name), kind), nil
}

// RemoveSection deletes a section; unknown ids are ignored.
func (c *Controller) RemoveSection(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable("remove section"); err != nil {
		return err
	}
	c.ledger.Remove(id)
	return nil
}

// UpdateSection edits name, kind or status. Only the workflow may set
// generating or approved; unknown ids are ignored.
func (c *Controller) UpdateSection(id string, p SectionPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable("update section"); err != nil {
		return err
	}
	if p.Status != nil && (*p.Status == StatusGenerating || *p.Status == StatusApproved) {
		return ErrProtectedStatus
	}
	if p.Status != nil && !p.Status.valid() {
		return invalid("status", "is not a known status")
	}
	if p.Kind != nil && !p.Kind.Valid() {
		return invalid("kind", "is not a known section kind")
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return invalid("name", "is required")
		}
		p.Name = &name
	}
	c.ledger.Update(id, p)
	return nil
}

// ReorderSections moves the section at index from to index to (zero-based).
func (c *Controller) ReorderSections(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable("reorder sections"); err != nil {
		return err
	}
	n := c.ledger.Len()
	if from < 0 || from >= n {
		return invalid("from", "is out of range")
	}
	if to < 0 || to >= n {
		return invalid("to", "is out of range")
	}
	c.ledger.Reorder(from, to)
	return nil
}

// StartGeneration moves structure -> generating for the first pending section
// and returns the call to run.
func (c *Controller) StartGeneration() (*Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require(PhaseStructure, "start generation"); err != nil {
		return nil, err
	}
	if c.ledger.Len() == 0 {
		return nil, invalid("sections", "define at least one section before generating")
	}
	first, ok := c.ledger.NextPending()
	if !ok {
		return nil, invalid("sections", "no pending section left to generate")
	}
	c.approved = ApprovedResult{}
	return c.begin(first), nil
}

// Retry re-issues generation for the active section after a failure.
func (c *Controller) Retry() (*Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require(PhaseGenerating, "retry"); err != nil {
		return nil, err
	}
	s, ok := c.ledger.Get(c.active)
	if !ok {
		return nil, ErrUnknownSection
	}
	return c.begin(s), nil
}

// Regenerate discards the variations on screen and asks for three new ones.
func (c *Controller) Regenerate() (*Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require(PhaseReviewing, "regenerate"); err != nil {
		return nil, err
	}
	s, ok := c.ledger.Get(c.active)
	if !ok {
		return nil, ErrUnknownSection
	}
	return c.begin(s), nil
}

// Approve accepts the variation at index for the active section. It returns
// the generation call for the next pending section, or nil once the page is
// finalized.
func (c *Controller) Approve(index int) (*Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require(PhaseReviewing, "approve"); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(c.variations) {
		return nil, ErrVariationIndex
	}
	approvedID := c.active
	c.approved[approvedID] = cloneVariation(c.variations[index])
	c.ledger.setStatus(approvedID, StatusApproved)
	c.variations = nil
	c.active = ""
	c.lastErr = ""
	c.logger.Info("section approved", zap.String("section_id", approvedID), zap.String("variation", generator.Labels[index]))

	next, ok := c.ledger.NextPending()
	if !ok {
		c.phase = PhaseFinalized
		c.logger.Info("landing page finalized", zap.Int("sections", len(c.approved)))
		return nil, nil
	}
	return c.begin(next), nil
}

// Refine sends feedback about the variation at index. The phase stays
// reviewing; a failure keeps the current variations.
func (c *Controller) Refine(index int, feedback string) (*Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.require(PhaseReviewing, "refine"); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(c.variations) {
		return nil, ErrVariationIndex
	}
	feedback = strings.TrimSpace(feedback)
	if utf8.RuneCountInString(feedback) < minFeedbackLen {
		return nil, invalid("feedback", "must have at least 10 characters")
	}
	s, ok := c.ledger.Get(c.active)
	if !ok {
		return nil, ErrUnknownSection
	}
	c.epoch++
	call := &Call{
		Kind:        CallRefine,
		SectionID:   s.ID,
		Epoch:       c.epoch,
		sectionName: s.Name,
		request:     c.buildRequest(s),
		feedback:    feedback,
		current:     cloneVariation(c.variations[index]),
	}
	c.inFlight = call
	c.lastErr = ""
	c.logger.Info("refinement issued", zap.String("section", s.Name), zap.Uint64("epoch", call.Epoch))
	return call, nil
}

// Run performs call against the CopyGenerator and applies the outcome. A result
// for a call the workflow no longer waits for is dropped with ErrStaleCall.
func (c *Controller) Run(ctx context.Context, call *Call) error {
	if call == nil {
		return nil
	}
	var (
		vs  []generator.Variation
		err error
	)
	switch call.Kind {
	case CallRefine:
		vs, err = c.gen.RefineVariation(ctx, call.request, call.sectionName, call.feedback, call.current)
	default:
		vs, err = c.gen.GenerateVariations(ctx, call.request, call.sectionName)
	}
	if err == nil {
		err = generator.ValidateVariations(vs)
	}
	return c.resolve(call, vs, err)
}

func (c *Controller) resolve(call *Call, vs []generator.Variation, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == nil || c.inFlight.Epoch != call.Epoch || c.active != call.SectionID {
		c.logger.Warn("discarding stale result",
			zap.String("section_id", call.SectionID),
			zap.Uint64("epoch", call.Epoch),
			zap.Uint64("current_epoch", c.epoch))
		return ErrStaleCall
	}
	c.inFlight = nil

	turn := Turn{
		Kind:        call.Kind,
		SectionID:   call.SectionID,
		SectionName: call.sectionName,
		Feedback:    call.feedback,
		CreatedAt:   c.now(),
	}
	if err != nil {
		c.lastErr = generator.UserMessage(err)
		turn.Error = c.lastErr
		if call.Kind == CallGenerate {
			c.ledger.setStatus(call.SectionID, StatusPending)
		}
		c.record(turn)
		c.logger.Warn("call failed", zap.String("kind", string(call.Kind)), zap.String("section", call.sectionName), zap.Error(err))
		return err
	}

	c.variations = cloneVariations(vs)
	if call.Kind == CallGenerate {
		c.phase = PhaseReviewing
	}
	turn.Variations = cloneVariations(vs)
	c.record(turn)
	return nil
}

// Reset starts a new landing page: approvals, variations and history are
// cleared and every section returns to pending. A call still in flight is
// discarded when it resolves.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.inFlight = nil
	c.active = ""
	c.variations = nil
	c.approved = ApprovedResult{}
	c.history = nil
	c.lastErr = ""
	c.ledger.ResetStatuses()
	c.phase = PhaseConfig
	c.logger.Info("session reset")
}

// DismissError clears the user-visible error notice.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = ""
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Busy reports whether a call is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight != nil
}

func (c *Controller) Sections() []Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Sections()
}

// ApprovedFor returns the approved variation of a section.
func (c *Controller) ApprovedFor(sectionID string) (generator.Variation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.approved[sectionID]
	return cloneVariation(v), ok
}

// FinalSections assembles the approved document in ledger order.
func (c *Controller) FinalSections() ([]FinalSection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseFinalized {
		return nil, transitionErr("read result", c.phase)
	}
	var out []FinalSection
	for _, s := range c.ledger.Sections() {
		v, ok := c.approved[s.ID]
		if !ok {
			continue
		}
		out = append(out, FinalSection{Section: s, Variation: cloneVariation(v), Text: v.DisplayText()})
	}
	return out, nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Phase:           c.phase,
		Brief:           c.brief,
		Landing:         c.landing,
		Sections:        c.ledger.Sections(),
		ActiveSectionID: c.active,
		Variations:      cloneVariations(c.variations),
		Approved:        make(ApprovedResult, len(c.approved)),
		Busy:            c.inFlight != nil,
		Error:           c.lastErr,
		History:         append([]Turn(nil), c.history...),
	}
	snap.Brief.Keywords = append([]string(nil), c.brief.Keywords...)
	for id, v := range c.approved {
		snap.Approved[id] = cloneVariation(v)
	}
	if c.document != nil {
		doc := *c.document
		snap.Document = &doc
	}
	return snap
}

// begin marks s generating and issues a generation call. Caller holds c.mu.
func (c *Controller) begin(s Section) *Call {
	c.epoch++
	c.ledger.setStatus(s.ID, StatusGenerating)
	c.active = s.ID
	c.variations = nil
	c.phase = PhaseGenerating
	c.lastErr = ""
	call := &Call{
		Kind:        CallGenerate,
		SectionID:   s.ID,
		Epoch:       c.epoch,
		sectionName: s.Name,
		request:     c.buildRequest(s),
	}
	c.inFlight = call
	c.logger.Info("generation issued", zap.String("section", s.Name), zap.Uint64("epoch", call.Epoch))
	return call
}

func (c *Controller) buildRequest(target Section) generator.Request {
	sections := c.ledger.Sections()
	outline := make([]generator.SectionOutline, len(sections))
	for i, s := range sections {
		outline[i] = generator.SectionOutline{Name: s.Name, Kind: s.Kind, Order: s.Order}
	}
	req := generator.Request{
		Brief:    c.brief,
		Landing:  c.landing,
		Sections: outline,
	}
	req.Keywords = append([]string(nil), c.brief.Keywords...)
	if c.document != nil {
		req.DocumentText = c.document.Text
	}
	// history is newest first
	for i := len(c.history) - 1; i >= 0; i-- {
		t := c.history[i]
		if t.Kind == CallRefine && t.SectionID == target.ID && t.Error == "" {
			req.PriorFeedback = append(req.PriorFeedback, t.Feedback)
		}
	}
	return req
}

func (c *Controller) record(t Turn) {
	c.history = append([]Turn{t}, c.history...)
	if len(c.history) > maxHistory {
		c.history = c.history[:maxHistory]
	}
}

// require checks the phase and that no call is outstanding. Caller holds c.mu.
func (c *Controller) require(phase Phase, action string) error {
	if c.inFlight != nil {
		return ErrBusy
	}
	if c.phase != phase {
		return transitionErr(action, c.phase)
	}
	return nil
}

func (c *Controller) editable(action string) error {
	if c.inFlight != nil {
		return ErrBusy
	}
	if c.phase != PhaseConfig && c.phase != PhaseStructure {
		return transitionErr(action, c.phase)
	}
	return nil
}

func cloneVariation(v generator.Variation) generator.Variation {
	v.BulletPoints = append([]string(nil), v.BulletPoints...)
	v.Cards = append([]generator.Card(nil), v.Cards...)
	return v
}

func cloneVariations(vs []generator.Variation) []generator.Variation {
	if vs == nil {
		return nil
	}
	out := make([]generator.Variation, len(vs))
	for i, v := range vs {
		out[i] = cloneVariation(v)
	}
	return out
}
