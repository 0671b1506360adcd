package workflow

import (
	"landing_copy_studio/generator"

	"github.com/google/uuid"
)

// Status is a section's approval state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusGenerating, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Section is one content block of the landing page.
type Section struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Order  int                   `json:"order"`
	Kind   generator.SectionKind `json:"kind"`
	Status Status                `json:"status"`
}

// SectionPatch lists the fields Update may change; nil fields are left alone.
type SectionPatch struct {
	Name   *string                `json:"name,omitempty"`
	Kind   *generator.SectionKind `json:"kind,omitempty"`
	Status *Status                `json:"status,omitempty"`
}

const defaultSectionName = "New Section"

// Ledger is the ordered, status-tracked list of sections.
// Orders are always dense 1..N and at most one section is generating.
// A Ledger is not safe for concurrent use; the Controller serialises access.
type Ledger struct {
	sections []Section
	newID    func() string
}

func NewLedger() *Ledger {
	return &Ledger{newID: uuid.NewString}
}

// Add appends a pending section. Blank names and unknown kinds fall back to defaults.
func (l *Ledger) Add(name string, kind generator.SectionKind) Section {
	if name == "" {
		name = defaultSectionName
	}
	if !kind.Valid() {
		kind = generator.KindCustom
	}
	s := Section{
		ID:     l.newID(),
		Name:   name,
		Order:  len(l.sections) + 1,
		Kind:   kind,
		Status: StatusPending,
	}
	l.sections = append(l.sections, s)
	return s
}

// Remove deletes the section if present.
func (l *Ledger) Remove(id string) {
	i := l.index(id)
	if i < 0 {
		return
	}
	l.sections = append(l.sections[:i], l.sections[i+1:]...)
	l.renumber()
}

// Update applies p to the section if present. A status change to generating is
// ignored while another section is generating.
func (l *Ledger) Update(id string, p SectionPatch) {
	i := l.index(id)
	if i < 0 {
		return
	}
	s := &l.sections[i]
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Kind != nil && p.Kind.Valid() {
		s.Kind = *p.Kind
	}
	if p.Status != nil && p.Status.valid() {
		if *p.Status == StatusGenerating {
			if g, ok := l.generating(); ok && g.ID != id {
				return
			}
		}
		s.Status = *p.Status
	}
}

// Reorder moves the section at from to position to (both zero-based).
// Out-of-range indexes are ignored.
func (l *Ledger) Reorder(from, to int) {
	n := len(l.sections)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return
	}
	moved := l.sections[from]
	l.sections = append(l.sections[:from], l.sections[from+1:]...)
	l.sections = append(l.sections[:to], append([]Section{moved}, l.sections[to:]...)...)
	l.renumber()
}

// NextPending returns the lowest-ordered pending section.
func (l *Ledger) NextPending() (Section, bool) {
	for _, s := range l.sections {
		if s.Status == StatusPending {
			return s, true
		}
	}
	return Section{}, false
}

// Get looks a section up by id.
func (l *Ledger) Get(id string) (Section, bool) {
	if i := l.index(id); i >= 0 {
		return l.sections[i], true
	}
	return Section{}, false
}

// Sections returns a copy in order.
func (l *Ledger) Sections() []Section {
	out := make([]Section, len(l.sections))
	copy(out, l.sections)
	return out
}

func (l *Ledger) Len() int { return len(l.sections) }

// ResetStatuses returns every section to pending.
func (l *Ledger) ResetStatuses() {
	for i := range l.sections {
		l.sections[i].Status = StatusPending
	}
}

func (l *Ledger) setStatus(id string, st Status) {
	l.Update(id, SectionPatch{Status: &st})
}

func (l *Ledger) generating() (Section, bool) {
	for _, s := range l.sections {
		if s.Status == StatusGenerating {
			return s, true
		}
	}
	return Section{}, false
}

func (l *Ledger) index(id string) int {
	for i, s := range l.sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) renumber() {
	for i := range l.sections {
		l.sections[i].Order = i + 1
	}
}
