package fill

import (
	"time"

	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/inject"
)

// Reasons a scan stopped before touching elements.
const (
	SkipDisabled   = "disabled"
	SkipNotContext = "not_processor_context"
	SkipCancelled  = "cancelled"
)

// Report describes one scan.
type Report struct {
	ID      string `json:"id"`
	PageURL string `json:"page_url,omitempty"`
	Forced  bool   `json:"forced"`
	// SettingsVersion is the snapshot version the scan used.
	SettingsVersion uint64 `json:"settings_version"`
	// Skipped is set when the scan stopped early.
	Skipped   string `json:"skipped,omitempty"`
	Processor string `json:"processor,omitempty"`
	// Candidates counts the input/select/textarea elements enumerated.
	Candidates int           `json:"candidates"`
	Fields     []FieldResult `json:"fields"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// FieldResult is the fate of one classified control.
type FieldResult struct {
	// Index is the element's position among the enumerated candidates.
	Index     int                `json:"index"`
	Tag       string             `json:"tag"`
	Name      string             `json:"name,omitempty"`
	ElementID string             `json:"element_id,omitempty"`
	Type      classify.FieldType `json:"type"`
	Outcome   inject.Outcome     `json:"outcome"`
	Error     string             `json:"error,omitempty"`
}

// Count returns how many fields ended with outcome o.
func (r Report) Count(o inject.Outcome) int {
	n := 0
	for _, f := range r.Fields {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Filled returns how many fields were written.
func (r Report) Filled() int { return r.Count(inject.Filled) }

// Field returns the first result for ft.
func (r Report) Field(ft classify.FieldType) (FieldResult, bool) {
	for _, f := range r.Fields {
		if f.Type == ft {
			return f, true
		}
	}
	return FieldResult{}, false
}
