// Package fill drives the classification-and-fill pipeline over a page.
//
// Engine.Scan is one pass: guard, enumerate, filter, classify, synthesize,
// inject. Scheduler coalesces the triggers that ask for a pass.
package fill

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/dom"
	"github.com/hazyhaar/payfill/guard"
	"github.com/hazyhaar/payfill/idgen"
	"github.com/hazyhaar/payfill/inject"
	"github.com/hazyhaar/payfill/settings"
	"github.com/hazyhaar/payfill/synth"
)

// Engine runs scans. It holds no per-page state and is safe for concurrent
// use on different documents.
type Engine struct {
	classifier *classify.Classifier
	guard      *guard.Guard
	logger     *slog.Logger
	newID      idgen.Generator
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier replaces the default rule table.
func WithClassifier(c *classify.Classifier) Option { return func(e *Engine) { e.classifier = c } }

// WithGuard replaces the Stripe-only guard.
func WithGuard(g *guard.Guard) Option { return func(e *Engine) { e.guard = g } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithIDGenerator sets the scan ID generator.
func WithIDGenerator(gen idgen.Generator) Option { return func(e *Engine) { e.newID = gen } }

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		classifier: classify.Default(),
		guard:      guard.New(),
		logger:     slog.Default(),
		newID:      idgen.Scan,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Scan runs one pass over doc with the values of snap. An incremental pass
// (force false) leaves non-blank controls alone; a forced pass overwrites
// them. Scan never fails: everything that did not happen is in the report.
func (e *Engine) Scan(ctx context.Context, doc dom.Document, snap settings.Snapshot, force bool) (rep Report) {
	rep = Report{
		ID:              e.newID(),
		Forced:          force,
		SettingsVersion: snap.Version,
		StartedAt:       e.now(),
	}
	defer func() { rep.Duration = e.now().Sub(rep.StartedAt) }()
	log := e.logger.With("scan", rep.ID)

	if !snap.Enabled {
		rep.Skipped = SkipDisabled
		return rep
	}
	processor, ok := e.guard.Eligible(doc)
	if !ok {
		rep.Skipped = SkipNotContext
		log.Debug("fill: not a processor context", "host", doc.Hostname())
		return rep
	}
	rep.Processor = processor

	elements := doc.QueryAll(dom.FormControls)
	rep.Candidates = len(elements)
	for i, el := range elements {
		if ctx.Err() != nil {
			rep.Skipped = SkipCancelled
			return rep
		}
		res, ok := e.fillOne(log, doc, el, snap.ValueSource, force)
		if !ok {
			continue
		}
		res.Index = i
		rep.Fields = append(rep.Fields, res)
	}

	log.Debug("fill: scan complete",
		"processor", processor,
		"forced", force,
		"candidates", rep.Candidates,
		"classified", len(rep.Fields),
		"filled", rep.Filled())
	return rep
}

// fillOne handles a single element. ok is false for elements that are not
// eligible or not classified.
func (e *Engine) fillOne(log *slog.Logger, doc dom.Document, el dom.Element, src settings.ValueSource, force bool) (FieldResult, bool) {
	tag := el.Tag()
	st, err := el.State()
	if err != nil {
		log.Debug("fill: read control state", "tag", tag, "error", err)
		return FieldResult{}, false
	}
	if !inject.Eligible(tag, st) {
		return FieldResult{}, false
	}
	ft := e.classifier.Classify(doc, el)
	if ft == classify.None {
		return FieldResult{}, false
	}

	res := FieldResult{
		Tag:       tag,
		Name:      el.Attr("name"),
		ElementID: el.Attr("id"),
		Type:      ft,
	}
	res.Outcome, err = inject.Apply(el, st, ft, synth.Value(ft, src), force)
	if err != nil {
		res.Error = err.Error()
		log.Debug("fill: inject failed", "type", ft, "name", res.Name, "error", err)
	}
	return res, true
}
