// Package livefill attaches the fill engine to a live checkout page.
//
// The Runner owns one Chrome tab. DOM mutations, page loads and settings
// changes schedule incremental scans; FillNow schedules a forced one and
// waits for its report. Scans run one at a time against the current settings
// snapshot.
package livefill

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/payfill/classify"
	"github.com/hazyhaar/payfill/control"
	"github.com/hazyhaar/payfill/dom"
	"github.com/hazyhaar/payfill/dom/roddoc"
	"github.com/hazyhaar/payfill/fill"
	"github.com/hazyhaar/payfill/guard"
	"github.com/hazyhaar/payfill/journal"
	"github.com/hazyhaar/payfill/livefill/internal/browser"
	"github.com/hazyhaar/payfill/livefill/internal/observer"
	"github.com/hazyhaar/payfill/settings"
)

// target is the page scans run against.
type target interface {
	// Document binds the page for one scan. An error means the page is
	// unreachable.
	Document(ctx context.Context) (dom.Document, string, error)
	Close() error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithJournal records every scan.
func WithJournal(j *journal.Journal) Option { return func(r *Runner) { r.journal = j } }

type result struct {
	rep fill.Report
	err error
}

// Runner drives fills on one page.
type Runner struct {
	cfg     *Config
	logger  *slog.Logger
	store   *settings.Store
	holder  *settings.Holder
	watcher *settings.Watcher
	engine  *fill.Engine
	sched   *fill.Scheduler
	journal *journal.Journal
	mgr     *browser.Manager

	ctx    context.Context
	cancel context.CancelFunc

	// revMu guards rev, the last store revision merged into holder.
	revMu sync.Mutex
	rev   int64

	mu      sync.Mutex
	tgt     target
	obs     *observer.Observer
	waiters []chan result
	stopped bool

	// scanMu serializes scans.
	scanMu sync.Mutex
}

// New builds a Runner from cfg and the current stored settings. Nothing is
// launched until Start.
func New(ctx context.Context, cfg *Config, store *settings.Store, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Runner{cfg: cfg, store: store, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	engine, err := newEngine(cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.engine = engine

	cur, rev, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("livefill: load settings: %w", err)
	}
	r.holder = settings.NewHolder(cur)
	r.rev = rev
	r.sched = fill.NewScheduler(cfg.Fill.Debounce, r.runScan)
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

func newEngine(cfg *Config, logger *slog.Logger) (*fill.Engine, error) {
	opts := []fill.Option{fill.WithLogger(logger)}
	if cfg.Fill.RulesFile != "" {
		rules, err := classify.LoadRulesFile(cfg.Fill.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("livefill: %w", err)
		}
		opts = append(opts, fill.WithClassifier(classify.New(rules)))
	}
	processors := append([]guard.Processor{guard.Stripe}, cfg.Fill.Processors...)
	opts = append(opts, fill.WithGuard(guard.New(processors...)))
	return fill.NewEngine(opts...), nil
}

// Start launches Chrome, opens the target page, installs the observer and
// starts following settings changes. The first scan is scheduled right away.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("livefill: %w", err)
	}
	mode, err := browser.ParseMode(r.cfg.Browser.Stealth)
	if err != nil {
		return fmt.Errorf("livefill: %w", err)
	}

	r.mgr = browser.NewManager(browser.Config{
		RemoteURL:        r.cfg.Browser.Remote,
		Mode:             mode,
		IgnoreCertErrors: r.cfg.Browser.IgnoreCertErrors,
		ResourceBlocking: r.cfg.Browser.ResourceBlocking,
		RecycleInterval:  r.cfg.Browser.RecycleInterval,
		XvfbDisplay:      r.cfg.Browser.XvfbDisplay,
		Logger:           r.logger,
	})
	if _, err := r.mgr.Start(r.ctx); err != nil {
		return fmt.Errorf("livefill: start browser: %w", err)
	}
	r.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: r.detach,
		AfterRecycle: func(*rod.Browser) {
			if err := r.openTarget(r.ctx); err != nil {
				r.logger.Error("livefill: reattach after recycle failed", "error", err)
			}
		},
	})

	if err := r.openTarget(ctx); err != nil {
		r.mgr.Close()
		return err
	}
	r.follow()
	r.sched.Trigger(false)
	return nil
}

// openTarget opens the tab and installs the observer.
func (r *Runner) openTarget(ctx context.Context) error {
	tab, err := browser.OpenTab(ctx, r.mgr, r.cfg.Target.URL, r.cfg.Target.NavigateTimeout)
	if err != nil {
		return fmt.Errorf("livefill: open target: %w", err)
	}
	obs := observer.New(tab.Page, r.onPageEvent, r.logger)
	if err := obs.Start(r.ctx); err != nil {
		tab.Close()
		return fmt.Errorf("livefill: %w", err)
	}

	r.mu.Lock()
	r.tgt = &tabTarget{tab: tab, logger: r.logger}
	r.obs = obs
	r.mu.Unlock()

	r.logger.Info("livefill: attached", "url", tab.PageURL)
	return nil
}

func (r *Runner) onPageEvent(kind observer.Kind) {
	r.logger.Debug("livefill: page event", "kind", kind)
	r.sched.Trigger(false)
}

// attach replaces the target without a browser.
func (r *Runner) attach(t target) {
	r.mu.Lock()
	r.tgt = t
	r.mu.Unlock()
}

// detach drops the target and its observer.
func (r *Runner) detach() {
	r.mu.Lock()
	tgt, obs := r.tgt, r.obs
	r.tgt, r.obs = nil, nil
	r.mu.Unlock()

	if obs != nil {
		obs.Stop()
	}
	if tgt != nil {
		tgt.Close()
	}
}

// follow schedules an incremental scan whenever the watcher sees stored
// settings the snapshot does not have yet.
func (r *Runner) follow() {
	r.revMu.Lock()
	since := r.rev
	r.revMu.Unlock()

	w := settings.NewWatcher(r.store, since, settings.WatchOptions{
		Interval: r.cfg.Store.PollInterval,
		Logger:   r.logger,
	})
	r.mu.Lock()
	r.watcher = w
	r.mu.Unlock()

	go w.Run(r.ctx, func(map[string]string) error {
		changed, err := r.refresh(r.ctx)
		if err != nil {
			return err
		}
		if changed {
			r.sched.Trigger(false)
		}
		return nil
	})
}

// refresh merges every stored change past the last merged revision into the
// snapshot. The watcher and forced scans both go through it, so a change is
// merged once whichever sees it first.
func (r *Runner) refresh(ctx context.Context) (bool, error) {
	r.revMu.Lock()
	defer r.revMu.Unlock()

	changes, rev, err := r.store.ChangesSince(ctx, r.rev)
	if err != nil {
		return false, fmt.Errorf("livefill: refresh settings: %w", err)
	}
	r.rev = rev
	if len(changes) == 0 {
		return false, nil
	}
	snap, ignored := r.holder.Merge(changes)
	if len(ignored) > 0 {
		r.logger.Warn("livefill: ignored settings keys", "keys", ignored)
	}
	r.logger.Info("livefill: settings updated", "version", snap.Version, "rev", rev, "keys", len(changes))
	return true, nil
}

// Snapshot returns the settings the next scan will use.
func (r *Runner) Snapshot() settings.Snapshot {
	return r.holder.Load()
}

// Status is a point-in-time view of the runner.
type Status struct {
	Attached        bool                 `json:"attached"`
	SettingsVersion uint64               `json:"settings_version"`
	Observer        *observer.Stats      `json:"observer,omitempty"`
	Watcher         *settings.WatchStats `json:"watcher,omitempty"`
}

// Status reports the target, snapshot and change-feed counters.
func (r *Runner) Status() any {
	r.mu.Lock()
	obs, w := r.obs, r.watcher
	st := Status{Attached: r.tgt != nil && !r.stopped}
	r.mu.Unlock()

	st.SettingsVersion = r.holder.Load().Version
	if obs != nil {
		s := obs.Stats()
		st.Observer = &s
	}
	if w != nil {
		s := w.Stats()
		st.Watcher = &s
	}
	return st
}

// FillNow schedules a forced scan and waits for its report.
func (r *Runner) FillNow(ctx context.Context) (fill.Report, error) {
	ch := make(chan result, 1)
	r.mu.Lock()
	if r.stopped || r.tgt == nil {
		r.mu.Unlock()
		return fill.Report{}, control.ErrNoTarget
	}
	r.waiters = append(r.waiters, ch)
	r.mu.Unlock()

	r.sched.Trigger(true)

	select {
	case res := <-ch:
		return res.rep, res.err
	case <-ctx.Done():
		r.dropWaiter(ch)
		return fill.Report{}, fmt.Errorf("%w: %v", control.ErrUnreachable, ctx.Err())
	}
}

func (r *Runner) dropWaiter(ch chan result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.waiters {
		if w == ch {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// runScan is the scheduler callback.
func (r *Runner) runScan(force bool) {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	r.mu.Lock()
	tgt := r.tgt
	var waiters []chan result
	if force {
		waiters, r.waiters = r.waiters, nil
	}
	r.mu.Unlock()

	if force && tgt != nil {
		// Fill-now usually follows a settings save the watcher has not
		// polled yet.
		if _, err := r.refresh(r.ctx); err != nil {
			r.logger.Warn("livefill: forced scan uses current snapshot", "error", err)
		}
	}
	res := r.scan(tgt, force)
	for _, w := range waiters {
		w <- res
	}
}

func (r *Runner) scan(tgt target, force bool) result {
	if tgt == nil {
		return result{err: control.ErrNoTarget}
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Fill.ScanTimeout)
	defer cancel()

	doc, pageURL, err := tgt.Document(ctx)
	if err != nil {
		r.logger.Warn("livefill: page unreachable", "error", err)
		return result{err: fmt.Errorf("%w: %v", control.ErrUnreachable, err)}
	}

	rep := r.engine.Scan(ctx, doc, r.holder.Load(), force)
	rep.PageURL = pageURL
	if r.journal != nil {
		r.journal.Record(ctx, rep)
	}
	r.logger.Info("livefill: scan",
		"scan", rep.ID,
		"forced", rep.Forced,
		"skipped", rep.Skipped,
		"filled", rep.Filled(),
		"duration", rep.Duration)
	return result{rep: rep}
}

// Stop cancels pending scans, releases the page and shuts Chrome down.
func (r *Runner) Stop() {
	r.sched.Stop()
	r.cancel()

	r.mu.Lock()
	r.stopped = true
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()
	for _, w := range waiters {
		w <- result{err: control.ErrNoTarget}
	}

	r.detach()
	if r.mgr != nil {
		r.mgr.Close()
	}
}

// tabTarget scans a Chrome tab through roddoc.
type tabTarget struct {
	tab    *browser.Tab
	logger *slog.Logger
}

func (t *tabTarget) Document(ctx context.Context) (dom.Document, string, error) {
	loc, err := t.tab.Location(ctx)
	if err != nil {
		return nil, "", err
	}
	return roddoc.New(ctx, t.tab.Page, t.logger), loc, nil
}

func (t *tabTarget) Close() error { return t.tab.Close() }
