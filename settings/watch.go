package settings

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// WatchOptions tunes the Watcher.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 500ms.
	Interval time.Duration
	// Debounce is the quiet period after a new revision is seen before the
	// changes are delivered. Further revisions inside the window restart it.
	// 0 delivers on the next poll.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls the store revision and delivers incremental key/value
// changes. It is the change feed the live runner merges into its snapshot.
type Watcher struct {
	store *Store
	opts  WatchOptions

	// rev is the last revision delivered successfully.
	rev atomic.Int64

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
}

// WatchStats are point-in-time counters.
type WatchStats struct {
	Checks   int64 `json:"checks"`
	Changes  int64 `json:"changes"`
	Errors   int64 `json:"errors"`
	Revision int64 `json:"revision"`
}

// NewWatcher creates a Watcher starting after revision since, usually the
// revision returned by Store.Load.
func NewWatcher(store *Store, since int64, opts WatchOptions) *Watcher {
	opts.defaults()
	w := &Watcher{store: store, opts: opts}
	w.rev.Store(since)
	return w
}

// Stats returns the current counters.
func (w *Watcher) Stats() WatchStats {
	return WatchStats{
		Checks:   w.checks.Load(),
		Changes:  w.changes.Load(),
		Errors:   w.errors.Load(),
		Revision: w.rev.Load(),
	}
}

// Run blocks until ctx is cancelled. When the revision moves and the
// debounce window passes quietly, onChange receives every key written since
// the last delivery. If onChange fails the revision is not advanced and the
// same changes are delivered again on the next cycle.
func (w *Watcher) Run(ctx context.Context, onChange func(map[string]string) error) {
	log := w.opts.Logger
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		debounce   *time.Timer
		debounceCh <-chan time.Time
		pending    int64 = -1
	)
	stop := func() {
		if debounce != nil {
			debounce.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.store.Revision(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("settings: revision check failed", "error", err)
				continue
			}
			if cur == w.rev.Load() || cur == pending {
				continue
			}
			pending = cur
			if w.opts.Debounce <= 0 {
				w.deliver(ctx, onChange)
				pending = -1
				continue
			}
			stop()
			debounce = time.NewTimer(w.opts.Debounce)
			debounceCh = debounce.C
			log.Debug("settings: change detected, debouncing", "rev", cur)

		case <-debounceCh:
			debounceCh = nil
			if pending >= 0 {
				w.deliver(ctx, onChange)
				pending = -1
			}
		}
	}
}

func (w *Watcher) deliver(ctx context.Context, onChange func(map[string]string) error) {
	log := w.opts.Logger
	changes, rev, err := w.store.ChangesSince(ctx, w.rev.Load())
	if err != nil {
		w.errors.Add(1)
		log.Warn("settings: read changes failed", "error", err)
		return
	}
	if len(changes) == 0 {
		w.rev.Store(rev)
		return
	}
	if err := onChange(changes); err != nil {
		w.errors.Add(1)
		log.Error("settings: apply changes failed", "error", err, "rev", rev)
		return
	}
	w.changes.Add(1)
	w.rev.Store(rev)
	log.Info("settings: changes applied", "rev", rev, "keys", len(changes))
}
