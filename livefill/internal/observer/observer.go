// Package observer reports DOM mutations of a live page to Go.
//
// A MutationObserver injected into every document of the page calls a CDP
// binding on each structural change; Observer turns the binding calls and
// page loads into calls of a single notify function. Batching is left to
// the caller's scheduler.
package observer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Binding is the name of the CDP binding the injected script calls.
const Binding = "__payfill_mutation"

// script watches childList changes under the document element. Attribute
// and value changes are left out so the page's own reaction to a fill does
// not re-trigger one.
const script = `() => {
	if (window.__payfillObserver) return;
	const notify = (kind) => {
		try { window.` + Binding + `(kind); } catch (e) {}
	};
	const start = () => {
		if (!document.documentElement || window.__payfillObserver) return;
		const obs = new MutationObserver(() => notify("mutation"));
		obs.observe(document.documentElement, { childList: true, subtree: true });
		window.__payfillObserver = obs;
		notify("ready");
	};
	if (document.documentElement) {
		start();
	} else {
		document.addEventListener("DOMContentLoaded", start, { once: true });
	}
}`

// Kind is what the page reported.
type Kind string

const (
	Mutation Kind = "mutation"
	Ready    Kind = "ready" // observer installed in a new document
	Load     Kind = "load"  // page load event
)

// Stats are point-in-time counters.
type Stats struct {
	Mutations int64 `json:"mutations"`
	Loads     int64 `json:"loads"`
}

// Observer watches one page.
type Observer struct {
	page   *rod.Page
	notify func(Kind)
	logger *slog.Logger
	cancel context.CancelFunc

	mutations atomic.Int64
	loads     atomic.Int64
}

// New creates an Observer calling notify for every mutation burst signal.
// notify runs on the event goroutine and must not block.
func New(page *rod.Page, notify func(Kind), logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{page: page, notify: notify, logger: logger}
}

// Start installs the binding and the script, in the current document and in
// every document the page loads later, then listens until ctx ends or Stop.
func (o *Observer) Start(ctx context.Context) error {
	if err := (proto.RuntimeAddBinding{Name: Binding}).Call(o.page); err != nil {
		return fmt.Errorf("observer: add binding: %w", err)
	}
	if _, err := o.page.EvalOnNewDocument("(" + script + ")()"); err != nil {
		return fmt.Errorf("observer: register script: %w", err)
	}

	ctx, o.cancel = context.WithCancel(ctx)
	wait := o.page.Context(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != Binding {
				return
			}
			kind := Kind(e.Payload)
			if kind == Mutation {
				o.mutations.Add(1)
			}
			o.notify(kind)
		},
		func(*proto.PageLoadEventFired) {
			o.loads.Add(1)
			o.notify(Load)
		},
	)
	go wait()

	if _, err := o.page.Eval(script); err != nil {
		o.Stop()
		return fmt.Errorf("observer: inject: %w", err)
	}
	o.logger.Debug("observer: installed")
	return nil
}

// Stats returns the counters.
func (o *Observer) Stats() Stats {
	return Stats{Mutations: o.mutations.Load(), Loads: o.loads.Load()}
}

// Stop ends listening. The script stays in the page; its binding calls are
// dropped.
func (o *Observer) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
}
