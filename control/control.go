// Package control is the operator surface of payfill: fill-now, card
// generation, settings and scan history, served over HTTP and MCP.
//
// Every operation is a kit.Endpoint, so both transports share decoding,
// logging and error semantics.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/hazyhaar/payfill/cardgen"
	"github.com/hazyhaar/payfill/fill"
	"github.com/hazyhaar/payfill/journal"
	"github.com/hazyhaar/payfill/kit"
	"github.com/hazyhaar/payfill/settings"
)

var (
	// ErrNoTarget is returned by fill-now when no page is attached.
	ErrNoTarget = errors.New("no active target")
	// ErrUnreachable is returned when the attached page does not respond.
	ErrUnreachable = errors.New("unable to reach the page")
)

// Filler runs a forced scan on the attached page.
type Filler interface {
	FillNow(ctx context.Context) (fill.Report, error)
}

// StatusReporter is implemented by fillers that expose runtime counters.
type StatusReporter interface {
	Status() any
}

// Service implements the control operations.
type Service struct {
	store   *settings.Store
	journal *journal.Journal
	filler  Filler
	cards   *cardgen.Generator
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFiller attaches the page runner. Without one, fill-now fails with
// ErrNoTarget.
func WithFiller(f Filler) Option { return func(s *Service) { s.filler = f } }

// WithJournal enables the scan history.
func WithJournal(j *journal.Journal) Option { return func(s *Service) { s.journal = j } }

// WithCardGenerator replaces the random card generator.
func WithCardGenerator(g *cardgen.Generator) Option { return func(s *Service) { s.cards = g } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New creates a Service over the settings store.
func New(store *settings.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cards:  cardgen.NewGenerator(nil),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// --- requests and responses ---

// FillRequest optionally saves settings before filling.
type FillRequest struct {
	Settings map[string]any `json:"settings,omitempty"`
}

// HealthResponse reports liveness and, when the filler exposes it, the
// runner status.
type HealthResponse struct {
	Status string `json:"status"`
	Runner any    `json:"runner,omitempty"`
}

// CardRequest asks for a generated card number. An empty BIN uses the
// stored binPrefix. Save stores the number as the cardNumber setting.
type CardRequest struct {
	BIN    string `json:"bin,omitempty"`
	Length int    `json:"length,omitempty"`
	Save   bool   `json:"save,omitempty"`
}

// CardResponse is a generated number in raw and grouped form.
type CardResponse struct {
	Number    string `json:"number"`
	Formatted string `json:"formatted"`
	Saved     bool   `json:"saved"`
}

// SettingsRequest is a key merge.
type SettingsRequest struct {
	Settings map[string]any `json:"settings"`
}

// SettingsResponse is the stored record and its revision.
type SettingsResponse struct {
	Revision int64             `json:"revision"`
	Settings settings.Settings `json:"settings"`
}

// ScansRequest limits the history.
type ScansRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ScansResponse lists recent scans, newest first.
type ScansResponse struct {
	Scans []fill.Report `json:"scans"`
}

// --- operations ---

// FillNow saves the optional settings then runs a forced scan.
func (s *Service) FillNow(ctx context.Context, req FillRequest) (fill.Report, error) {
	if len(req.Settings) > 0 {
		if _, err := s.save(ctx, req.Settings); err != nil {
			return fill.Report{}, err
		}
	}
	if s.filler == nil {
		return fill.Report{}, ErrNoTarget
	}
	return s.filler.FillNow(ctx)
}

// Health reports liveness.
func (s *Service) Health() HealthResponse {
	resp := HealthResponse{Status: "ok"}
	if sr, ok := s.filler.(StatusReporter); ok {
		resp.Runner = sr.Status()
	}
	return resp
}

// GenerateCard builds a Luhn-valid number from the BIN.
func (s *Service) GenerateCard(ctx context.Context, req CardRequest) (CardResponse, error) {
	bin := req.BIN
	if bin == "" {
		cur, _, err := s.store.Load(ctx)
		if err != nil {
			return CardResponse{}, err
		}
		bin = cur.BINPrefix
	}
	number, err := s.cards.Generate(bin, req.Length)
	if err != nil {
		return CardResponse{}, err
	}
	resp := CardResponse{Number: number, Formatted: cardgen.Format(number)}
	if req.Save {
		changes := map[string]string{settings.KeyCardNumber: number}
		if req.BIN != "" {
			changes[settings.KeyBINPrefix] = req.BIN
		}
		if _, err := s.store.Save(ctx, changes); err != nil {
			return CardResponse{}, err
		}
		resp.Saved = true
	}
	return resp, nil
}

// Settings returns the stored record.
func (s *Service) Settings(ctx context.Context) (SettingsResponse, error) {
	cur, rev, err := s.store.Load(ctx)
	if err != nil {
		return SettingsResponse{}, err
	}
	return SettingsResponse{Revision: rev, Settings: cur}, nil
}

// SaveSettings merges the given keys into the store.
func (s *Service) SaveSettings(ctx context.Context, req SettingsRequest) (SettingsResponse, error) {
	if len(req.Settings) == 0 {
		return SettingsResponse{}, fmt.Errorf("no settings given: %w", kit.ErrBadRequest)
	}
	if _, err := s.save(ctx, req.Settings); err != nil {
		return SettingsResponse{}, err
	}
	return s.Settings(ctx)
}

// RecentScans lists the journal. Without a journal the list is empty.
func (s *Service) RecentScans(ctx context.Context, req ScansRequest) (ScansResponse, error) {
	if s.journal == nil {
		return ScansResponse{Scans: []fill.Report{}}, nil
	}
	scans, err := s.journal.Recent(ctx, req.Limit)
	if err != nil {
		return ScansResponse{}, err
	}
	if scans == nil {
		scans = []fill.Report{}
	}
	return ScansResponse{Scans: scans}, nil
}

func (s *Service) save(ctx context.Context, raw map[string]any) (int64, error) {
	changes, err := stringify(raw)
	if err != nil {
		return 0, err
	}
	rev, err := s.store.Save(ctx, changes)
	if err != nil {
		return 0, err
	}
	s.logger.Info("control: settings saved", "revision", rev, "keys", sortedKeys(changes))
	return rev, nil
}

// stringify converts JSON values to the string form the store normalizes.
func stringify(raw map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			out[k] = v
		case bool:
			out[k] = strconv.FormatBool(v)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case nil:
			out[k] = ""
		default:
			return nil, fmt.Errorf("%s: %w", k, settings.ErrInvalidValue)
		}
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- endpoints ---

func (s *Service) fillEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		return s.FillNow(ctx, derefOr[FillRequest](req))
	}
}

func (s *Service) cardEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		return s.GenerateCard(ctx, derefOr[CardRequest](req))
	}
}

func (s *Service) getSettingsEndpoint() kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		return s.Settings(ctx)
	}
}

func (s *Service) saveSettingsEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		return s.SaveSettings(ctx, derefOr[SettingsRequest](req))
	}
}

func (s *Service) scansEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		return s.RecentScans(ctx, derefOr[ScansRequest](req))
	}
}

// derefOr unwraps a decoded *T, the zero T for anything else.
func derefOr[T any](req any) T {
	if p, ok := req.(*T); ok && p != nil {
		return *p
	}
	var zero T
	return zero
}

// wrap applies the logging middleware.
func (s *Service) wrap(op string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, op))(e)
}

// Status maps control errors to HTTP statuses.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNoTarget):
		return 409
	case errors.Is(err, ErrUnreachable):
		return 502
	case errors.Is(err, cardgen.ErrInvalidPrefix),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidValue):
		return 400
	default:
		return 500
	}
}
