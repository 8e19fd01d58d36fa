// Package settings holds the operator's fill data and the engine switches.
//
// The fill pipeline never sees a mutable record: it reads a Snapshot, an
// immutable versioned copy. Updates are key merges that produce the next
// snapshot, so a scan in flight keeps the values it started with.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrUnknownKey is returned when saving a key that is not a setting.
	ErrUnknownKey = errors.New("unknown settings key")
	// ErrInvalidValue is returned when a value cannot be parsed for its key.
	ErrInvalidValue = errors.New("invalid settings value")
)

// Storage keys.
const (
	KeyEnabled      = "enabled"
	KeyBINPrefix    = "binPrefix"
	KeyCardNumber   = "cardNumber"
	KeyExpMonth     = "expMonth"
	KeyExpYear      = "expYear"
	KeyCVC          = "cvc"
	KeyFullName     = "fullName"
	KeyEmail        = "email"
	KeyPhone        = "phone"
	KeyAddressLine1 = "addressLine1"
	KeyAddressLine2 = "addressLine2"
	KeyCity         = "city"
	KeyState        = "state"
	KeyZip          = "zip"
	KeyCountry      = "country"
)

// ValueSource is the raw data injected into classified fields. An empty
// string means no value is available.
type ValueSource struct {
	CardNumber   string `json:"cardNumber"`
	ExpMonth     string `json:"expMonth"`
	ExpYear      string `json:"expYear"`
	CVC          string `json:"cvc"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
}

// Settings is the full persisted record.
type Settings struct {
	Enabled   bool   `json:"enabled"`
	BINPrefix string `json:"binPrefix"`
	ValueSource
}

// Defaults returns the record used before anything is stored.
func Defaults() Settings {
	return Settings{Enabled: true}
}

// textFields maps every string key to its field.
var textFields = map[string]func(*Settings) *string{
	KeyBINPrefix:    func(s *Settings) *string { return &s.BINPrefix },
	KeyCardNumber:   func(s *Settings) *string { return &s.CardNumber },
	KeyExpMonth:     func(s *Settings) *string { return &s.ExpMonth },
	KeyExpYear:      func(s *Settings) *string { return &s.ExpYear },
	KeyCVC:          func(s *Settings) *string { return &s.CVC },
	KeyFullName:     func(s *Settings) *string { return &s.FullName },
	KeyEmail:        func(s *Settings) *string { return &s.Email },
	KeyPhone:        func(s *Settings) *string { return &s.Phone },
	KeyAddressLine1: func(s *Settings) *string { return &s.AddressLine1 },
	KeyAddressLine2: func(s *Settings) *string { return &s.AddressLine2 },
	KeyCity:         func(s *Settings) *string { return &s.City },
	KeyState:        func(s *Settings) *string { return &s.State },
	KeyZip:          func(s *Settings) *string { return &s.Zip },
	KeyCountry:      func(s *Settings) *string { return &s.Country },
}

// digitKeys are stored as digits only.
var digitKeys = map[string]bool{
	KeyBINPrefix:  true,
	KeyCardNumber: true,
	KeyExpMonth:   true,
	KeyExpYear:    true,
	KeyCVC:        true,
}

// Keys lists every storage key, sorted.
func Keys() []string {
	keys := []string{KeyEnabled}
	for k := range textFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Known reports whether key is a storage key.
func Known(key string) bool {
	_, ok := textFields[key]
	return ok || key == KeyEnabled
}

// Normalize cleans a raw input for storage: digits only for the card
// fields and the BIN prefix, trimmed text elsewhere, "true"/"false" for
// the enabled flag.
func Normalize(key, raw string) (string, error) {
	switch {
	case key == KeyEnabled:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return "", fmt.Errorf("settings: %s: %w", key, ErrInvalidValue)
		}
		return strconv.FormatBool(b), nil
	case digitKeys[key]:
		return Digits(raw), nil
	case Known(key):
		return strings.TrimSpace(raw), nil
	default:
		return "", fmt.Errorf("settings: %q: %w", key, ErrUnknownKey)
	}
}

// Digits strips every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Apply merges changes into a copy of s. Unknown keys and unparsable
// booleans are left out and returned sorted.
func (s Settings) Apply(changes map[string]string) (Settings, []string) {
	var ignored []string
	for k, v := range changes {
		if k == KeyEnabled {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				ignored = append(ignored, k)
				continue
			}
			s.Enabled = b
			continue
		}
		f, ok := textFields[k]
		if !ok {
			ignored = append(ignored, k)
			continue
		}
		*f(&s) = v
	}
	sort.Strings(ignored)
	return s, ignored
}

// Snapshot is an immutable, versioned copy of the settings.
type Snapshot struct {
	Version uint64 `json:"version"`
	Settings
}

// Holder owns the current snapshot. Readers take a copy; writers swap in a
// new version.
type Holder struct {
	mu  sync.RWMutex
	cur Snapshot
}

// NewHolder starts at version 1 with s.
func NewHolder(s Settings) *Holder {
	return &Holder{cur: Snapshot{Version: 1, Settings: s}}
}

// Load returns the current snapshot.
func (h *Holder) Load() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cur
}

// Merge applies a key/value update on top of the current snapshot and
// returns the new one with the ignored keys.
func (h *Holder) Merge(changes map[string]string) (Snapshot, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, ignored := h.cur.Settings.Apply(changes)
	h.cur = Snapshot{Version: h.cur.Version + 1, Settings: next}
	return h.cur, ignored
}

