package browser

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Headless, false},
		{"headless", Headless, false},
		{"headful", Headful, false},
		{"kiosk", Headless, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.HealthInterval <= 0 || m.cfg.XvfbDisplay != ":99" || m.cfg.Logger == nil {
		t.Errorf("defaults not applied: %+v", m.cfg)
	}
	if m.Browser() != nil {
		t.Error("browser before Start")
	}
}

func TestManager_ClosedRejectsStart(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.Start(t.Context()); err == nil {
		t.Error("Start after Close succeeded")
	}
}
