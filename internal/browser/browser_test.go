package browser

import (
	"context"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.UserAgent == "" || cfg.ViewportWidth == 0 || cfg.ViewportHeight == 0 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestStorageEntries(t *testing.T) {
	v := gson.New(map[string]interface{}{
		"wta.consent":  "accepted",
		"wta.filters":  `{"region":"snoqualmie"}`,
		"legacy.count": 3,
	})

	got := storageEntries(v)

	want := map[string]string{
		"wta.consent":  "accepted",
		"wta.filters":  `{"region":"snoqualmie"}`,
		"legacy.count": "3",
	}
	if len(got) != len(want) {
		t.Fatalf("storageEntries() = %v", got)
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("entry %q = %q, want %q", k, got[k], w)
		}
	}
}

func TestStorageEntries_Empty(t *testing.T) {
	if got := storageEntries(gson.New(map[string]interface{}{})); len(got) != 0 {
		t.Errorf("storageEntries() = %v, want empty", got)
	}
}

func TestRodTab_Scoped(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"no timeout", 0, false},
		{"negative timeout", -time.Second, false},
		{"with timeout", time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := &rodTab{page: &rod.Page{}, timeout: tt.timeout}

			page, release := tab.scoped(context.Background(), tab.timeout)
			_, hasDeadline := page.GetContext().Deadline()
			if hasDeadline != tt.wantDeadline {
				t.Errorf("deadline set = %v, want %v", hasDeadline, tt.wantDeadline)
			}

			release()
			if tt.wantDeadline && page.GetContext().Err() == nil {
				t.Error("release should cancel the deadline")
			}
		})
	}
}
