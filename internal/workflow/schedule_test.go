package workflow

import (
	"testing"
	"time"
)

func TestNextDaily(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	tests := []struct {
		name string
		now  time.Time
		at   string
		want time.Time
	}{
		{"later today", time.Date(2026, 3, 10, 0, 30, 0, 0, berlin), "02:00", time.Date(2026, 3, 10, 2, 0, 0, 0, berlin)},
		{"already passed", time.Date(2026, 3, 10, 2, 0, 0, 0, berlin), "02:00", time.Date(2026, 3, 11, 2, 0, 0, 0, berlin)},
		{"utc input", time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), "02:00", time.Date(2026, 3, 11, 2, 0, 0, 0, berlin)},
		{"month end", time.Date(2026, 1, 31, 22, 0, 0, 0, berlin), "06:15", time.Date(2026, 2, 1, 6, 15, 0, 0, berlin)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := nextDaily(tc.now, tc.at, berlin)
			if err != nil {
				t.Fatalf("nextDaily: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	if h, m, err := parseClock(" 07:05 "); err != nil || h != 7 || m != 5 {
		t.Fatalf("parseClock = %d %d %v", h, m, err)
	}
	for _, bad := range []string{"", "7", "24:00", "12:60", "ab:cd"} {
		if _, _, err := parseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
