package types

import (
	"testing"
	"time"
)

func TestIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1m": time.Minute,
		"5m": 5 * time.Minute,
		"1h": time.Hour,
		"4h": 4 * time.Hour,
		"1d": 24 * time.Hour,
		"1w": 7 * 24 * time.Hour,
	}
	for interval, want := range cases {
		got, err := IntervalDuration(interval)
		if err != nil {
			t.Errorf("IntervalDuration(%q) failed: %v", interval, err)
			continue
		}
		if got != want {
			t.Errorf("IntervalDuration(%q) = %v, want %v", interval, got, want)
		}
	}

	if _, err := IntervalDuration("17x"); err == nil {
		t.Error("Expected error for unknown interval")
	}
}

func TestBarsPerDay(t *testing.T) {
	cases := map[string]int{
		"1h":  24,
		"4h":  6,
		"1d":  1,
		"15m": 96,
	}
	for interval, want := range cases {
		got, err := BarsPerDay(interval)
		if err != nil {
			t.Errorf("BarsPerDay(%q) failed: %v", interval, err)
			continue
		}
		if got != want {
			t.Errorf("BarsPerDay(%q) = %d, want %d", interval, got, want)
		}
	}
}

func TestDaysToBars(t *testing.T) {
	got, err := DaysToBars(7, "1h")
	if err != nil {
		t.Fatalf("DaysToBars failed: %v", err)
	}
	if got != 168 {
		t.Errorf("Expected 168 hourly bars in a week, got %d", got)
	}
}

func TestDirectionOpposite(t *testing.T) {
	if Long.Opposite() != Short {
		t.Error("Expected Short opposite of Long")
	}
	if Short.Opposite() != Long {
		t.Error("Expected Long opposite of Short")
	}
}
