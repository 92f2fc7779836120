package cron

import (
	"testing"
	"time"
)

func TestNextRunTime(t *testing.T) {
	base := time.Date(2026, time.March, 10, 11, 30, 0, 0, time.UTC)

	if got := nextRunTime("300", base); got != base.Add(5*time.Minute) {
		t.Errorf("integer seconds: got %v", got)
	}

	// Standard cron expression: top of every hour.
	got := nextRunTime("0 * * * *", base)
	want := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("cron expression: got %v, want %v", got, want)
	}

	if got := nextRunTime("garbage", base); got != base.Add(time.Hour) {
		t.Errorf("fallback: got %v", got)
	}

	if got := nextRunTime("-5", base); got != base.Add(time.Hour) {
		t.Errorf("negative seconds should fall back: got %v", got)
	}
}
