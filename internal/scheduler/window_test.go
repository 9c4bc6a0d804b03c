package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestWindowOpen(t *testing.T) {
	// Окно открывается ежедневно в 12:00 на 2 часа.
	w, err := NewWindow("0 12 * * *", 2*time.Hour)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		at   time.Time
		want bool
	}{
		{day.Add(11*time.Hour + 59*time.Minute), false},
		{day.Add(12 * time.Hour), true},
		{day.Add(13 * time.Hour), true},
		{day.Add(13*time.Hour + 59*time.Minute), true},
		{day.Add(14 * time.Hour), false}, // окно закрывается ровно через duration
		{day.Add(14*time.Hour + time.Minute), false},
		{day.Add(23 * time.Hour), false},
	}

	for _, tc := range cases {
		if got := w.Open(tc.at); got != tc.want {
			t.Errorf("Open(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
		}
	}
}

func TestWindowNextOpening(t *testing.T) {
	w, err := NewWindow("0 12 * * *", time.Hour)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	morning := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	next := w.NextOpening(morning)
	if next.Hour() != 12 || next.Day() != 27 {
		t.Errorf("expected next opening at 12:00 same day, got %s", next)
	}

	// Внутри окна открытие — сейчас.
	noon := time.Date(2026, 8, 27, 12, 30, 0, 0, time.UTC)
	if got := w.NextOpening(noon); !got.Equal(noon) {
		t.Errorf("inside the window expected now, got %s", got)
	}
}

func TestNewWindowRejectsBadInput(t *testing.T) {
	if _, err := NewWindow("not a cron", time.Hour); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow for bad expression, got %v", err)
	}
	if _, err := NewWindow("0 12 * * *", 0); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow for zero duration, got %v", err)
	}
}
