package domain

import (
	"testing"
	"time"
)

func TestWindowAt(t *testing.T) {
	// 1_700_000_040 is a multiple of 60.
	base := time.Unix(1_700_000_040, 0)

	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
	}{
		{"at boundary belongs to new window", base, base},
		{"inside window", base.Add(10 * time.Second), base},
		{"just before next boundary", base.Add(60*time.Second - time.Nanosecond), base},
		{"next boundary", base.Add(60 * time.Second), base.Add(60 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WindowAt(tt.now, time.Minute)
			if !w.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", w.Start, tt.wantStart)
			}
			if !w.End.Equal(tt.wantStart.Add(time.Minute)) {
				t.Errorf("End = %v, want %v", w.End, tt.wantStart.Add(time.Minute))
			}
			if w.ID != tt.wantStart.Unix()/60 {
				t.Errorf("ID = %d, want %d", w.ID, tt.wantStart.Unix()/60)
			}
		})
	}
}

func TestWindowAt_BeforeEpoch(t *testing.T) {
	w := WindowAt(time.Unix(-1, 0), time.Minute)
	if w.ID != -1 {
		t.Errorf("ID = %d, want -1", w.ID)
	}
	if !w.End.Equal(time.Unix(0, 0)) {
		t.Errorf("End = %v, want epoch", w.End)
	}
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want int64
	}{
		{"allowed", Decision{Allowed: true, RetryAfter: 5 * time.Second}, 0},
		{"whole seconds", Decision{RetryAfter: 50 * time.Second}, 50},
		{"rounds up", Decision{RetryAfter: 49*time.Second + time.Millisecond}, 50},
		{"never below one", Decision{RetryAfter: 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.RetryAfterSeconds(); got != tt.want {
				t.Errorf("RetryAfterSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}
