package clock

import (
	"testing"
	"time"
)

func TestMinutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hour, min int
		want      int
	}{
		{0, 0, 0},
		{9, 15, 555},
		{15, 20, 920},
		{23, 59, 1439},
	}

	for _, tt := range tests {
		at := time.Date(2026, 8, 24, tt.hour, tt.min, 30, 0, time.Local)
		if got := Minutes(at); got != tt.want {
			t.Errorf("Minutes(%02d:%02d) = %d, want %d", tt.hour, tt.min, got, tt.want)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:15", 555, false},
		{"9:15", 555, false},
		{"15:20", 920, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseHHMM(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHHMM(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseHHMM(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)

	// Later today.
	at, err := NextOccurrence(now, "15:20")
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	want := time.Date(2026, 8, 24, 15, 20, 0, 0, time.Local)
	if !at.Equal(want) {
		t.Errorf("NextOccurrence(15:20) = %v, want %v", at, want)
	}

	// Already passed today: rolls to tomorrow.
	at, err = NextOccurrence(now, "09:15")
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	want = time.Date(2026, 8, 25, 9, 15, 0, 0, time.Local)
	if !at.Equal(want) {
		t.Errorf("NextOccurrence(09:15) = %v, want %v", at, want)
	}

	// Exactly now: strictly after, so tomorrow.
	at, err = NextOccurrence(now, "10:00")
	if err != nil {
		t.Fatalf("NextOccurrence: %v", err)
	}
	if !at.After(now) {
		t.Errorf("NextOccurrence(10:00) = %v, want strictly after %v", at, now)
	}
}

func TestMock(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 24, 9, 15, 0, 0, time.Local)
	m := NewMock(start)
	if !m.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", m.Now(), start)
	}
	m.Advance(5 * time.Minute)
	if got := Minutes(m.Now()); got != 560 {
		t.Errorf("Minutes after advance = %d, want 560", got)
	}
}
