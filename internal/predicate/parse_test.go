package predicate

import (
	"errors"
	"testing"
)

func TestParseValid(t *testing.T) {
	t.Parallel()

	sources := []string{
		"price > 100",
		"price >= 100.50",
		"price == 99.95",
		"time >= 15:20",
		"time < 9:15",
		"price > 100 AND price < 200",
		"price > 100 OR time >= 15:20",
		"(price > 100 OR price < 50) AND time >= 09:15",
		"price > 20100 OR time >= 15:20",
		"100 < 200",
		"09:15 <= 15:20",
	}

	for _, src := range sources {
		if _, err := Parse(src); err != nil {
			t.Errorf("Parse(%q) failed: %v", src, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src string
		pos int
	}{
		{"", 0},                      // empty
		{"price >", 7},               // missing rhs
		{"price 100", 6},             // missing operator
		{"price > volume", 8},        // unknown identifier
		{"price + 100", 6},           // unsupported operator
		{"price = 100", 6},           // single equals
		{"price > 100 AND", 15},      // dangling AND
		{"(price > 100", 12},         // unbalanced paren
		{"price > 100)", 11},         // trailing token
		{"price > 15:20", 6},         // time literal against price
		{"time >= 930", 5},           // bare number against time
		{"time == price", 5},         // variable kind mismatch
		{"time >= 25:00", 8},         // hour out of range
		{"time >= 15:75", 8},         // minute out of range
		{"price > 100.", 8},          // malformed number
		{"price > 1#0", 9},           // stray character
		{"price > 100 and time", 12}, // lowercase keyword is an identifier
	}

	for _, tt := range tests {
		_, err := Parse(tt.src)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", tt.src)
			continue
		}
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) error = %T, want *ParseError", tt.src, err)
			continue
		}
		if perr.Pos != tt.pos {
			t.Errorf("Parse(%q) error at pos %d (%s), want pos %d", tt.src, perr.Pos, perr.Reason, tt.pos)
		}
	}
}

func TestHasPriceEquality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want bool
	}{
		{"price == 100", true},
		{"price >= 100", false},
		{"time == 15:20", false},
		{"time >= 09:15 AND price == 99.5", true},
		{"(price > 100 OR price < 50) AND time >= 09:15", false},
	}

	for _, tt := range tests {
		e, err := Parse(tt.src)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.src, err)
		}
		if got := HasPriceEquality(e); got != tt.want {
			t.Errorf("HasPriceEquality(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestFirstPriceLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
		ok   bool
	}{
		{"price > 20100", "20100", true},
		{"100.5 < price", "100.5", true},
		{"time >= 15:20", "", false},
		{"time >= 09:15 OR price > 45000", "45000", true},
		{"price > price", "", false},
	}

	for _, tt := range tests {
		e, err := Parse(tt.src)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.src, err)
		}
		got, ok := FirstPriceLiteral(e)
		if ok != tt.ok {
			t.Errorf("FirstPriceLiteral(%q) ok = %v, want %v", tt.src, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("FirstPriceLiteral(%q) = %s, want %s", tt.src, got, tt.want)
		}
	}
}
