package normalize_test

import (
	"testing"

	"github.com/ignite/veribatch/internal/normalize"
)

func TestValid(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"user.name@example.com", true},
		{"user+tag@example.com", true},
		{"user@sub.example.com", true},
		{"user@example.co.uk", true},
		{"invalid", false},
		{"@example.com", false},
		{"user@", false},
		{"user@.com", false},
		{"user space@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := normalize.Valid(tt.email); got != tt.valid {
				t.Errorf("Valid(%q) = %v, want %v", tt.email, got, tt.valid)
			}
		})
	}
}

func TestStrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"User@Example.com", "user@example.com"},
		{"local+tag@domain.com", "local@domain.com"},
		{"  local+tag@domain.com  ", "local@domain.com"},
		{"first.last@domain.com", "first.last@domain.com"}, // dots never stripped
		{"first.last+x+y@domain.com", "first.last@domain.com"},
		{"noat", "noat"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalize.Strip(tt.input); got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripIdempotent(t *testing.T) {
	inputs := []string{
		"User+Tag@Example.COM",
		"first.last+promo@sub.domain.org",
		"plain@domain.com",
	}
	for _, in := range inputs {
		once := normalize.Strip(in)
		twice := normalize.Strip(once)
		if once != twice {
			t.Errorf("Strip not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
