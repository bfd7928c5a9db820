package txid

import (
	"strings"
	"testing"
	"time"
)

func TestNewEmbedsIssuanceSecond(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 59, 59, 500000000, time.UTC)

	id := New("IVG", now)

	if !strings.HasPrefix(id, "IVG") {
		t.Errorf("expected prefix IVG, got %q", id)
	}

	issued, err := IssuedAt(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The embedded timestamp must parse back to the same calendar second.
	if !issued.Equal(now.Truncate(time.Second)) {
		t.Errorf("expected issuance time %v, got %v", now.Truncate(time.Second), issued)
	}
}

func TestNewSuffixLength(t *testing.T) {
	id := New("AB", time.Now())

	idx := strings.LastIndex(id, "|")
	if idx < 0 {
		t.Fatalf("expected separator in %q", id)
	}

	suffix := id[len("AB"):idx]
	if len(suffix) != 32 {
		t.Errorf("expected 32 hex characters of entropy, got %d (%q)", len(suffix), suffix)
	}

	if len(id[idx+1:]) != len(TimestampLayout) {
		t.Errorf("expected %d-character timestamp, got %q", len(TimestampLayout), id[idx+1:])
	}
}

func TestNewIsUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := New("IVG", now)
		if seen[id] {
			t.Fatalf("duplicate transaction id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestIssuedAtRejectsMalformedIDs(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "no_separator", id: "IVGabc123"},
		{name: "empty", id: ""},
		{name: "bad_timestamp", id: "IVGabc|20251301"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := IssuedAt(tt.id); err == nil {
				t.Errorf("expected error for %q, got nil", tt.id)
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	s := "20260831235959"

	parsed, err := ParseTime(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := FormatTime(parsed); got != s {
		t.Errorf("expected round-trip %q, got %q", s, got)
	}
}

func TestFormatTimeIsSortable(t *testing.T) {
	earlier := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	later := earlier.Add(time.Second)

	// Crossing the year boundary must still compare correctly as strings.
	if FormatTime(earlier) >= FormatTime(later) {
		t.Errorf("expected %q < %q", FormatTime(earlier), FormatTime(later))
	}
}
