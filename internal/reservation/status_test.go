package reservation

import (
	"regexp"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusAwaitingPayment, StatusCancelled, true},
		{StatusAwaitingPayment, StatusConfirmed, false},
		{StatusAwaitingPayment, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusCancelled, StatusAwaitingPayment, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.ok {
				t.Fatalf("expected %v, got %v", tc.ok, got)
			}
		})
	}
}

func TestHoldsCapacity(t *testing.T) {
	if !StatusAwaitingPayment.HoldsCapacity() || !StatusConfirmed.HoldsCapacity() {
		t.Fatalf("active reservations must hold capacity")
	}
	if StatusCancelled.HoldsCapacity() || StatusCompleted.HoldsCapacity() {
		t.Fatalf("closed reservations must not hold capacity")
	}
}

func TestParseStatus(t *testing.T) {
	if _, ok := ParseStatus("terkonfirmasi"); !ok {
		t.Fatalf("expected terkonfirmasi to parse")
	}
	if _, ok := ParseStatus("confirmed"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
	if _, ok := ParseWasteStatus("tidak_sesuai"); !ok {
		t.Fatalf("expected tidak_sesuai to parse")
	}
}

func TestGenerateCode(t *testing.T) {
	now := time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^PDK-20260817-[A-Z0-9]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode(now)
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("unexpected code format %s", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Fatalf("expected mostly distinct codes, got %d", len(seen))
	}
}

func TestAppendSymbolsRejectsBiasedBytes(t *testing.T) {
	random := make([]byte, 256)
	for i := range random {
		random[i] = byte(i)
	}
	counts := map[byte]int{}
	for _, c := range appendSymbols(make([]byte, 0, 256), random) {
		counts[c]++
	}
	if len(counts) != len(codeAlphabet) {
		t.Fatalf("expected %d symbols, got %d", len(codeAlphabet), len(counts))
	}
	for c, n := range counts {
		if n != codeByteLimit/len(codeAlphabet) {
			t.Fatalf("symbol %c drawn %d times, expected %d", c, n, codeByteLimit/len(codeAlphabet))
		}
	}
}
