package quota

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"pendakian-services/internal/apperror"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name          string
		row           *DailyQuota
		requested     int64
		wantAvailable int64
		wantOK        bool
		wantFallback  bool
	}{
		{name: "insufficient", row: &DailyQuota{MaxCapacity: 50, Reserved: 48}, requested: 3, wantAvailable: 2, wantOK: false},
		{name: "exact boundary admits", row: &DailyQuota{MaxCapacity: 50, Reserved: 48}, requested: 2, wantAvailable: 2, wantOK: true},
		{name: "one over boundary refuses", row: &DailyQuota{MaxCapacity: 10, Reserved: 0}, requested: 11, wantAvailable: 10, wantOK: false},
		{name: "missing row uses default", row: nil, requested: 5, wantAvailable: 50, wantOK: true, wantFallback: true},
		{name: "overbooked is negative", row: &DailyQuota{MaxCapacity: 20, Reserved: 25}, requested: 1, wantAvailable: -5, wantOK: false},
		{name: "zero request always fits", row: &DailyQuota{MaxCapacity: 5, Reserved: 5}, requested: 0, wantAvailable: 0, wantOK: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate("2025-08-17", tc.row, tc.requested, 50)
			if got.Available != tc.wantAvailable {
				t.Fatalf("expected available %d, got %d", tc.wantAvailable, got.Available)
			}
			if got.OK != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, got.OK)
			}
			if got.FallbackUsed != tc.wantFallback {
				t.Fatalf("expected fallback=%v, got %v", tc.wantFallback, got.FallbackUsed)
			}
		})
	}
}

func TestAvailabilityErr(t *testing.T) {
	a := Evaluate("2025-08-17", &DailyQuota{MaxCapacity: 50, Reserved: 48}, 3, 50)
	err := a.Err()
	if err == nil {
		t.Fatalf("expected refusal")
	}
	if err.Code != apperror.CodeQuotaExceeded || err.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected error %s/%d", err.Code, err.StatusCode)
	}
	if !strings.Contains(err.Message, "Tersedia: 2, Dibutuhkan: 3") {
		t.Fatalf("unexpected message %q", err.Message)
	}

	ok := Evaluate("2025-08-17", nil, 3, 50)
	if ok.Err() != nil {
		t.Fatalf("expected admission, got %v", ok.Err())
	}
}

func TestValidateCapacity(t *testing.T) {
	cases := []struct {
		name       string
		newMax     int64
		current    *DailyQuota
		wantStatus int
	}{
		{name: "new row", newMax: 60, current: nil},
		{name: "raise", newMax: 60, current: &DailyQuota{MaxCapacity: 50, Reserved: 30}},
		{name: "lower to reserved", newMax: 30, current: &DailyQuota{MaxCapacity: 50, Reserved: 30}},
		{name: "below reserved", newMax: 29, current: &DailyQuota{MaxCapacity: 50, Reserved: 30}, wantStatus: http.StatusConflict},
		{name: "negative", newMax: -1, current: nil, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCapacity(tc.newMax, tc.current)
			if tc.wantStatus == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || err.StatusCode != tc.wantStatus {
				t.Fatalf("expected status %d, got %v", tc.wantStatus, err)
			}
		})
	}
}

func TestValidateRange(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := ValidateRange(from, from.AddDate(0, 0, 30)); err != nil {
		t.Fatalf("expected valid range, got %v", err)
	}
	if err := ValidateRange(from, from.AddDate(0, 0, -1)); err == nil {
		t.Fatalf("expected reversed range to fail")
	}
	if err := ValidateRange(from, from.AddDate(0, 0, MaxRangeDays+1)); err == nil {
		t.Fatalf("expected oversized range to fail")
	}
}

func TestDailyQuotaJSON(t *testing.T) {
	row := DailyQuota{ID: 3, Date: time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC), MaxCapacity: 50, Reserved: 12}
	raw, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body["tanggal_kuota"] != "2025-08-17" {
		t.Fatalf("expected date 2025-08-17, got %v", body["tanggal_kuota"])
	}
	if body["sisa_kuota"] != float64(38) {
		t.Fatalf("expected sisa_kuota 38, got %v", body["sisa_kuota"])
	}
}

func TestCalendar(t *testing.T) {
	from := time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	rows := []DailyQuota{{ID: 1, Date: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), MaxCapacity: 30, Reserved: 12}}

	days := Calendar(from, to, rows, 50)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if !days[0].FallbackUsed || days[0].Available != 50 {
		t.Fatalf("expected default for missing day, got %+v", days[0])
	}
	if days[1].FallbackUsed || days[1].Available != 18 {
		t.Fatalf("expected stored row, got %+v", days[1])
	}
	if days[2].Date != "2026-08-18" {
		t.Fatalf("unexpected last day %s", days[2].Date)
	}
}
