package quota

import (
	"encoding/json"
	"fmt"
	"time"

	"pendakian-services/internal/apperror"
)

const DateLayout = "2006-01-02"

// MaxRangeDays bounds ListRange so a calendar request cannot scan the whole table.
const MaxRangeDays = 92

type DailyQuota struct {
	ID          int64     `json:"id_kuota"`
	Date        time.Time `json:"-"`
	MaxCapacity int64     `json:"kuota_maksimal"`
	Reserved    int64     `json:"kuota_terpesan"`
}

func (q DailyQuota) MarshalJSON() ([]byte, error) {
	type alias DailyQuota
	return json.Marshal(struct {
		alias
		Date      string `json:"tanggal_kuota"`
		Available int64  `json:"sisa_kuota"`
	}{alias: alias(q), Date: q.Date.Format(DateLayout), Available: q.MaxCapacity - q.Reserved})
}

type Availability struct {
	Date         string `json:"tanggal"`
	MaxCapacity  int64  `json:"kuota_maksimal"`
	Reserved     int64  `json:"kuota_terpesan"`
	Available    int64  `json:"sisa_kuota"`
	Requested    int64  `json:"dibutuhkan"`
	OK           bool   `json:"tersedia"`
	FallbackUsed bool   `json:"kuota_default"`
}

// Evaluate applies the admission rule to a quota row. A nil row means no quota
// was configured for the date and defaultCapacity stands in for it.
func Evaluate(date string, row *DailyQuota, requested int64, defaultCapacity int64) Availability {
	a := Availability{Date: date, Requested: requested}
	if row == nil {
		a.MaxCapacity = defaultCapacity
		a.FallbackUsed = true
	} else {
		a.MaxCapacity = row.MaxCapacity
		a.Reserved = row.Reserved
	}
	// Not clamped: a manual capacity cut below the reserved count shows as negative.
	a.Available = a.MaxCapacity - a.Reserved
	a.OK = a.Available >= requested
	return a
}

func (a Availability) Message() string {
	return fmt.Sprintf("Kuota tidak mencukupi. Tersedia: %d, Dibutuhkan: %d", a.Available, a.Requested)
}

// Err returns the refusal for an availability that does not admit the request.
func (a Availability) Err() *apperror.Error {
	if a.OK {
		return nil
	}
	return apperror.BusinessRule(apperror.CodeQuotaExceeded, a.Message(), map[string]any{
		"tanggal":    a.Date,
		"tersedia":   a.Available,
		"dibutuhkan": a.Requested,
	})
}

func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// ValidateRange checks an inclusive listing range.
func ValidateRange(from, to time.Time) *apperror.Error {
	if to.Before(from) {
		return apperror.Validation("Tanggal akhir harus setelah tanggal awal", map[string]any{"sampai": "gtefield dari"})
	}
	if to.Sub(from) > time.Duration(MaxRangeDays)*24*time.Hour {
		return apperror.Validation(fmt.Sprintf("Rentang tanggal maksimal %d hari", MaxRangeDays), map[string]any{"sampai": "range"})
	}
	return nil
}

// ValidateCapacity checks an admin capacity change against the current bookings.
func ValidateCapacity(newMax int64, current *DailyQuota) *apperror.Error {
	if newMax < 0 {
		return apperror.Validation("Kuota maksimal tidak boleh negatif", map[string]any{"kuota_maksimal": "gte 0"})
	}
	if current != nil && newMax < current.Reserved {
		return apperror.Conflict(
			fmt.Sprintf("Kuota maksimal tidak boleh kurang dari kuota terpesan (%d)", current.Reserved),
			map[string]any{"kuota_terpesan": current.Reserved},
		)
	}
	return nil
}

// Calendar lists availability for every day in [from, to]. Days without a
// row carry the default capacity and the fallback flag.
func Calendar(from, to time.Time, rows []DailyQuota, defaultCapacity int64) []Availability {
	byDate := make(map[string]*DailyQuota, len(rows))
	for i := range rows {
		byDate[rows[i].Date.Format(DateLayout)] = &rows[i]
	}
	out := make([]Availability, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(DateLayout)
		out = append(out, Evaluate(key, byDate[key], 0, defaultCapacity))
	}
	return out
}
