package pricing

import (
	"math"
	"strings"
	"time"
)

type PromotionType string

const (
	TypePercentage    PromotionType = "persentase"
	TypeFixedDiscount PromotionType = "potongan_tetap"
	TypeFixedTotal    PromotionType = "harga_tetap"
)

const (
	ItemEntryTicket   = "tiket_masuk"
	ItemParkingTicket = "tiket_parkir"
)

// ParseType accepts both the stored names and their English aliases.
func ParseType(value string) (PromotionType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "persentase", "percentage":
		return TypePercentage, true
	case "potongan_tetap", "fixed_discount":
		return TypeFixedDiscount, true
	case "harga_tetap", "fixed_total":
		return TypeFixedTotal, true
	}
	return "", false
}

type Item struct {
	ID          int64   `json:"id_biaya"`
	Name        string  `json:"nama_item"`
	Price       int64   `json:"harga"`
	Description *string `json:"deskripsi"`
}

type Promotion struct {
	ID          int64         `json:"id_promosi"`
	Name        string        `json:"nama_promosi"`
	Description *string       `json:"deskripsi_promosi"`
	Type        PromotionType `json:"tipe_promosi"`
	Value       float64       `json:"nilai_promosi"`
	MinClimbers int           `json:"kondisi_min_pendaki"`
	MaxClimbers *int          `json:"kondisi_max_pendaki"`
	StartsAt    time.Time     `json:"tanggal_mulai"`
	EndsAt      time.Time     `json:"tanggal_akhir"`
	IsActive    bool          `json:"is_aktif"`
	Code        *string       `json:"kode_promo"`
}

// ActiveAt reports whether the promotion is switched on and inside its window at now.
func (p Promotion) ActiveAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	return !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

// Covers reports whether climbers falls in [min, max]; a nil max is unbounded.
func (p Promotion) Covers(climbers int) bool {
	if climbers < p.MinClimbers {
		return false
	}
	if p.MaxClimbers != nil && climbers > *p.MaxClimbers {
		return false
	}
	return true
}

type Input struct {
	ClimberCount int
	ParkingCount int
	ClimbDate    string
	PromoCode    string
	Now          time.Time
}

type Defaults struct {
	EntryPrice   int64
	ParkingPrice int64
}

type Quote struct {
	BasePrice            int64      `json:"harga_sebelum_promosi"`
	FinalPrice           int64      `json:"harga_setelah_promosi"`
	DiscountAmount       int64      `json:"potongan_promosi"`
	AppliedPromotion     *Promotion `json:"promosi_yang_berlaku"`
	EntryUnitPrice       int64      `json:"harga_tiket_masuk"`
	ParkingUnitPrice     int64      `json:"harga_tiket_parkir"`
	EntryPriceFallback   bool       `json:"harga_tiket_masuk_default"`
	ParkingPriceFallback bool       `json:"harga_tiket_parkir_default"`
	MatchingPromotions   int        `json:"jumlah_promosi_cocok"`
}

// Compute prices a party from the given items and promotions. Promotions are
// evaluated in slice order and the first one covering the party size wins.
func Compute(items []Item, promotions []Promotion, in Input, defaults Defaults) Quote {
	quote := Quote{EntryUnitPrice: defaults.EntryPrice, ParkingUnitPrice: defaults.ParkingPrice}
	quote.EntryPriceFallback = true
	quote.ParkingPriceFallback = true
	for _, item := range items {
		switch item.Name {
		case ItemEntryTicket:
			quote.EntryUnitPrice = item.Price
			quote.EntryPriceFallback = false
		case ItemParkingTicket:
			quote.ParkingUnitPrice = item.Price
			quote.ParkingPriceFallback = false
		}
	}

	climbers := int64(max(in.ClimberCount, 0))
	parking := int64(max(in.ParkingCount, 0))
	quote.BasePrice = climbers*quote.EntryUnitPrice + parking*quote.ParkingUnitPrice
	quote.FinalPrice = quote.BasePrice

	code := strings.TrimSpace(in.PromoCode)
	var applied *Promotion
	for i := range promotions {
		promo := promotions[i]
		if !promo.ActiveAt(in.Now) {
			continue
		}
		if code != "" && (promo.Code == nil || strings.TrimSpace(*promo.Code) != code) {
			continue
		}
		if !promo.Covers(in.ClimberCount) {
			continue
		}
		quote.MatchingPromotions++
		if applied == nil {
			applied = &promo
		}
	}

	if applied != nil {
		quote.FinalPrice = applyPromotion(quote.BasePrice, *applied)
		quote.AppliedPromotion = applied
	}
	quote.DiscountAmount = quote.BasePrice - quote.FinalPrice
	return quote
}

func applyPromotion(base int64, promo Promotion) int64 {
	var final float64
	switch promo.Type {
	case TypePercentage:
		final = float64(base) * (100 - promo.Value) / 100
	case TypeFixedDiscount:
		final = math.Max(0, float64(base)-promo.Value)
	case TypeFixedTotal:
		final = promo.Value
	default:
		return base
	}
	if final <= 0 {
		return 0
	}
	// Guard against representations like 193499.99999999997.
	return int64(math.Floor(final + 1e-6))
}
