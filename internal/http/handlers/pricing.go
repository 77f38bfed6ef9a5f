package handlers

import (
	"net/http"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/pricing"
	"pendakian-services/internal/validation"
	"pendakian-services/pkg/response"
)

type quoteRequest struct {
	ClimberCount int    `json:"jumlah_pendaki" validate:"min=0,max=100"`
	ParkingCount int    `json:"jumlah_tiket_parkir" validate:"min=0,max=100"`
	ClimbDate    string `json:"tanggal_pendakian" validate:"required,datetime=2006-01-02"`
	PromoCode    string `json:"kode_promo" validate:"max=64"`
}

// PublicPricingQuote prices a party server-side. The data keys match what the
// booking form already reads.
func (h *Handler) PublicPricingQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.ClimbDate = strings.TrimSpace(body.ClimbDate)
	body.PromoCode = strings.TrimSpace(body.PromoCode)
	if err := validation.Struct(body, "Data perhitungan harga tidak valid"); err != nil {
		response.Fail(w, err)
		return
	}

	quote, appErr := pricing.ComputeQuote(r.Context(), h.DB, h.Logger, pricing.Input{
		ClimberCount: body.ClimberCount,
		ParkingCount: body.ParkingCount,
		ClimbDate:    body.ClimbDate,
		PromoCode:    body.PromoCode,
		Now:          time.Now(),
	}, h.priceDefaults())
	if appErr != nil {
		response.Fail(w, appErr)
		return
	}
	response.Success(w, quote)
}

func (h *Handler) PricingItemsList(w http.ResponseWriter, r *http.Request) {
	items, err := pricing.LoadItems(r.Context(), h.DB)
	if err != nil {
		h.Logger.Error("pricing items load failed", zapError(err))
		response.Fail(w, apperror.Upstream("Gagal mengambil data harga", err))
		return
	}
	response.Success(w, items)
}

type pricingItemUpdateRequest struct {
	Price       *int64  `json:"harga" validate:"required,min=0"`
	Description *string `json:"deskripsi" validate:"omitempty,max=500"`
}

func (h *Handler) AdminPricingItemUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body pricingItemUpdateRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := validation.Struct(body, "Data harga tidak valid"); err != nil {
		response.Fail(w, err)
		return
	}

	updated, err := pricing.UpdateItem(r.Context(), h.DB, id, *body.Price, trimmedPtr(body.Description))
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal memperbarui harga", err))
		return
	}
	if !updated {
		response.Fail(w, apperror.NotFound("Item biaya tidak ditemukan"))
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Harga berhasil diperbarui", nil)
}
