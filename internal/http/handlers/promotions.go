package handlers

import (
	"net/http"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/db"
	"pendakian-services/internal/pricing"
	"pendakian-services/pkg/response"
)

type promotionRequest struct {
	Name        string    `json:"nama_promosi"`
	Description *string   `json:"deskripsi_promosi"`
	Type        string    `json:"tipe_promosi"`
	Value       float64   `json:"nilai_promosi"`
	MinClimbers *int      `json:"kondisi_min_pendaki"`
	MaxClimbers *int      `json:"kondisi_max_pendaki"`
	StartsAt    time.Time `json:"tanggal_mulai"`
	EndsAt      time.Time `json:"tanggal_akhir"`
	IsActive    *bool     `json:"is_aktif"`
	Code        *string   `json:"kode_promo"`
}

func (body promotionRequest) toInput() (pricing.PromotionInput, *apperror.Error) {
	in := pricing.PromotionInput{
		Name:        strings.TrimSpace(body.Name),
		Description: trimmedPtr(body.Description),
		Value:       body.Value,
		MinClimbers: 1,
		MaxClimbers: body.MaxClimbers,
		StartsAt:    body.StartsAt,
		EndsAt:      body.EndsAt,
		IsActive:    true,
		Code:        trimmedPtr(body.Code),
	}
	if body.MinClimbers != nil {
		in.MinClimbers = *body.MinClimbers
	}
	if body.IsActive != nil {
		in.IsActive = *body.IsActive
	}
	if t, ok := pricing.ParseType(body.Type); ok {
		in.Type = t
	} else {
		in.Type = pricing.PromotionType(body.Type)
	}
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

func (h *Handler) PublicActivePromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := pricing.LoadActivePromotions(r.Context(), h.DB, time.Now(), "")
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil data promosi", err))
		return
	}
	// Code-gated promotions stay hidden from the public listing.
	visible := make([]pricing.Promotion, 0, len(promos))
	for _, p := range promos {
		if p.Code == nil || *p.Code == "" {
			visible = append(visible, p)
		}
	}
	response.Success(w, visible)
}

func (h *Handler) AdminPromotionsList(w http.ResponseWriter, r *http.Request) {
	promos, err := pricing.ListPromotions(r.Context(), h.DB)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil data promosi", err))
		return
	}
	response.Success(w, promos)
}

func (h *Handler) AdminPromotionDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	promo, err := pricing.GetPromotion(r.Context(), h.DB, id)
	if err != nil {
		if db.IsNoRows(err) {
			response.Fail(w, apperror.NotFound("Promosi tidak ditemukan"))
			return
		}
		response.Fail(w, apperror.Upstream("Gagal mengambil data promosi", err))
		return
	}
	response.Success(w, promo)
}

func (h *Handler) AdminPromotionCreate(w http.ResponseWriter, r *http.Request) {
	var body promotionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	in, appErr := body.toInput()
	if appErr != nil {
		response.Fail(w, appErr)
		return
	}

	id, err := pricing.CreatePromotion(r.Context(), h.DB, in)
	if err != nil {
		if db.IsUniqueViolation(err) {
			response.Fail(w, apperror.Conflict("Kode promo sudah digunakan", map[string]any{"kode_promo": "unique"}))
			return
		}
		response.Fail(w, apperror.Upstream("Gagal menyimpan promosi", err))
		return
	}
	h.Logger.Info("promotion created", zapInt64("promotionId", id), zapString("type", string(in.Type)))
	response.SuccessMessage(w, http.StatusCreated, "Promosi berhasil dibuat", map[string]any{"id_promosi": id})
}

func (h *Handler) AdminPromotionUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body promotionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	in, appErr := body.toInput()
	if appErr != nil {
		response.Fail(w, appErr)
		return
	}

	updated, err := pricing.UpdatePromotion(r.Context(), h.DB, id, in)
	if err != nil {
		if db.IsUniqueViolation(err) {
			response.Fail(w, apperror.Conflict("Kode promo sudah digunakan", map[string]any{"kode_promo": "unique"}))
			return
		}
		response.Fail(w, apperror.Upstream("Gagal memperbarui promosi", err))
		return
	}
	if !updated {
		response.Fail(w, apperror.NotFound("Promosi tidak ditemukan"))
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Promosi berhasil diperbarui", nil)
}

func (h *Handler) AdminPromotionDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	deleted, err := pricing.DeletePromotion(r.Context(), h.DB, id)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal menghapus promosi", err))
		return
	}
	if !deleted {
		response.Fail(w, apperror.NotFound("Promosi tidak ditemukan"))
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Promosi berhasil dihapus", nil)
}
